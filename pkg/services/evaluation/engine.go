package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/arn"
	"github.com/de-tools/compliance-engine/pkg/credentials"
	"github.com/de-tools/compliance-engine/pkg/metrics"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/reconcile"
	"github.com/de-tools/compliance-engine/pkg/services/resolver"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
	"github.com/de-tools/compliance-engine/pkg/services/submit"
	"github.com/de-tools/compliance-engine/pkg/store/configservice"
)

// RuleState is the rule-state service as seen by one invocation.
type RuleState interface {
	resolver.HistorySource
	reconcile.HistorySource
	submit.Committer
}

type RuleStateFactory func(cfg aws.Config) RuleState

func NewRuleState(cfg aws.Config) RuleState {
	return configservice.NewFromConfig(cfg)
}

type Settings struct {
	Policy   resolver.ApplicabilityPolicy `mapstructure:"applicability_policy"`
	MaxBatch int                          `mapstructure:"max_batch"`
}

// Response is the outcome of one invocation: either the submitted verdicts
// or an error response.
type Response struct {
	InvocationID string
	Verdicts     []domain.Verdict
	Retirements  int
	Dropped      int
	TestMode     bool
	Error        *domain.ErrorResponse
}

// Engine runs rule invocations end to end. It holds no per-invocation state,
// so concurrent invocations are independent.
type Engine struct {
	registry  rules.Registry
	broker    credentials.Broker
	ruleState RuleStateFactory
	settings  Settings
	recorder  *metrics.Recorder
	now       func() time.Time
}

func NewEngine(registry rules.Registry, broker credentials.Broker, ruleState RuleStateFactory, settings Settings, recorder *metrics.Recorder) *Engine {
	if settings.Policy == "" {
		settings.Policy = resolver.DeletedAndLeftScope
	}
	if settings.MaxBatch <= 0 {
		settings.MaxBatch = submit.DefaultMaxBatch
	}
	return &Engine{
		registry:  registry,
		broker:    broker,
		ruleState: ruleState,
		settings:  settings,
		recorder:  recorder,
		now:       time.Now,
	}
}

func (e *Engine) Rules() []string {
	return e.registry.List()
}

// Invoke evaluates one trigger event with the named rule. Only an unknown
// rule is returned as an error; every other failure is reported in the
// response.
func (e *Engine) Invoke(ctx context.Context, ruleName string, event domain.TriggerEvent) (*Response, error) {
	predicate, err := e.registry.Get(ruleName)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := zerolog.Ctx(ctx).With().
		Str("invocation", id).
		Str("rule", ruleName).
		Str("account", event.AccountID).
		Logger()
	ctx = logger.WithContext(ctx)

	started := e.now()
	resp, err := e.invoke(ctx, predicate, event)
	e.recorder.Observe(ruleName, e.now().Sub(started))
	if err != nil {
		resp = &Response{Error: Classify(err)}
		e.recorder.Failed(ruleName, resp.Error.CustomerErrorCode)
		logger.Error().Err(err).
			Str("code", resp.Error.CustomerErrorCode).
			Bool("retryable", resp.Error.Retryable()).
			Msg("invocation failed")
	}
	resp.InvocationID = id
	return resp, nil
}

func (e *Engine) invoke(ctx context.Context, predicate rules.Predicate, event domain.TriggerEvent) (*Response, error) {
	logger := zerolog.Ctx(ctx)

	invoking, err := event.Invoking()
	if err != nil {
		return nil, err
	}
	if !invoking.MessageType.Supported() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMessageType, invoking.MessageType)
	}

	params, err := event.Parameters()
	if err != nil {
		return nil, domain.InvalidParameter("ruleParameters is not a valid JSON document")
	}
	if err := predicate.ValidateParameters(params); err != nil {
		return nil, err
	}

	var ruleARN arn.ARN
	if event.ConfigRuleArn != "" {
		if ruleARN, err = arn.Parse(event.ConfigRuleArn); err != nil {
			return nil, domain.InvalidParameter("configRuleArn: %v", err)
		}
	}

	lease, err := e.broker.Assume(ctx, event.ExecutionRoleArn, ruleARN.Region)
	if err != nil {
		return nil, err
	}
	state := e.ruleState(lease.Config)

	res := resolver.NewResolver(state, e.settings.Policy)
	item, err := res.Resolve(ctx, invoking)
	if err != nil {
		return nil, err
	}

	var result domain.Result
	if item != nil && !res.Applicable(item, event.EventLeftScope) {
		logger.Info().Str("resource_id", item.ResourceID).Msg("resource is out of scope")
		result = domain.Single(domain.ItemVerdict(item, domain.NotApplicable, ""))
	} else {
		result, err = predicate.Evaluate(ctx, rules.Input{
			Event:      event,
			Invoking:   invoking,
			Item:       item,
			Parameters: params,
			Lease:      lease,
			Broker:     e.broker,
			Rule:       ruleARN,
		})
		if err != nil {
			return nil, err
		}
	}

	orderedAt := invoking.NotificationCreationTime
	if orderedAt.IsZero() {
		orderedAt = e.now().UTC()
	}
	// History is keyed by the deployed rule name, which may differ from the
	// registered predicate name.
	deployed := event.ConfigRuleName
	if deployed == "" {
		deployed = predicate.Name()
	}
	outcome, err := reconcile.NewReconciler(state).Reconcile(ctx, reconcile.Run{
		RuleName:            deployed,
		AccountID:           event.AccountID,
		DefaultResourceType: predicate.DefaultResourceType(),
		Item:                item,
		OrderingTimestamp:   orderedAt,
	}, result)
	if err != nil {
		return nil, err
	}

	ack, err := submit.NewSubmitter(state, e.settings.MaxBatch).Submit(ctx, outcome.Verdicts, event.ResultToken)
	if err != nil {
		return nil, err
	}
	if !ack.TestMode {
		e.recorder.Submitted(predicate.Name(), ack.Verdicts)
		e.recorder.Retired(predicate.Name(), outcome.Retirements)
	}

	logger.Info().
		Int("verdicts", len(ack.Verdicts)).
		Int("retired", outcome.Retirements).
		Bool("test_mode", ack.TestMode).
		Msg("invocation completed")
	return &Response{
		Verdicts:    ack.Verdicts,
		Retirements: outcome.Retirements,
		Dropped:     ack.Dropped,
		TestMode:    ack.TestMode,
	}, nil
}

// IsUnknownRule reports whether Invoke failed because the rule is not registered.
func IsUnknownRule(err error) bool {
	return errors.Is(err, domain.ErrRuleNotFound)
}
