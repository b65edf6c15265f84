package ruleset

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/de-tools/compliance-engine/pkg/arn"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/drift"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
	"github.com/de-tools/compliance-engine/pkg/services/whitelist"
	"github.com/de-tools/compliance-engine/pkg/store/configservice"
	"github.com/de-tools/compliance-engine/pkg/store/firehose"
	"github.com/de-tools/compliance-engine/pkg/store/objects"
	"github.com/de-tools/compliance-engine/pkg/store/pipeline"
)

const LatestInstalled = "COMPLIANCE_RULESET_LATEST_INSTALLED"

// Factories build the remote clients of one audit from a configuration.
type Factories struct {
	Objects  func(cfg aws.Config) drift.ObjectStore
	Pipeline func(cfg aws.Config) drift.Pipeline
	Rules    func(cfg aws.Config) drift.RuleInventory
	Stream   func(cfg aws.Config) drift.Sink
}

// DefaultFactories builds the AWS SDK clients.
func DefaultFactories() Factories {
	return Factories{
		Objects:  func(cfg aws.Config) drift.ObjectStore { return objects.NewFromConfig(cfg) },
		Pipeline: func(cfg aws.Config) drift.Pipeline { return pipeline.NewFromConfig(cfg) },
		Rules:    func(cfg aws.Config) drift.RuleInventory { return configservice.NewFromConfig(cfg) },
		Stream:   func(cfg aws.Config) drift.Sink { return firehose.NewFromConfig(cfg) },
	}
}

type latestInstalled struct {
	auditor   *drift.Auditor
	base      aws.Config
	factories Factories
	whitelist *whitelist.Location
	local     drift.Sink
}

// NewLatestInstalled wraps the drift auditor as a rule. base is the engine's
// own configuration, used to read templates and the whitelist. local, when
// not nil, receives a copy of every stream record.
func NewLatestInstalled(auditor *drift.Auditor, base aws.Config, factories Factories, location *whitelist.Location, local drift.Sink) rules.Predicate {
	return &latestInstalled{
		auditor:   auditor,
		base:      base,
		factories: factories,
		whitelist: location,
		local:     local,
	}
}

func (l *latestInstalled) Name() string {
	return LatestInstalled
}

func (l *latestInstalled) DefaultResourceType() string {
	return domain.AccountResourceType
}

func (l *latestInstalled) ValidateParameters(domain.Parameters) error {
	return nil
}

func (l *latestInstalled) Evaluate(ctx context.Context, in rules.Input) (domain.Result, error) {
	if in.Invoking != nil && in.Invoking.MessageType != domain.MessageTypeScheduled {
		return domain.Result{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMessageType, in.Invoking.MessageType)
	}

	settings := l.auditor.Settings()
	role := arn.RoleARN(settings.Partition, settings.HomeAccount, settings.PipelineRole)
	deployment, err := in.Broker.Assume(ctx, role, settings.MainRegion)
	if err != nil {
		return domain.Result{}, fmt.Errorf("assume pipeline role: %w", err)
	}

	home := l.base.Copy()
	if settings.HomeRegion != "" {
		home.Region = settings.HomeRegion
	}
	manifests := l.factories.Objects(home)

	clients := drift.Clients{
		Manifests:  manifests,
		Deployment: l.factories.Objects(deployment.Config),
		Pipeline:   l.factories.Pipeline(deployment.Config),
		Rules:      l.factories.Rules(in.Lease.Config),
		Sinks:      []drift.Sink{l.factories.Stream(deployment.Config)},
	}
	if l.local != nil {
		clients.Sinks = append(clients.Sinks, l.local)
	}
	if l.whitelist != nil {
		clients.Whitelist = whitelist.NewLoader(manifests, l.whitelist)
	}

	verdict, err := l.auditor.Audit(ctx, drift.Request{
		AccountID: in.AccountID(),
		RuleName:  in.Event.ConfigRuleName,
		RuleARN:   in.Event.ConfigRuleArn,
		OrderedAt: in.OrderedAt(),
	}, clients)
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Single(verdict), nil
}
