package drift

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/adapters"
	"github.com/de-tools/compliance-engine/pkg/metrics"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/services/reconcile"
	"github.com/de-tools/compliance-engine/pkg/services/whitelist"
)

const (
	DefaultBucketPrefix = "compliance-engine-codebuild-output"
	DefaultTemplate     = "default.json"
	DefaultPipelineName = "Compliance-Engine-Pipeline"
	DefaultPipelineRole = "ComplianceEngine-CodePipelineRole"
	DefaultStream       = "Firehose-Compliance-Engine"
	DefaultPartition    = "aws"
	DefaultRuleInterval = time.Second

	annotationFirstContact = "Unable to load most recent template from S3. Auto-deployment has been triggered."
	annotationNoInventory  = "Unable to get status of Config Rules."
)

type Settings struct {
	BucketPrefix    string `mapstructure:"bucket_prefix"`
	DefaultTemplate string `mapstructure:"default_template"`
	PipelineName    string `mapstructure:"pipeline_name"`
	// PipelineRole is the role name, in the home account, used to deploy
	// templates and write to the stream.
	PipelineRole string `mapstructure:"pipeline_role"`
	// MainRegion hosts the pipeline and the stream. Defaults to HomeRegion.
	MainRegion string `mapstructure:"main_region"`
	Stream     string `mapstructure:"stream"`
	// RuleInterval is the pause between two rules during republish. A
	// negative interval disables it.
	RuleInterval time.Duration `mapstructure:"rule_interval"`
	Whitelist    string        `mapstructure:"whitelist"`
	HomeAccount  string        `mapstructure:"home_account"`
	HomeRegion   string        `mapstructure:"home_region"`
	Partition    string        `mapstructure:"partition"`
}

// WithDefaults fills every unset field with its default.
func (s Settings) WithDefaults() Settings {
	if s.BucketPrefix == "" {
		s.BucketPrefix = DefaultBucketPrefix
	}
	if s.DefaultTemplate == "" {
		s.DefaultTemplate = DefaultTemplate
	}
	if s.PipelineName == "" {
		s.PipelineName = DefaultPipelineName
	}
	if s.PipelineRole == "" {
		s.PipelineRole = DefaultPipelineRole
	}
	if s.Stream == "" {
		s.Stream = DefaultStream
	}
	if s.RuleInterval == 0 {
		s.RuleInterval = DefaultRuleInterval
	}
	if s.Partition == "" {
		s.Partition = DefaultPartition
	}
	if s.MainRegion == "" {
		s.MainRegion = s.HomeRegion
	}
	return s
}

// Bucket is where the per-account templates are published.
func (s Settings) Bucket() string {
	return strings.Join([]string{s.BucketPrefix, s.HomeAccount, s.HomeRegion}, "-")
}

func (s Settings) substitutions() Substitutions {
	return Substitutions{
		Partition:   s.Partition,
		Region:      s.HomeRegion,
		AccountID:   s.HomeAccount,
		HomeAccount: s.HomeAccount,
	}
}

type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte) error
}

type Pipeline interface {
	Start(ctx context.Context, name string) (string, error)
}

// RuleInventory is the audited account's rule-state service.
type RuleInventory interface {
	reconcile.HistorySource
	DescribeRules(ctx context.Context, pageToken *string) (*domain.RulePage, error)
}

type Sink interface {
	PutRecord(ctx context.Context, stream string, payload []byte) error
}

type RunRecorder interface {
	RecordRun(ctx context.Context, run store.AuditRun) error
}

// Clients are the per-invocation remote dependencies of one audit.
type Clients struct {
	// Manifests reads templates with the engine's own credentials.
	Manifests ObjectStore
	// Deployment writes first-contact placeholders as the pipeline role.
	Deployment ObjectStore
	Pipeline   Pipeline
	Rules      RuleInventory
	Sinks      []Sink
	// Whitelist is read once, only when history is republished. Nil disables it.
	Whitelist *whitelist.Loader
}

type Request struct {
	AccountID string
	// RuleName and RuleARN identify the auditor's own rule, whose history is
	// never republished.
	RuleName  string
	RuleARN   string
	OrderedAt time.Time
}

// Auditor compares the rules deployed in an account with the account's
// template and republishes the evaluation history of every rule.
type Auditor struct {
	settings Settings
	runs     RunRecorder
	recorder *metrics.Recorder
	now      func() time.Time
}

func NewAuditor(settings Settings, runs RunRecorder, recorder *metrics.Recorder) *Auditor {
	return &Auditor{
		settings: settings.WithDefaults(),
		runs:     runs,
		recorder: recorder,
		now:      time.Now,
	}
}

func (a *Auditor) Settings() Settings {
	return a.settings
}

// Audit runs one drift audit and returns the account verdict. Structural
// drift is a NON_COMPLIANT verdict; only failures to republish are errors.
func (a *Auditor) Audit(ctx context.Context, req Request, clients Clients) (domain.Verdict, error) {
	logger := zerolog.Ctx(ctx).With().Str("account", req.AccountID).Logger()
	ctx = logger.WithContext(ctx)

	run := domain.AuditRun{AccountID: req.AccountID, StartedAt: a.now()}
	ct, annotation, err := a.audit(ctx, req, clients, &run)
	if err != nil {
		return domain.Verdict{}, err
	}

	run.ComplianceType = ct
	run.Annotation = annotation
	run.FinishedAt = a.now()
	a.recorder.Audited(ct)
	if a.runs != nil {
		if err := a.runs.RecordRun(ctx, adapters.MapDomainAuditRunToStore(run)); err != nil {
			logger.Warn().Err(err).Msg("failed to record audit run")
		}
	}

	logger.Info().
		Str("compliance_type", string(ct)).
		Int("rules", run.RulesAudited).
		Int("records", run.Records).
		Dur("elapsed", run.Duration()).
		Msg("drift audit finished")
	return domain.AccountVerdict(req.AccountID, ct, req.OrderedAt, annotation), nil
}

func (a *Auditor) audit(ctx context.Context, req Request, clients Clients, run *domain.AuditRun) (domain.ComplianceType, string, error) {
	logger := zerolog.Ctx(ctx)

	// LoadTemplate
	manifest, err := a.loadTemplate(ctx, req.AccountID, clients.Manifests)
	if err != nil {
		// Only an absent or unparsable template means first contact. Anything
		// else fails the invocation so it is retried without side effects.
		if !errors.Is(err, domain.ErrObjectNotFound) && !errors.Is(err, domain.ErrMalformedManifest) {
			return "", "", err
		}
		logger.Warn().Err(err).Msg("template unavailable, triggering deployment")
		if err := a.deploy(ctx, req.AccountID, clients); err != nil {
			return "", "", err
		}
		return domain.NonCompliant, annotationFirstContact, nil
	}

	// LoadLiveRuleInventory
	live, err := DrainRules(ctx, clients.Rules)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load live rules")
		return domain.NonCompliant, annotationNoInventory, nil
	}

	// DiffEach
	matched, annotation := Diff(manifest, live, run)
	if annotation != "" {
		logger.Info().Str("annotation", annotation).Msg("drift detected")
		return domain.NonCompliant, annotation, nil
	}

	// RepublishHistory
	if err := a.republish(ctx, req, clients, matched, run); err != nil {
		return "", "", err
	}
	return domain.Compliant, "", nil
}

func (a *Auditor) loadTemplate(ctx context.Context, accountID string, objects ObjectStore) (*domain.Manifest, error) {
	bucket := a.settings.Bucket()
	body, err := objects.Get(ctx, bucket, accountID+".json")
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		zerolog.Ctx(ctx).Debug().Msg("template is a placeholder, using the default template")
		body, err = objects.Get(ctx, bucket, a.settings.DefaultTemplate)
		if err != nil {
			return nil, fmt.Errorf("load default template: %w", err)
		}
	}
	return ParseManifest(body, a.settings.substitutions())
}

// deploy writes an empty placeholder for the account and starts the
// deployment pipeline once.
func (a *Auditor) deploy(ctx context.Context, accountID string, clients Clients) error {
	if err := clients.Deployment.Put(ctx, a.settings.Bucket(), accountID+".json", []byte{}); err != nil {
		return fmt.Errorf("write template placeholder: %w", err)
	}
	if _, err := clients.Pipeline.Start(ctx, a.settings.PipelineName); err != nil {
		return fmt.Errorf("start deployment pipeline: %w", err)
	}
	return nil
}

// DrainRules reads every page of the live rule inventory.
func DrainRules(ctx context.Context, inventory RuleInventory) ([]domain.LiveRule, error) {
	var rules []domain.LiveRule
	var token *string
	for {
		page, err := inventory.DescribeRules(ctx, token)
		if err != nil {
			return nil, err
		}
		rules = append(rules, page.Rules...)
		if page.NextToken == nil || *page.NextToken == "" {
			return rules, nil
		}
		token = page.NextToken
	}
}

// Diff compares manifest rules, in document order, with the live inventory.
// It stops at the first mismatch and returns its annotation; otherwise it
// returns the live rules matching the manifest.
func Diff(manifest *domain.Manifest, live []domain.LiveRule, run *domain.AuditRun) ([]domain.LiveRule, string) {
	byName := make(map[string]domain.LiveRule, len(live))
	for _, rule := range live {
		byName[rule.Name] = rule
	}

	matched := make([]domain.LiveRule, 0, len(manifest.Rules))
	for _, expected := range manifest.Rules {
		run.RulesAudited++
		rule, ok := byName[expected.RuleName]
		if !ok {
			return nil, fmt.Sprintf("The rule (%s) is not deployed.", expected.RuleName)
		}
		if problem := mismatch(expected, rule); problem != "" {
			return nil, fmt.Sprintf("The rule (%s) has an incorrect '%s' configuration.", rule.Name, problem)
		}
		if rule.State != domain.RuleStateActive {
			return nil, fmt.Sprintf("The rule (%s) is not active.", rule.Name)
		}
		matched = append(matched, rule)
	}
	return matched, ""
}

// mismatch names the first property of the live rule that differs from the
// manifest, or returns an empty string.
func mismatch(expected domain.RuleManifestEntry, rule domain.LiveRule) string {
	if expected.Scope != nil && !expected.Scope.Equal(rule.Scope) {
		return "Scope"
	}
	if expected.Source == nil {
		return ""
	}
	if rule.Source == nil {
		return "Source"
	}
	if expected.Source.Owner != rule.Source.Owner {
		return "Owner"
	}
	if len(expected.Source.SourceDetails) > 0 &&
		!domain.SameSourceDetails(expected.Source.SourceDetails, rule.Source.SourceDetails) {
		return "Source"
	}
	if expected.Source.SourceIdentifier != rule.Source.SourceIdentifier {
		return "SourceIdentifier"
	}
	return ""
}
