package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/adapters"
	"github.com/de-tools/compliance-engine/pkg/credentials"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/services/drift"
	"github.com/de-tools/compliance-engine/pkg/services/reconcile"
	"github.com/de-tools/compliance-engine/pkg/services/whitelist"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
)

const (
	DefaultSyncInterval  = time.Hour
	DefaultRetryInterval = 5 * time.Minute
)

// SourceFactory builds the rule-state client of the mirrored account.
type SourceFactory func(cfg aws.Config) drift.RuleInventory

type RecordStore interface {
	Add(ctx context.Context, records []store.ComplianceRecord) (int, error)
}

type StateStore interface {
	ProgressMirror(ctx context.Context, accountID string, syncedAt time.Time, records int) error
	FailMirror(ctx context.Context, accountID string, message string) error
}

type RunnerConfig struct {
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	return c
}

type RunnerProgress struct {
	Rules    int
	Records  int
	Inserted int
	SyncedAt time.Time
	Err      error
}

// Runner copies one account's compliance history into the local event store,
// once per sync interval, until its context is cancelled.
type Runner struct {
	mirror    *store.Mirror
	db        *sql.DB
	broker    credentials.Broker
	sources   SourceFactory
	records   RecordStore
	state     StateStore
	whitelist *whitelist.Loader
	done      chan struct{}
	progress  chan RunnerProgress
	config    RunnerConfig
	now       func() time.Time
}

func NewRunner(
	m *store.Mirror,
	db *sql.DB,
	broker credentials.Broker,
	sources SourceFactory,
	records RecordStore,
	state StateStore,
	wl *whitelist.Loader,
	config RunnerConfig,
) *Runner {
	return &Runner{
		mirror:    m,
		db:        db,
		broker:    broker,
		sources:   sources,
		records:   records,
		state:     state,
		whitelist: wl,
		done:      make(chan struct{}),
		progress:  make(chan RunnerProgress, 100),
		config:    config.withDefaults(),
		now:       time.Now,
	}
}

func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Progress reports every sync. Reports are dropped when nobody reads them.
func (r *Runner) Progress() <-chan RunnerProgress {
	return r.progress
}

func (r *Runner) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx).With().Str("account", r.mirror.AccountID).Logger()
	ctx = logger.WithContext(ctx)
	defer close(r.done)
	defer close(r.progress)

	for {
		progress, err := r.Sync(ctx)
		wait := r.config.SyncInterval
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("mirror stopped")
				return
			}
			logger.Error().Err(err).Msg("mirror sync failed")
			if failErr := r.state.FailMirror(ctx, r.mirror.AccountID, err.Error()); failErr != nil {
				logger.Error().Err(failErr).Msg("failed to record mirror failure")
			}
			progress.Err = err
			wait = r.config.RetryInterval
		}

		select {
		case r.progress <- progress:
		default:
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("mirror stopped")
			return
		case <-timer.C:
		}
	}
}

// Sync performs one pass: every deployed rule, every page of its history,
// all compliance types. Records and mirror progress are committed together.
func (r *Runner) Sync(ctx context.Context) (RunnerProgress, error) {
	logger := zerolog.Ctx(ctx)
	syncedAt := r.now().UTC()
	progress := RunnerProgress{SyncedAt: syncedAt}

	lease, err := r.broker.Assume(ctx, r.mirror.RoleARN, r.mirror.Region)
	if err != nil {
		return progress, err
	}
	source := r.sources(lease.Config)

	rules, err := drift.DrainRules(ctx, source)
	if err != nil {
		return progress, fmt.Errorf("failed to list rules: %w", err)
	}
	progress.Rules = len(rules)

	overrides := whitelist.NewOverrides(nil, domain.DateOf(syncedAt))
	if r.whitelist != nil {
		overrides = r.whitelist.Load(ctx)
	}

	var records []store.ComplianceRecord
	for _, rule := range rules {
		entries, err := reconcile.DrainHistory(ctx, source, rule.Name, nil)
		if err != nil {
			return progress, fmt.Errorf("failed to read history of %s: %w", rule.Name, err)
		}
		for _, entry := range entries {
			ct, state := overrides.Decide(rule.ARN, rule.Name, entry.ResourceID, entry.ComplianceType)
			records = append(records, adapters.MapHistoryEntryToStore(rule, r.mirror.AccountID, entry, ct, state, syncedAt))
		}
	}
	progress.Records = len(records)

	err = duckdb.InTransaction(ctx, r.db, func(ctx context.Context) error {
		inserted, err := r.records.Add(ctx, records)
		if err != nil {
			return err
		}
		progress.Inserted = inserted
		return r.state.ProgressMirror(ctx, r.mirror.AccountID, syncedAt, inserted)
	})
	if err != nil {
		return progress, fmt.Errorf("failed to store mirrored history: %w", err)
	}

	logger.Info().
		Int("rules", progress.Rules).
		Int("records", progress.Records).
		Int("inserted", progress.Inserted).
		Msg("mirror synced")
	return progress, nil
}
