package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/credentials"
	"github.com/de-tools/compliance-engine/pkg/metrics"
	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/runtime/terminal/commands"
	"github.com/de-tools/compliance-engine/pkg/services/config"
	"github.com/de-tools/compliance-engine/pkg/services/drift"
	"github.com/de-tools/compliance-engine/pkg/services/evaluation"
	"github.com/de-tools/compliance-engine/pkg/services/mirror"
	"github.com/de-tools/compliance-engine/pkg/services/rules/catalog"
	"github.com/de-tools/compliance-engine/pkg/services/whitelist"
	"github.com/de-tools/compliance-engine/pkg/store/configservice"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb/audit"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb/events"
	mirrorstore "github.com/de-tools/compliance-engine/pkg/store/duckdb/mirror"
	"github.com/de-tools/compliance-engine/pkg/store/objects"
)

// App is the fully wired engine shared by the CLI and the web server.
type App struct {
	Config  *config.Config
	Base    aws.Config
	Engine  *evaluation.Engine
	Events  events.Store
	Audits  audit.Store
	Mirrors *mirror.DefaultController
	Metrics *metrics.Recorder
	DB      *sql.DB

	broker    credentials.Broker
	whitelist *whitelist.Loader
}

// Inventory reads rules and compliance history of a mirrored account.
func Inventory(cfg aws.Config) drift.RuleInventory {
	return configservice.NewFromConfig(cfg)
}

// Build wires the engine from configuration. The home account is resolved
// from the caller identity when it is not configured.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := zerolog.Ctx(ctx)

	base, err := cfg.LoadAWS(ctx)
	if err != nil {
		return nil, err
	}
	stsClient := sts.NewFromConfig(base)
	if err := cfg.ResolveHome(ctx, base, stsClient); err != nil {
		return nil, err
	}

	db, err := duckdb.NewDB(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB instance: %w", err)
	}
	eventStore, err := events.NewStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}
	auditStore, err := audit.NewStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit store: %w", err)
	}
	mirrors, err := mirrorstore.NewStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create mirror store: %w", err)
	}

	location, err := cfg.WhitelistLocation()
	if err != nil {
		db.Close()
		return nil, err
	}

	recorder := metrics.NewRecorder()
	registry, err := catalog.NewRegistry(catalog.Dependencies{
		Base:      base,
		Auditor:   drift.NewAuditor(cfg.Drift, auditStore, recorder),
		Whitelist: location,
		Local:     eventStore,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register rules: %w", err)
	}

	broker := credentials.NewBroker(base, stsClient, cfg.Credentials)
	engine := evaluation.NewEngine(registry, broker, evaluation.NewRuleState, cfg.Evaluation, recorder)

	var loader *whitelist.Loader
	if location != nil {
		loader = whitelist.NewLoader(objects.NewFromConfig(base), location)
	}
	controller := mirror.NewController(db, broker, Inventory, eventStore, mirrors, loader, cfg.Mirror)

	logger.Info().
		Str("home_account", cfg.Drift.HomeAccount).
		Str("home_region", cfg.Drift.HomeRegion).
		Strs("rules", engine.Rules()).
		Msg("compliance engine ready")

	return &App{
		Config:  cfg,
		Base:    base,
		Engine:  engine,
		Events:  eventStore,
		Audits:  auditStore,
		Mirrors: controller,
		Metrics: recorder,
		DB:      db,

		broker:    broker,
		whitelist: loader,
	}, nil
}

// Runtime exposes the app to the CLI commands.
func (a *App) Runtime() *commands.Runtime {
	return &commands.Runtime{
		Engine: a.Engine,
		Events: a.Events,
		Audits: a.Audits,
		Mirror: a.syncOnce,
		DB:     a.DB,
	}
}

// syncOnce runs a single mirror pass for the target without persisting it
// as a running mirror.
func (a *App) syncOnce(ctx context.Context, target mirror.Target) (mirror.RunnerProgress, error) {
	if err := target.Validate(); err != nil {
		return mirror.RunnerProgress{}, err
	}
	mirrors, err := mirrorstore.NewStore(a.DB)
	if err != nil {
		return mirror.RunnerProgress{}, err
	}
	m := &store.Mirror{AccountID: target.AccountID, RoleARN: target.RoleARN, Region: target.Region}
	if err := mirrors.CreateMirror(ctx, m); err != nil {
		return mirror.RunnerProgress{}, err
	}
	runner := mirror.NewRunner(m, a.DB, a.broker, Inventory, a.Events, mirrors, a.whitelist, a.Config.Mirror)
	return runner.Sync(ctx)
}

func (a *App) Close() error {
	a.Mirrors.Close()
	return a.DB.Close()
}
