package commands

import (
	"context"
	"database/sql"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/services/evaluation"
	"github.com/de-tools/compliance-engine/pkg/services/mirror"
)

type Invoker interface {
	Invoke(ctx context.Context, ruleName string, event domain.TriggerEvent) (*evaluation.Response, error)
	Rules() []string
}

type EventStore interface {
	Add(ctx context.Context, records []store.ComplianceRecord) (int, error)
	List(ctx context.Context, filter store.RecordFilter) ([]store.ComplianceRecord, error)
	Stats(ctx context.Context, filter store.RecordFilter) (*store.RecordStats, error)
}

type AuditStore interface {
	ListRuns(ctx context.Context, accounts []string, limit int) ([]store.AuditRun, error)
}

// MirrorSync copies one account's compliance history into the event store once.
type MirrorSync func(ctx context.Context, target mirror.Target) (mirror.RunnerProgress, error)

// Runtime is what commands operate on. It is opened per command so that
// help and flag errors never touch AWS or the local database.
type Runtime struct {
	Engine Invoker
	Events EventStore
	Audits AuditStore
	Mirror MirrorSync
	DB     *sql.DB
}

func (r *Runtime) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

type Opener func(ctx context.Context) (*Runtime, error)
