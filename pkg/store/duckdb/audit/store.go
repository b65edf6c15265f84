package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
)

// Store records the outcome of every drift audit, one row per run.
type Store interface {
	RecordRun(ctx context.Context, run store.AuditRun) error
	// ListRuns returns the most recent runs first. An empty account list
	// returns runs for every account.
	ListRuns(ctx context.Context, accounts []string, limit int) ([]store.AuditRun, error)
}

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{
		db: db,
	}, nil
}

func (s *defaultStore) RecordRun(ctx context.Context, run store.AuditRun) error {
	query := `
		INSERT INTO audit_runs (
			account_id, compliance_type, annotation, rules_audited, records, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{
		run.AccountID,
		run.ComplianceType,
		run.Annotation,
		run.RulesAudited,
		run.Records,
		run.StartedAt,
		run.FinishedAt,
	}

	if _, err := duckdb.ConnFrom(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record audit run: %w", err)
	}
	return nil
}

func (s *defaultStore) ListRuns(ctx context.Context, accounts []string, limit int) ([]store.AuditRun, error) {
	query := `
		SELECT account_id, compliance_type, annotation, rules_audited, records, started_at, finished_at
		FROM audit_runs`
	args := make([]interface{}, 0, len(accounts))
	if len(accounts) > 0 {
		placeholders := make([]byte, 0, 2*len(accounts))
		for i, account := range accounts {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, account)
		}
		query += fmt.Sprintf(" WHERE account_id IN (%s)", placeholders)
	}
	query += " ORDER BY finished_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := duckdb.ConnFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit runs: %w", err)
	}
	defer rows.Close()

	runs := make([]store.AuditRun, 0)
	for rows.Next() {
		var run store.AuditRun
		var annotation sql.NullString
		if err := rows.Scan(&run.AccountID, &run.ComplianceType, &annotation,
			&run.RulesAudited, &run.Records, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Annotation = annotation.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
