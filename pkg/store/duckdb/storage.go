package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const AuditRunsSchema = `
	CREATE TABLE IF NOT EXISTS audit_runs (
		account_id VARCHAR NOT NULL,
		compliance_type VARCHAR NOT NULL,
		annotation VARCHAR,
		rules_audited INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`
const ComplianceEventsSchema = `
	CREATE TABLE IF NOT EXISTS compliance_events (
		id VARCHAR NOT NULL,
		config_rule_arn VARCHAR,
		config_rule_name VARCHAR NOT NULL,
		account_id VARCHAR NOT NULL,
		aws_region VARCHAR,
		resource_type VARCHAR NOT NULL,
		resource_id VARCHAR NOT NULL,
		compliance_type VARCHAR NOT NULL,
		whitelisted VARCHAR,
		annotation VARCHAR,
		ordering_timestamp TIMESTAMP,
		result_recorded_time TIMESTAMP,
		config_rule_invoked_time TIMESTAMP,
		engine_recorded_time TIMESTAMP,
		PRIMARY KEY (id)
	);
`

const MirrorStateSchema = `
	CREATE TABLE IF NOT EXISTS mirror_state (
		account_id VARCHAR NOT NULL,
		role_arn VARCHAR NOT NULL,
		region VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_synced_at TIMESTAMP NULL,
		records BIGINT NOT NULL DEFAULT 0,
		error VARCHAR NULL,
		PRIMARY KEY (account_id)
	);
`

var bootQueries = []string{
	AuditRunsSchema,
	ComplianceEventsSchema,
	MirrorStateSchema,
}

type Settings struct {
	DbPath  string `mapstructure:"path"`
	Threads int    `mapstructure:"threads"`
}

func NewDB(settings Settings) (*sql.DB, error) {
	threads := settings.Threads
	if threads <= 0 {
		threads = 4
	}
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=%d", settings.DbPath, threads), nil)
	if err != nil {
		return nil, err
	}

	// The schema is created once per database, not per pooled connection.
	db := sql.OpenDB(c)
	for _, query := range bootQueries {
		if _, err := db.ExecContext(context.Background(), query); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return db, nil
}
