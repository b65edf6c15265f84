package events

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
)

// Store keeps a local, queryable copy of the compliance stream. Records are
// keyed by content so the same history republished twice is stored once.
type Store interface {
	Add(ctx context.Context, records []store.ComplianceRecord) (int, error)
	// PutRecord accepts a serialized stream record, so the store can stand in
	// for or sit beside the remote delivery stream.
	PutRecord(ctx context.Context, stream string, payload []byte) error
	List(ctx context.Context, filter store.RecordFilter) ([]store.ComplianceRecord, error)
	Stats(ctx context.Context, filter store.RecordFilter) (*store.RecordStats, error)
}

type eventStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &eventStore{db: db}, nil
}

// RecordID is the content hash of a record, ignoring when the engine saw it.
func RecordID(r store.ComplianceRecord) string {
	r.EngineRecordedTime = ""
	payload, _ := json.Marshal(r)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *eventStore) PutRecord(ctx context.Context, _ string, payload []byte) error {
	var record store.ComplianceRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	_, err := s.Add(ctx, []store.ComplianceRecord{record})
	return err
}

func (s *eventStore) Add(ctx context.Context, records []store.ComplianceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT OR IGNORE INTO compliance_events (
			id, config_rule_arn, config_rule_name, account_id, aws_region,
			resource_type, resource_id, compliance_type, whitelisted, annotation,
			ordering_timestamp, result_recorded_time, config_rule_invoked_time, engine_recorded_time
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)`

	stmt, err := duckdb.ConnFrom(ctx, s.db).PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, record := range records {
		res, err := stmt.ExecContext(ctx,
			RecordID(record),
			record.ConfigRuleArn,
			record.ConfigRuleName,
			record.AccountID,
			record.AwsRegion,
			record.ResourceType,
			record.ResourceID,
			record.ComplianceType,
			record.WhitelistedComplianceType,
			record.Annotation,
			nullTime(record.OrderingTimestamp),
			nullTime(record.ResultRecordedTime),
			nullTime(record.ConfigRuleInvokedTime),
			nullTime(record.EngineRecordedTime),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert record: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	return inserted, nil
}

func (s *eventStore) List(ctx context.Context, filter store.RecordFilter) ([]store.ComplianceRecord, error) {
	where, args := filterClause(filter)
	query := `
		SELECT config_rule_arn, config_rule_name, account_id, aws_region,
			resource_type, resource_id, compliance_type, whitelisted, annotation,
			ordering_timestamp, result_recorded_time, config_rule_invoked_time, engine_recorded_time
		FROM compliance_events` + where + `
		ORDER BY result_recorded_time DESC, resource_id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := duckdb.ConnFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compliance events: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *eventStore) Stats(ctx context.Context, filter store.RecordFilter) (*store.RecordStats, error) {
	where, args := filterClause(filter)
	query := `SELECT COUNT(*), MAX(engine_recorded_time) FROM compliance_events` + where

	var total int64
	var last sql.NullTime
	if err := duckdb.ConnFrom(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&total, &last); err != nil {
		return nil, fmt.Errorf("get compliance event stats: %w", err)
	}
	var lastRecorded *time.Time
	if last.Valid {
		t := last.Time
		lastRecorded = &t
	}
	return &store.RecordStats{RecordsCount: total, LastRecordedTime: lastRecorded}, nil
}

func filterClause(filter store.RecordFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.RuleName != "" {
		conditions = append(conditions, "config_rule_name = ?")
		args = append(args, filter.RuleName)
	}
	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.ComplianceType != "" {
		conditions = append(conditions, "compliance_type = ?")
		args = append(args, filter.ComplianceType)
	}
	if filter.Since != nil {
		conditions = append(conditions, "engine_recorded_time >= ?")
		args = append(args, *filter.Since)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRecords(rows *sql.Rows) ([]store.ComplianceRecord, error) {
	records := make([]store.ComplianceRecord, 0)
	for rows.Next() {
		var (
			arn, region, whitelisted, annotation   sql.NullString
			rule, account, resType, resID, ctype   string
			ordering, recorded, invoked, engineSaw sql.NullTime
		)
		if err := rows.Scan(&arn, &rule, &account, &region, &resType, &resID, &ctype,
			&whitelisted, &annotation, &ordering, &recorded, &invoked, &engineSaw); err != nil {
			return nil, err
		}
		records = append(records, store.ComplianceRecord{
			ConfigRuleArn:             arn.String,
			ConfigRuleName:            rule,
			AccountID:                 account,
			AwsRegion:                 region.String,
			ResourceType:              resType,
			ResourceID:                resID,
			ComplianceType:            ctype,
			WhitelistedComplianceType: whitelisted.String,
			Annotation:                annotation.String,
			OrderingTimestamp:         formatNullTime(ordering),
			ResultRecordedTime:        formatNullTime(recorded),
			ConfigRuleInvokedTime:     formatNullTime(invoked),
			EngineRecordedTime:        formatNullTime(engineSaw),
		})
	}
	return records, rows.Err()
}

func nullTime(s string) interface{} {
	if s == "" {
		return nil
	}
	t, err := store.ParseTime(s)
	if err != nil {
		return nil
	}
	return t
}

func formatNullTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return store.FormatTime(t.Time)
}
