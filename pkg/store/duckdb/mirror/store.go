package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
)

type Store interface {
	ListMirrors(ctx context.Context) ([]*store.Mirror, error)
	// CreateMirror registers the account, or replaces its role and region and
	// clears its error when it is already registered.
	CreateMirror(ctx context.Context, mirror *store.Mirror) error
	DeleteMirror(ctx context.Context, accountID string) error
	ProgressMirror(ctx context.Context, accountID string, syncedAt time.Time, records int) error
	FailMirror(ctx context.Context, accountID string, message string) error
}

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{db: db}, nil
}

func (s *defaultStore) ListMirrors(ctx context.Context) ([]*store.Mirror, error) {
	rows, err := duckdb.ConnFrom(ctx, s.db).QueryContext(ctx, `
		SELECT account_id, role_arn, region, created_at, last_synced_at, records, error
		FROM mirror_state
		ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("query mirrors: %w", err)
	}
	defer rows.Close()

	mirrors := make([]*store.Mirror, 0)
	for rows.Next() {
		var m store.Mirror
		var synced sql.NullTime
		var message sql.NullString
		if err := rows.Scan(&m.AccountID, &m.RoleARN, &m.Region, &m.CreatedAt, &synced, &m.Records, &message); err != nil {
			return nil, err
		}
		if synced.Valid {
			t := synced.Time
			m.LastSyncedAt = &t
		}
		if message.Valid {
			msg := message.String
			m.Error = &msg
		}
		mirrors = append(mirrors, &m)
	}
	return mirrors, rows.Err()
}

func (s *defaultStore) CreateMirror(ctx context.Context, mirror *store.Mirror) error {
	_, err := duckdb.ConnFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO mirror_state (account_id, role_arn, region)
		VALUES (?, ?, ?)
		ON CONFLICT (account_id) DO UPDATE SET
			role_arn = excluded.role_arn,
			region = excluded.region,
			error = NULL`,
		mirror.AccountID, mirror.RoleARN, mirror.Region)
	if err != nil {
		return fmt.Errorf("create mirror: %w", err)
	}
	return nil
}

func (s *defaultStore) DeleteMirror(ctx context.Context, accountID string) error {
	res, err := duckdb.ConnFrom(ctx, s.db).ExecContext(ctx, `DELETE FROM mirror_state WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("delete mirror: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mirror not found: %s", accountID)
	}
	return nil
}

func (s *defaultStore) ProgressMirror(ctx context.Context, accountID string, syncedAt time.Time, records int) error {
	_, err := duckdb.ConnFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE mirror_state
		SET last_synced_at = ?, records = records + ?, error = NULL
		WHERE account_id = ?`,
		syncedAt.UTC(), records, accountID)
	if err != nil {
		return fmt.Errorf("progress mirror: %w", err)
	}
	return nil
}

func (s *defaultStore) FailMirror(ctx context.Context, accountID string, message string) error {
	_, err := duckdb.ConnFrom(ctx, s.db).ExecContext(ctx, `UPDATE mirror_state SET error = ? WHERE account_id = ?`, message, accountID)
	if err != nil {
		return fmt.Errorf("fail mirror: %w", err)
	}
	return nil
}
