package store

import "time"

// Mirror is the persisted state of one account's history mirror.
type Mirror struct {
	AccountID    string
	RoleARN      string
	Region       string
	CreatedAt    time.Time
	LastSyncedAt *time.Time
	Records      int64
	Error        *string
}
