package store

import "time"

// AuditRun is the outcome of one drift audit of one account.
type AuditRun struct {
	AccountID      string
	ComplianceType string
	Annotation     string
	RulesAudited   int
	Records        int
	StartedAt      time.Time
	FinishedAt     time.Time
}
