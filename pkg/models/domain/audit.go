package domain

import "time"

// AuditRun is the outcome of one drift audit of one account.
type AuditRun struct {
	AccountID      string
	ComplianceType ComplianceType
	Annotation     string
	// RulesAudited counts the manifest rules compared before the audit ended.
	RulesAudited int
	// Records counts the history entries republished to the stream.
	Records    int
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r AuditRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
