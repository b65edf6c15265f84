package domain

import "time"

// HistoryEntry is the rule-state service's last known verdict for one
// (rule, resource) pair.
type HistoryEntry struct {
	RuleName              string
	ResourceType          string
	ResourceID            string
	ComplianceType        ComplianceType
	Annotation            string
	OrderingTimestamp     time.Time
	ResultRecordedTime    time.Time
	ConfigRuleInvokedTime time.Time
}

// HistoryPage is one page of compliance history. NextToken is nil on the last page.
type HistoryPage struct {
	Entries   []HistoryEntry
	NextToken *string
}

// Live reports whether the entry still counts as live history, i.e. it has
// not already been superseded by a NOT_APPLICABLE verdict.
func (h HistoryEntry) Live() bool {
	return h.ComplianceType != NotApplicable
}
