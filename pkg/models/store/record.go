package store

import "time"

// TimeLayout is the timestamp format used inside stream records.
const TimeLayout = "2006-01-02 15:04:05"

// ComplianceRecord is one evaluation result as delivered to the analytics stream.
// Field names are part of the downstream table schema.
type ComplianceRecord struct {
	ConfigRuleArn             string `json:"ConfigRuleArn"`
	ConfigRuleName            string `json:"ConfigRuleName"`
	AccountID                 string `json:"AccountId"`
	AwsRegion                 string `json:"AwsRegion"`
	ResourceType              string `json:"ResourceType"`
	ResourceID                string `json:"ResourceId"`
	ComplianceType            string `json:"ComplianceType"`
	WhitelistedComplianceType string `json:"WhitelistedComplianceType"`
	Annotation                string `json:"Annotation"`
	OrderingTimestamp         string `json:"OrderingTimestamp"`
	ResultRecordedTime        string `json:"ResultRecordedTime"`
	ConfigRuleInvokedTime     string `json:"ConfigRuleInvokedTime"`
	EngineRecordedTime        string `json:"EngineRecordedTime"`
}

// RecordFilter narrows a record listing. Empty fields match everything.
type RecordFilter struct {
	RuleName       string
	AccountID      string
	ComplianceType string
	Since          *time.Time
	Limit          int
}

type RecordStats struct {
	RecordsCount     int64
	LastRecordedTime *time.Time
}

// FormatTime renders t in TimeLayout, UTC. The zero time renders as an empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.UTC)
}
