package api

import "time"

type Evaluation struct {
	ComplianceResourceType string    `json:"ComplianceResourceType"`
	ComplianceResourceId   string    `json:"ComplianceResourceId"`
	ComplianceType         string    `json:"ComplianceType"`
	Annotation             string    `json:"Annotation,omitempty"`
	OrderingTimestamp      time.Time `json:"OrderingTimestamp"`
}

// InvocationResponse carries either the evaluations or the error response.
type InvocationResponse struct {
	InvocationId string         `json:"invocationId"`
	Evaluations  []Evaluation   `json:"evaluations,omitempty"`
	Retired      int            `json:"retired"`
	Dropped      int            `json:"dropped"`
	TestMode     bool           `json:"testMode"`
	Error        *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	InternalErrorMessage string `json:"internalErrorMessage"`
	InternalErrorDetails string `json:"internalErrorDetails,omitempty"`
	CustomerErrorCode    string `json:"customerErrorCode,omitempty"`
	CustomerErrorMessage string `json:"customerErrorMessage,omitempty"`
}

type Rule struct {
	Name string `json:"name"`
}

type ComplianceEvent struct {
	ConfigRuleArn             string `json:"configRuleArn,omitempty"`
	ConfigRuleName            string `json:"configRuleName"`
	AccountId                 string `json:"accountId"`
	AwsRegion                 string `json:"awsRegion,omitempty"`
	ResourceType              string `json:"resourceType"`
	ResourceId                string `json:"resourceId"`
	ComplianceType            string `json:"complianceType"`
	WhitelistedComplianceType string `json:"whitelistedComplianceType,omitempty"`
	Annotation                string `json:"annotation,omitempty"`
	OrderingTimestamp         string `json:"orderingTimestamp,omitempty"`
	EngineRecordedTime        string `json:"engineRecordedTime,omitempty"`
}

type EventStats struct {
	Records          int64      `json:"records"`
	LastRecordedTime *time.Time `json:"lastRecordedTime,omitempty"`
}

type AuditRun struct {
	AccountId      string    `json:"accountId"`
	ComplianceType string    `json:"complianceType"`
	Annotation     string    `json:"annotation,omitempty"`
	RulesAudited   int       `json:"rulesAudited"`
	Records        int       `json:"records"`
	StartedAt      time.Time `json:"startedAt"`
	DurationMs     int64     `json:"durationMs"`
}

type Mirror struct {
	AccountId    string     `json:"accountId"`
	RoleArn      string     `json:"roleArn"`
	Region       string     `json:"region"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	Records      int64      `json:"records"`
	Error        *string    `json:"error,omitempty"`
}

type MirrorRequest struct {
	RoleArn string `json:"roleArn"`
	Region  string `json:"region"`
}
