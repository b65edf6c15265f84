package domain

import "time"

// Report is a rendered summary of one invocation.
type Report struct {
	Title       string
	Rule        string
	Account     string
	GeneratedAt time.Time
	TestMode    bool
	Sections    []ReportSection
}

// ReportSection groups verdicts sharing a compliance type. Summary keys are
// rendered in sorted order.
type ReportSection struct {
	Title   string
	Summary map[string]any
	Rows    []ReportRow
}

// ReportRow is one evaluated resource.
type ReportRow struct {
	ResourceID   string
	ResourceType string
	Ordered      time.Time
	Annotation   string
}
