package evaluation

import (
	"fmt"
	"time"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

var reportOrder = []domain.ComplianceType{domain.NonCompliant, domain.Compliant, domain.NotApplicable}

// Report renders the response as one section per compliance type, most
// severe first. A failed invocation renders as a single error section.
func (r *Response) Report(rule, account string, generatedAt time.Time) *domain.Report {
	report := &domain.Report{
		Title:       fmt.Sprintf("Evaluation of %s", rule),
		Rule:        rule,
		Account:     account,
		GeneratedAt: generatedAt,
		TestMode:    r.TestMode,
	}

	if r.Error != nil {
		report.Sections = append(report.Sections, domain.ReportSection{
			Title: "Error",
			Summary: map[string]any{
				"code":      r.Error.CustomerErrorCode,
				"retryable": r.Error.Retryable(),
				"message":   errorMessage(r.Error),
				"details":   r.Error.InternalErrorDetails,
			},
		})
		return report
	}

	grouped := make(map[domain.ComplianceType][]domain.ReportRow)
	for _, v := range r.Verdicts {
		grouped[v.ComplianceType] = append(grouped[v.ComplianceType], domain.ReportRow{
			ResourceID:   v.ResourceID,
			ResourceType: v.ResourceType,
			Ordered:      v.OrderingTimestamp,
			Annotation:   v.Annotation,
		})
	}
	for _, ct := range reportOrder {
		rows, ok := grouped[ct]
		if !ok {
			continue
		}
		report.Sections = append(report.Sections, domain.ReportSection{
			Title:   string(ct),
			Summary: map[string]any{"resources": len(rows)},
			Rows:    rows,
		})
	}
	if r.Retirements > 0 {
		report.Sections = append(report.Sections, domain.ReportSection{
			Title:   "Retired",
			Summary: map[string]any{"resources": r.Retirements},
		})
	}
	return report
}

// errorMessage prefers the customer message, which internal errors only fill
// with their code.
func errorMessage(e *domain.ErrorResponse) string {
	if e.Retryable() || e.CustomerErrorMessage == "" {
		return e.InternalErrorMessage
	}
	return e.CustomerErrorMessage
}
