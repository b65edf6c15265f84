package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

func TestResponse_Report(t *testing.T) {
	// Given
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	resp := &Response{
		Verdicts: []domain.Verdict{
			domain.NewVerdict("AWS::KMS::Key", "k1", domain.Compliant, at, "Rotation enabled."),
			domain.NewVerdict("AWS::KMS::Key", "k2", domain.NonCompliant, at, "Rotation disabled."),
			domain.NewVerdict("AWS::KMS::Key", "k3", domain.NotApplicable, at, ""),
		},
		Retirements: 1,
		TestMode:    true,
	}

	// When
	report := resp.Report("KMS_CMK_ROTATION_ENABLED", "123456789012", at)

	// Then
	assert.True(t, report.TestMode)
	require.Len(t, report.Sections, 4)
	assert.Equal(t, "NON_COMPLIANT", report.Sections[0].Title)
	assert.Equal(t, "k2", report.Sections[0].Rows[0].ResourceID)
	assert.Equal(t, "COMPLIANT", report.Sections[1].Title)
	assert.Equal(t, "NOT_APPLICABLE", report.Sections[2].Title)
	assert.Equal(t, "Retired", report.Sections[3].Title)
	assert.Equal(t, 1, report.Sections[3].Summary["resources"])
}

func TestResponse_ReportError(t *testing.T) {
	resp := &Response{Error: domain.NewInternalErrorResponse("Unexpected error during the evaluation", "boom")}

	report := resp.Report("ROOT_MFA_ENABLED", "123456789012", time.Now())

	require.Len(t, report.Sections, 1)
	assert.Equal(t, "Error", report.Sections[0].Title)
	assert.Equal(t, domain.InternalErrorCode, report.Sections[0].Summary["code"])
	assert.Equal(t, true, report.Sections[0].Summary["retryable"])
	assert.Equal(t, "Unexpected error during the evaluation", report.Sections[0].Summary["message"])
	assert.Equal(t, "boom", report.Sections[0].Summary["details"])
	assert.Empty(t, report.Sections[0].Rows)
}
