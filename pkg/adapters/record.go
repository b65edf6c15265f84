package adapters

import (
	"time"

	"github.com/de-tools/compliance-engine/pkg/arn"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/models/store"
)

// missingAnnotation is what the stream carries for results without an annotation.
const missingAnnotation = "None"

// MapHistoryEntryToStore builds the stream record of one evaluation result.
// ct and state are the outcome of applying the whitelist to the entry.
func MapHistoryEntryToStore(
	rule domain.LiveRule,
	accountID string,
	entry domain.HistoryEntry,
	ct domain.ComplianceType,
	state domain.WhitelistState,
	recordedAt time.Time,
) store.ComplianceRecord {
	annotation := entry.Annotation
	if annotation == "" {
		annotation = missingAnnotation
	}
	var region string
	if parsed, err := arn.Parse(rule.ARN); err == nil {
		region = parsed.Region
	}

	return store.ComplianceRecord{
		ConfigRuleArn:             rule.ARN,
		ConfigRuleName:            rule.Name,
		AccountID:                 accountID,
		AwsRegion:                 region,
		ResourceType:              entry.ResourceType,
		ResourceID:                entry.ResourceID,
		ComplianceType:            string(ct),
		WhitelistedComplianceType: string(state),
		Annotation:                annotation,
		OrderingTimestamp:         store.FormatTime(entry.OrderingTimestamp),
		ResultRecordedTime:        store.FormatTime(entry.ResultRecordedTime),
		ConfigRuleInvokedTime:     store.FormatTime(entry.ConfigRuleInvokedTime),
		EngineRecordedTime:        store.FormatTime(recordedAt),
	}
}

func MapStoreAuditRunToDomain(r store.AuditRun) domain.AuditRun {
	return domain.AuditRun{
		AccountID:      r.AccountID,
		ComplianceType: domain.ComplianceType(r.ComplianceType),
		Annotation:     r.Annotation,
		RulesAudited:   r.RulesAudited,
		Records:        r.Records,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

func MapDomainAuditRunToStore(r domain.AuditRun) store.AuditRun {
	return store.AuditRun{
		AccountID:      r.AccountID,
		ComplianceType: string(r.ComplianceType),
		Annotation:     r.Annotation,
		RulesAudited:   r.RulesAudited,
		Records:        r.Records,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}
