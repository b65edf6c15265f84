package adapters

import (
	"github.com/de-tools/compliance-engine/pkg/models/api"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/models/store"
)

func MapAuditRunDomainToApi(r domain.AuditRun) api.AuditRun {
	return api.AuditRun{
		AccountId:      r.AccountID,
		ComplianceType: string(r.ComplianceType),
		Annotation:     r.Annotation,
		RulesAudited:   r.RulesAudited,
		Records:        r.Records,
		StartedAt:      r.StartedAt,
		DurationMs:     r.Duration().Milliseconds(),
	}
}

func MapStoreRecordToApi(r store.ComplianceRecord) api.ComplianceEvent {
	return api.ComplianceEvent{
		ConfigRuleArn:             r.ConfigRuleArn,
		ConfigRuleName:            r.ConfigRuleName,
		AccountId:                 r.AccountID,
		AwsRegion:                 r.AwsRegion,
		ResourceType:              r.ResourceType,
		ResourceId:                r.ResourceID,
		ComplianceType:            r.ComplianceType,
		WhitelistedComplianceType: r.WhitelistedComplianceType,
		Annotation:                r.Annotation,
		OrderingTimestamp:         r.OrderingTimestamp,
		EngineRecordedTime:        r.EngineRecordedTime,
	}
}

func MapRecordStatsStoreToApi(s store.RecordStats) api.EventStats {
	return api.EventStats{
		Records:          s.RecordsCount,
		LastRecordedTime: s.LastRecordedTime,
	}
}
