package configservice

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice/types"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

func toEvaluation(v domain.Verdict) types.Evaluation {
	e := types.Evaluation{
		ComplianceResourceType: aws.String(v.ResourceType),
		ComplianceResourceId:   aws.String(v.ResourceID),
		ComplianceType:         types.ComplianceType(v.ComplianceType),
		OrderingTimestamp:      aws.Time(v.OrderingTimestamp),
	}
	if v.Annotation != "" {
		e.Annotation = aws.String(v.Annotation)
	}
	return e
}

func fromEvaluation(e types.Evaluation) domain.Verdict {
	return domain.Verdict{
		ResourceType:      aws.ToString(e.ComplianceResourceType),
		ResourceID:        aws.ToString(e.ComplianceResourceId),
		ComplianceType:    domain.ComplianceType(e.ComplianceType),
		Annotation:        aws.ToString(e.Annotation),
		OrderingTimestamp: aws.ToTime(e.OrderingTimestamp),
	}
}

func fromEvaluationResult(ruleName string, r types.EvaluationResult) domain.HistoryEntry {
	entry := domain.HistoryEntry{
		RuleName:              ruleName,
		ComplianceType:        domain.ComplianceType(r.ComplianceType),
		Annotation:            aws.ToString(r.Annotation),
		ResultRecordedTime:    aws.ToTime(r.ResultRecordedTime),
		ConfigRuleInvokedTime: aws.ToTime(r.ConfigRuleInvokedTime),
	}
	if id := r.EvaluationResultIdentifier; id != nil {
		entry.OrderingTimestamp = aws.ToTime(id.OrderingTimestamp)
		if q := id.EvaluationResultQualifier; q != nil {
			entry.ResourceType = aws.ToString(q.ResourceType)
			entry.ResourceID = aws.ToString(q.ResourceId)
			if q.ConfigRuleName != nil {
				entry.RuleName = *q.ConfigRuleName
			}
		}
	}
	return entry
}

func fromConfigRule(r types.ConfigRule) domain.LiveRule {
	rule := domain.LiveRule{
		Name:  aws.ToString(r.ConfigRuleName),
		ARN:   aws.ToString(r.ConfigRuleArn),
		State: string(r.ConfigRuleState),
	}
	if r.Scope != nil {
		rule.Scope = &domain.Scope{
			ComplianceResourceID:    aws.ToString(r.Scope.ComplianceResourceId),
			ComplianceResourceTypes: r.Scope.ComplianceResourceTypes,
			TagKey:                  aws.ToString(r.Scope.TagKey),
			TagValue:                aws.ToString(r.Scope.TagValue),
		}
	}
	if r.Source != nil {
		rule.Source = &domain.RuleSource{
			Owner:            string(r.Source.Owner),
			SourceIdentifier: aws.ToString(r.Source.SourceIdentifier),
		}
		for _, d := range r.Source.SourceDetails {
			rule.Source.SourceDetails = append(rule.Source.SourceDetails, domain.SourceDetail{
				EventSource:               string(d.EventSource),
				MessageType:               string(d.MessageType),
				MaximumExecutionFrequency: string(d.MaximumExecutionFrequency),
			})
		}
	}
	return rule
}

func fromConfigurationItem(ci types.ConfigurationItem) domain.ConfigurationItem {
	item := domain.ConfigurationItem{
		ResourceType: string(ci.ResourceType),
		ResourceID:   aws.ToString(ci.ResourceId),
		ResourceName: aws.ToString(ci.ResourceName),
		ARN:          aws.ToString(ci.Arn),
		AwsAccountID: aws.ToString(ci.AccountId),
		AwsRegion:    aws.ToString(ci.AwsRegion),
		Status:       domain.ItemStatus(ci.ConfigurationItemStatus),
		CaptureTime:  aws.ToTime(ci.ConfigurationItemCaptureTime),
		Tags:         ci.Tags,
	}
	if ci.Configuration != nil && json.Valid([]byte(*ci.Configuration)) {
		item.Configuration = json.RawMessage(*ci.Configuration)
	}
	return item
}
