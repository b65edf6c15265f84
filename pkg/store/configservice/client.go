package configservice

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/configservice/types"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

// PageSize is the largest page the rule-state service returns for
// compliance details.
const PageSize = 100

// API is the subset of the AWS Config API used by the engine.
type API interface {
	PutEvaluations(ctx context.Context, params *configservice.PutEvaluationsInput, optFns ...func(*configservice.Options)) (*configservice.PutEvaluationsOutput, error)
	GetComplianceDetailsByConfigRule(ctx context.Context, params *configservice.GetComplianceDetailsByConfigRuleInput, optFns ...func(*configservice.Options)) (*configservice.GetComplianceDetailsByConfigRuleOutput, error)
	DescribeConfigRules(ctx context.Context, params *configservice.DescribeConfigRulesInput, optFns ...func(*configservice.Options)) (*configservice.DescribeConfigRulesOutput, error)
	GetResourceConfigHistory(ctx context.Context, params *configservice.GetResourceConfigHistoryInput, optFns ...func(*configservice.Options)) (*configservice.GetResourceConfigHistoryOutput, error)
}

// Client talks to the rule-state service in domain terms.
type Client interface {
	// PutEvaluations commits one batch and returns the verdicts the service rejected.
	PutEvaluations(ctx context.Context, resultToken string, verdicts []domain.Verdict) ([]domain.Verdict, error)
	// ComplianceHistory returns one page of prior results for a rule. An empty
	// filter returns every compliance type.
	ComplianceHistory(ctx context.Context, ruleName string, filter []domain.ComplianceType, pageToken *string) (*domain.HistoryPage, error)
	DescribeRules(ctx context.Context, pageToken *string) (*domain.RulePage, error)
	// ResourceHistory returns the newest configuration item captured no later
	// than laterTime, or nil when there is none.
	ResourceHistory(ctx context.Context, resourceType, resourceID string, laterTime time.Time) (*domain.ConfigurationItem, error)
}

type client struct {
	api API
}

func NewClient(api API) Client {
	return &client{api: api}
}

func NewFromConfig(cfg aws.Config) Client {
	return NewClient(configservice.NewFromConfig(cfg))
}

func (c *client) PutEvaluations(ctx context.Context, resultToken string, verdicts []domain.Verdict) ([]domain.Verdict, error) {
	evaluations := make([]types.Evaluation, 0, len(verdicts))
	for _, v := range verdicts {
		evaluations = append(evaluations, toEvaluation(v))
	}

	out, err := c.api.PutEvaluations(ctx, &configservice.PutEvaluationsInput{
		ResultToken: aws.String(resultToken),
		Evaluations: evaluations,
	})
	if err != nil {
		return nil, fmt.Errorf("put evaluations: %w", err)
	}

	failed := make([]domain.Verdict, 0, len(out.FailedEvaluations))
	for _, e := range out.FailedEvaluations {
		failed = append(failed, fromEvaluation(e))
	}
	return failed, nil
}

func (c *client) ComplianceHistory(ctx context.Context, ruleName string, filter []domain.ComplianceType, pageToken *string) (*domain.HistoryPage, error) {
	input := &configservice.GetComplianceDetailsByConfigRuleInput{
		ConfigRuleName: aws.String(ruleName),
		Limit:          PageSize,
		NextToken:      pageToken,
	}
	for _, ct := range filter {
		input.ComplianceTypes = append(input.ComplianceTypes, types.ComplianceType(ct))
	}

	out, err := c.api.GetComplianceDetailsByConfigRule(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get compliance details for %s: %w", ruleName, err)
	}

	page := &domain.HistoryPage{
		Entries:   make([]domain.HistoryEntry, 0, len(out.EvaluationResults)),
		NextToken: nonEmpty(out.NextToken),
	}
	for _, r := range out.EvaluationResults {
		page.Entries = append(page.Entries, fromEvaluationResult(ruleName, r))
	}
	return page, nil
}

func (c *client) DescribeRules(ctx context.Context, pageToken *string) (*domain.RulePage, error) {
	out, err := c.api.DescribeConfigRules(ctx, &configservice.DescribeConfigRulesInput{
		NextToken: pageToken,
	})
	if err != nil {
		return nil, fmt.Errorf("describe config rules: %w", err)
	}

	page := &domain.RulePage{
		Rules:     make([]domain.LiveRule, 0, len(out.ConfigRules)),
		NextToken: nonEmpty(out.NextToken),
	}
	for _, r := range out.ConfigRules {
		page.Rules = append(page.Rules, fromConfigRule(r))
	}
	return page, nil
}

func (c *client) ResourceHistory(ctx context.Context, resourceType, resourceID string, laterTime time.Time) (*domain.ConfigurationItem, error) {
	out, err := c.api.GetResourceConfigHistory(ctx, &configservice.GetResourceConfigHistoryInput{
		ResourceType: types.ResourceType(resourceType),
		ResourceId:   aws.String(resourceID),
		LaterTime:    aws.Time(laterTime),
		Limit:        1,
	})
	if err != nil {
		return nil, fmt.Errorf("get resource config history for %s/%s: %w", resourceType, resourceID, err)
	}
	if len(out.ConfigurationItems) == 0 {
		return nil, nil
	}
	item := fromConfigurationItem(out.ConfigurationItems[0])
	return &item, nil
}

func nonEmpty(token *string) *string {
	if token == nil || *token == "" {
		return nil
	}
	return token
}
