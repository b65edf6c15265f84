package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/compliance-engine/pkg/credentials"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/reconcile"
	"github.com/de-tools/compliance-engine/pkg/services/resolver"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
	"github.com/de-tools/compliance-engine/pkg/services/submit"
)

const (
	execRole = "arn:aws:iam::123456789012:role/config-exec"
	ruleARN  = "arn:aws:config:eu-west-1:123456789012:config-rule/config-rule-abc123"
)

var notified = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockState struct {
	mock.Mock
}

func (m *mockState) PutEvaluations(ctx context.Context, resultToken string, verdicts []domain.Verdict) ([]domain.Verdict, error) {
	args := m.Called(ctx, resultToken, verdicts)
	failed, _ := args.Get(0).([]domain.Verdict)
	return failed, args.Error(1)
}

func (m *mockState) ComplianceHistory(ctx context.Context, ruleName string, filter []domain.ComplianceType, pageToken *string) (*domain.HistoryPage, error) {
	args := m.Called(ctx, ruleName, filter, pageToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HistoryPage), args.Error(1)
}

func (m *mockState) ResourceHistory(ctx context.Context, resourceType, resourceID string, laterTime time.Time) (*domain.ConfigurationItem, error) {
	args := m.Called(ctx, resourceType, resourceID, laterTime)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConfigurationItem), args.Error(1)
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Assume(ctx context.Context, roleARN, region string) (*credentials.Lease, error) {
	args := m.Called(ctx, roleARN, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentials.Lease), args.Error(1)
}

// stubRule returns a fixed result and records the input it was evaluated with.
type stubRule struct {
	name     string
	result   domain.Result
	err      error
	required string
	calls    int
	input    rules.Input
}

func (s *stubRule) Name() string                { return s.name }
func (s *stubRule) DefaultResourceType() string { return "AWS::S3::Bucket" }

func (s *stubRule) ValidateParameters(params domain.Parameters) error {
	if s.required == "" {
		return nil
	}
	if _, ok := params.String(s.required); !ok {
		return domain.InvalidParameter("Parameter '%s' is required.", s.required)
	}
	return nil
}

func (s *stubRule) Evaluate(_ context.Context, in rules.Input) (domain.Result, error) {
	s.calls++
	s.input = in
	return s.result, s.err
}

func scheduledEvent(t *testing.T, token string) domain.TriggerEvent {
	t.Helper()
	invoking, err := json.Marshal(map[string]any{
		"messageType":              "ScheduledNotification",
		"notificationCreationTime": notified.Format(time.RFC3339),
		"awsAccountId":             "123456789012",
	})
	require.NoError(t, err)
	return domain.TriggerEvent{
		InvokingEvent:    string(invoking),
		ResultToken:      token,
		ExecutionRoleArn: execRole,
		AccountID:        "123456789012",
		ConfigRuleArn:    ruleARN,
		ConfigRuleName:   "bucket-rule",
	}
}

func newEngine(t *testing.T, rule rules.Predicate, state *mockState) (*Engine, *mockBroker) {
	t.Helper()
	registry := rules.NewRegistry()
	require.NoError(t, registry.Register(rule))

	broker := new(mockBroker)
	broker.On("Assume", mock.Anything, execRole, "eu-west-1").
		Return(&credentials.Lease{RoleARN: execRole, Region: "eu-west-1", Config: aws.Config{Region: "eu-west-1"}}, nil)

	engine := NewEngine(registry, broker, func(aws.Config) RuleState { return state }, Settings{}, nil)
	return engine, broker
}

func TestEngine_RetiresResourcesMissingFromLatestList(t *testing.T) {
	// Given history with r1 and r2, and a rule that now reports only r1
	rule := &stubRule{
		name:   "bucket-rule",
		result: domain.List(domain.NewVerdict("AWS::S3::Bucket", "r1", domain.Compliant, notified, "")),
	}
	state := new(mockState)
	state.On("ComplianceHistory", mock.Anything, "bucket-rule", reconcile.LiveTypes, (*string)(nil)).
		Return(&domain.HistoryPage{Entries: []domain.HistoryEntry{
			{ResourceType: "AWS::S3::Bucket", ResourceID: "r1", ComplianceType: domain.Compliant},
			{ResourceType: "AWS::S3::Bucket", ResourceID: "r2", ComplianceType: domain.NonCompliant},
		}}, nil)
	state.On("PutEvaluations", mock.Anything, "token-1", mock.Anything).Return(nil, nil)
	engine, broker := newEngine(t, rule, state)

	// When
	resp, err := engine.Invoke(context.Background(), "bucket-rule", scheduledEvent(t, "token-1"))

	// Then
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.NotEmpty(t, resp.InvocationID)
	assert.Equal(t, 1, resp.Retirements)
	require.Len(t, resp.Verdicts, 2)
	assert.Equal(t, "r2", resp.Verdicts[0].ResourceID)
	assert.Equal(t, domain.NotApplicable, resp.Verdicts[0].ComplianceType)
	assert.Equal(t, notified, resp.Verdicts[0].OrderingTimestamp)
	assert.Equal(t, "r1", resp.Verdicts[1].ResourceID)
	assert.Equal(t, domain.Compliant, resp.Verdicts[1].ComplianceType)

	assert.Equal(t, "123456789012", rule.input.AccountID())
	assert.Equal(t, "eu-west-1", rule.input.Lease.Region)
	assert.Equal(t, "eu-west-1", rule.input.Rule.Region)
	state.AssertExpectations(t)
	broker.AssertExpectations(t)
}

func TestEngine_TestModeSkipsSubmission(t *testing.T) {
	// Given
	rule := &stubRule{
		name:   "bucket-rule",
		result: domain.List(domain.NewVerdict("AWS::S3::Bucket", "r1", domain.NonCompliant, notified, "open")),
	}
	state := new(mockState)
	state.On("ComplianceHistory", mock.Anything, "bucket-rule", reconcile.LiveTypes, (*string)(nil)).
		Return(&domain.HistoryPage{}, nil)
	engine, _ := newEngine(t, rule, state)

	// When
	resp, err := engine.Invoke(context.Background(), "bucket-rule", scheduledEvent(t, submit.TestModeToken))

	// Then
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.True(t, resp.TestMode)
	require.Len(t, resp.Verdicts, 1)
	assert.Equal(t, "open", resp.Verdicts[0].Annotation)
	state.AssertNotCalled(t, "PutEvaluations", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_DeletedResourceOutOfScopeIsNotApplicable(t *testing.T) {
	// Given a deleted item that left the rule's scope
	captured := notified.Add(-time.Hour)
	invoking, err := json.Marshal(map[string]any{
		"messageType":              "ConfigurationItemChangeNotification",
		"notificationCreationTime": notified.Format(time.RFC3339),
		"configurationItem": map[string]any{
			"resourceType":                 "AWS::S3::Bucket",
			"resourceId":                   "gone",
			"awsAccountId":                 "123456789012",
			"configurationItemStatus":      "ResourceDeleted",
			"configurationItemCaptureTime": captured.Format(time.RFC3339),
		},
	})
	require.NoError(t, err)
	event := scheduledEvent(t, "token-2")
	event.InvokingEvent = string(invoking)
	event.EventLeftScope = true

	rule := &stubRule{name: "bucket-rule"}
	state := new(mockState)
	state.On("PutEvaluations", mock.Anything, "token-2", []domain.Verdict{
		domain.NewVerdict("AWS::S3::Bucket", "gone", domain.NotApplicable, captured, ""),
	}).Return(nil, nil)
	engine, _ := newEngine(t, rule, state)

	// When
	resp, err := engine.Invoke(context.Background(), "bucket-rule", event)

	// Then
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Zero(t, rule.calls)
	require.Len(t, resp.Verdicts, 1)
	assert.Equal(t, domain.NotApplicable, resp.Verdicts[0].ComplianceType)
	state.AssertExpectations(t)
}

func TestEngine_InvalidParametersAreCustomerErrors(t *testing.T) {
	// Given
	rule := &stubRule{name: "bucket-rule", required: "MaxAge"}
	state := new(mockState)
	engine, broker := newEngine(t, rule, state)

	// When
	resp, err := engine.Invoke(context.Background(), "bucket-rule", scheduledEvent(t, "token-3"))

	// Then
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.InvalidParameterErrorCode, resp.Error.CustomerErrorCode)
	assert.Equal(t, "Parameter 'MaxAge' is required.", resp.Error.CustomerErrorMessage)
	assert.False(t, resp.Error.Retryable())
	assert.Zero(t, rule.calls)
	broker.AssertNotCalled(t, "Assume", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_PredicateFailureIsInternal(t *testing.T) {
	// Given
	rule := &stubRule{name: "bucket-rule", err: errors.New("boom")}
	engine, _ := newEngine(t, rule, new(mockState))

	// When
	resp, err := engine.Invoke(context.Background(), "bucket-rule", scheduledEvent(t, "token-4"))

	// Then
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.InternalErrorCode, resp.Error.CustomerErrorCode)
	assert.True(t, resp.Error.Retryable())
}

func TestEngine_UnknownRule(t *testing.T) {
	// Given
	engine, _ := newEngine(t, &stubRule{name: "bucket-rule"}, new(mockState))

	// When
	resp, err := engine.Invoke(context.Background(), "missing", scheduledEvent(t, "token-5"))

	// Then
	assert.Nil(t, resp)
	assert.True(t, IsUnknownRule(err))
}

func TestNewEngine_Defaults(t *testing.T) {
	engine := NewEngine(rules.NewRegistry(), new(mockBroker), NewRuleState, Settings{}, nil)

	assert.Equal(t, resolver.DeletedAndLeftScope, engine.settings.Policy)
	assert.Equal(t, submit.DefaultMaxBatch, engine.settings.MaxBatch)
}
