package kms

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/compliance-engine/pkg/credentials"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
)

type mockKMS struct {
	mock.Mock
}

func (m *mockKMS) ListKeys(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kms.ListKeysOutput), args.Error(1)
}

func (m *mockKMS) DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	args := m.Called(ctx, aws.ToString(params.KeyId))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kms.DescribeKeyOutput), args.Error(1)
}

func (m *mockKMS) GetKeyRotationStatus(ctx context.Context, params *kms.GetKeyRotationStatusInput, optFns ...func(*kms.Options)) (*kms.GetKeyRotationStatusOutput, error) {
	args := m.Called(ctx, aws.ToString(params.KeyId))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kms.GetKeyRotationStatusOutput), args.Error(1)
}

type mockRegions struct {
	mock.Mock
}

func (m *mockRegions) DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2.DescribeRegionsOutput), args.Error(1)
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

const role = "arn:aws:iam::123456789012:role/config-exec"

var notified = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func key(id string) kmstypes.KeyListEntry {
	return kmstypes.KeyListEntry{
		KeyId:  aws.String(id),
		KeyArn: aws.String("arn:aws:kms:eu-west-1:123456789012:key/" + id),
	}
}

func managedBy(manager kmstypes.KeyManagerType) *kms.DescribeKeyOutput {
	return &kms.DescribeKeyOutput{KeyMetadata: &kmstypes.KeyMetadata{KeyManager: manager}}
}

func TestCMKRotationEnabled(t *testing.T) {
	// Given
	regions := new(mockRegions)
	regions.On("DescribeRegions", mock.Anything, mock.Anything).Return(&ec2.DescribeRegionsOutput{
		Regions: []ec2types.Region{{RegionName: aws.String("eu-west-1")}, {RegionName: aws.String("us-east-1")}},
	}, nil)

	broker := new(mockBroker)
	broker.On("Assume", mock.Anything, role, "eu-west-1").
		Return(&credentials.Lease{Region: "eu-west-1", Config: aws.Config{Region: "eu-west-1"}}, nil).Once()
	broker.On("Assume", mock.Anything, role, "us-east-1").
		Return(&credentials.Lease{Region: "us-east-1", Config: aws.Config{Region: "us-east-1"}}, nil).Once()

	euKeys := new(mockKMS)
	euKeys.On("ListKeys", mock.Anything, &kms.ListKeysInput{}).Return(&kms.ListKeysOutput{
		Keys:       []kmstypes.KeyListEntry{key("rotated"), key("aws-managed")},
		Truncated:  true,
		NextMarker: aws.String("m1"),
	}, nil)
	euKeys.On("ListKeys", mock.Anything, &kms.ListKeysInput{Marker: aws.String("m1")}).Return(&kms.ListKeysOutput{
		Keys: []kmstypes.KeyListEntry{key("stale")},
	}, nil)
	euKeys.On("DescribeKey", mock.Anything, "rotated").Return(managedBy(kmstypes.KeyManagerTypeCustomer), nil)
	euKeys.On("DescribeKey", mock.Anything, "aws-managed").Return(managedBy(kmstypes.KeyManagerTypeAws), nil)
	euKeys.On("DescribeKey", mock.Anything, "stale").Return(managedBy(kmstypes.KeyManagerTypeCustomer), nil)
	euKeys.On("GetKeyRotationStatus", mock.Anything, "rotated").Return(&kms.GetKeyRotationStatusOutput{KeyRotationEnabled: true}, nil)
	euKeys.On("GetKeyRotationStatus", mock.Anything, "stale").Return(&kms.GetKeyRotationStatusOutput{KeyRotationEnabled: false}, nil)

	usKeys := new(mockKMS)
	usKeys.On("ListKeys", mock.Anything, mock.Anything).Return(&kms.ListKeysOutput{}, nil)

	p := NewCMKRotationEnabled(
		func(cfg aws.Config) API {
			if cfg.Region == "eu-west-1" {
				return euKeys
			}
			return usKeys
		},
		func(aws.Config) rules.RegionAPI { return regions },
	)

	// When
	result, err := p.Evaluate(context.Background(), rules.Input{
		Invoking: &domain.InvokingEvent{NotificationCreationTime: notified},
		Lease:    &credentials.Lease{RoleARN: role, Region: "eu-west-1"},
		Broker:   broker,
	})

	// Then
	require.NoError(t, err)
	assert.Equal(t, domain.ResultList, result.Kind())
	verdicts := result.Verdicts()
	require.Len(t, verdicts, 2)
	assert.Equal(t, "arn:aws:kms:eu-west-1:123456789012:key/rotated", verdicts[0].ResourceID)
	assert.Equal(t, domain.Compliant, verdicts[0].ComplianceType)
	assert.Equal(t, "The yearly rotation is activated for this key.", verdicts[0].Annotation)
	assert.Equal(t, domain.NonCompliant, verdicts[1].ComplianceType)
	assert.Equal(t, KeyResourceType, verdicts[1].ResourceType)
	assert.Equal(t, notified, verdicts[1].OrderingTimestamp)
	euKeys.AssertNotCalled(t, "GetKeyRotationStatus", mock.Anything, "aws-managed")
	broker.AssertExpectations(t)
}

func TestCMKRotationEnabled_LeaseFailure(t *testing.T) {
	regions := new(mockRegions)
	regions.On("DescribeRegions", mock.Anything, mock.Anything).Return(&ec2.DescribeRegionsOutput{
		Regions: []ec2types.Region{{RegionName: aws.String("eu-west-1")}},
	}, nil)
	broker := new(mockBroker)
	broker.On("Assume", mock.Anything, role, "eu-west-1").Return(nil, domain.ErrAssumeRoleDenied)

	p := NewCMKRotationEnabled(nil, func(aws.Config) rules.RegionAPI { return regions })
	_, err := p.Evaluate(context.Background(), rules.Input{
		Lease:  &credentials.Lease{RoleARN: role},
		Broker: broker,
	})

	assert.ErrorIs(t, err, domain.ErrAssumeRoleDenied)
}
