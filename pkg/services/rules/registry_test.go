package rules

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

type stubPredicate struct {
	name string
}

func (s stubPredicate) Name() string                               { return s.name }
func (s stubPredicate) DefaultResourceType() string                { return domain.AccountResourceType }
func (s stubPredicate) ValidateParameters(domain.Parameters) error { return nil }
func (s stubPredicate) Evaluate(context.Context, Input) (domain.Result, error) {
	return domain.Shadow(), nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(stubPredicate{name: "B_RULE"}))
	require.NoError(t, reg.Register(stubPredicate{name: "A_RULE"}))

	t.Run("duplicate", func(t *testing.T) {
		assert.Error(t, reg.Register(stubPredicate{name: "A_RULE"}))
	})
	t.Run("empty name", func(t *testing.T) {
		assert.Error(t, reg.Register(stubPredicate{}))
	})
	t.Run("nil predicate", func(t *testing.T) {
		assert.Error(t, reg.Register(nil))
	})
	t.Run("lookup", func(t *testing.T) {
		p, err := reg.Get("A_RULE")
		require.NoError(t, err)
		assert.Equal(t, "A_RULE", p.Name())
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := reg.Get("MISSING")
		assert.ErrorIs(t, err, domain.ErrRuleNotFound)
	})
	t.Run("sorted listing", func(t *testing.T) {
		assert.Equal(t, []string{"A_RULE", "B_RULE"}, reg.List())
	})
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

func TestRegions(t *testing.T) {
	api := new(mockRegions)
	api.On("DescribeRegions", mock.Anything, mock.Anything).Return(&ec2.DescribeRegionsOutput{
		Regions: []ec2types.Region{
			{RegionName: aws.String("eu-west-1")},
			{RegionName: nil},
			{RegionName: aws.String("us-east-1")},
		},
	}, nil)

	regions, err := Regions(context.Background(), api)

	require.NoError(t, err)
	assert.Equal(t, []string{"eu-west-1", "us-east-1"}, regions)
}

func TestRegions_Error(t *testing.T) {
	api := new(mockRegions)
	api.On("DescribeRegions", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	_, err := Regions(context.Background(), api)

	assert.ErrorIs(t, err, assert.AnError)
}

func TestInput_Defaults(t *testing.T) {
	in := Input{Event: domain.TriggerEvent{AccountID: "123456789012"}}

	assert.True(t, in.OrderedAt().IsZero())
	assert.Equal(t, "123456789012", in.AccountID())
}
