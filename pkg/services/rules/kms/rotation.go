package kms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
)

const (
	CMKRotationEnabled = "KMS_CMK_ROTATION_ENABLED"
	KeyResourceType    = "AWS::KMS::Key"
)

type API interface {
	ListKeys(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error)
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	GetKeyRotationStatus(ctx context.Context, params *kms.GetKeyRotationStatusInput, optFns ...func(*kms.Options)) (*kms.GetKeyRotationStatusOutput, error)
}

type ClientFactory func(cfg aws.Config) API

type RegionFactory func(cfg aws.Config) rules.RegionAPI

func NewClient(cfg aws.Config) API {
	return kms.NewFromConfig(cfg)
}

func NewRegionClient(cfg aws.Config) rules.RegionAPI {
	return ec2.NewFromConfig(cfg)
}

type rotation struct {
	keys    ClientFactory
	regions RegionFactory
}

// NewCMKRotationEnabled checks that yearly rotation is on for every
// customer-managed key in every enabled region.
func NewCMKRotationEnabled(keys ClientFactory, regions RegionFactory) rules.Predicate {
	return &rotation{keys: keys, regions: regions}
}

func (r *rotation) Name() string {
	return CMKRotationEnabled
}

func (r *rotation) DefaultResourceType() string {
	return KeyResourceType
}

func (r *rotation) ValidateParameters(domain.Parameters) error {
	return nil
}

func (r *rotation) Evaluate(ctx context.Context, in rules.Input) (domain.Result, error) {
	logger := zerolog.Ctx(ctx)

	regions, err := rules.Regions(ctx, r.regions(in.Lease.Config))
	if err != nil {
		return domain.Result{}, err
	}

	var verdicts []domain.Verdict
	for _, region := range regions {
		lease, err := in.Assume(ctx, region)
		if err != nil {
			return domain.Result{}, err
		}
		regional, err := r.evaluateRegion(ctx, r.keys(lease.Config), in)
		if err != nil {
			return domain.Result{}, fmt.Errorf("region %s: %w", region, err)
		}
		logger.Debug().Str("region", region).Int("keys", len(regional)).Msg("customer managed keys evaluated")
		verdicts = append(verdicts, regional...)
	}
	return domain.List(verdicts...), nil
}

func (r *rotation) evaluateRegion(ctx context.Context, api API, in rules.Input) ([]domain.Verdict, error) {
	var verdicts []domain.Verdict
	var marker *string
	for {
		page, err := api.ListKeys(ctx, &kms.ListKeysInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("failed to list keys: %w", err)
		}
		for _, key := range page.Keys {
			v, ok, err := evaluateKey(ctx, api, key, in)
			if err != nil {
				return nil, err
			}
			if ok {
				verdicts = append(verdicts, v)
			}
		}
		if !page.Truncated || page.NextMarker == nil {
			return verdicts, nil
		}
		marker = page.NextMarker
	}
}

func evaluateKey(ctx context.Context, api API, key kmstypes.KeyListEntry, in rules.Input) (domain.Verdict, bool, error) {
	desc, err := api.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: key.KeyId})
	if err != nil {
		return domain.Verdict{}, false, fmt.Errorf("failed to describe key %s: %w", aws.ToString(key.KeyId), err)
	}
	if desc.KeyMetadata == nil || desc.KeyMetadata.KeyManager == kmstypes.KeyManagerTypeAws {
		return domain.Verdict{}, false, nil
	}

	status, err := api.GetKeyRotationStatus(ctx, &kms.GetKeyRotationStatusInput{KeyId: key.KeyId})
	if err != nil {
		return domain.Verdict{}, false, fmt.Errorf("failed to get rotation status of key %s: %w", aws.ToString(key.KeyId), err)
	}

	id := aws.ToString(key.KeyArn)
	if status.KeyRotationEnabled {
		return domain.NewVerdict(KeyResourceType, id, domain.Compliant, in.OrderedAt(),
			"The yearly rotation is activated for this key."), true, nil
	}
	return domain.NewVerdict(KeyResourceType, id, domain.NonCompliant, in.OrderedAt(),
		"The yearly rotation is not activated for this key."), true, nil
}
