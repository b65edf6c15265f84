package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/arn"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

const (
	DefaultSessionPrefix = "compliance-engine"
	DefaultLeaseDuration = 900 * time.Second
	DefaultMaxAttempts   = 5

	assumeRoleDeniedMessage = "AWS Config does not have permission to assume the IAM role."
)

// STSClient is the subset of the STS API used to mint leases.
type STSClient interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Broker mints short-lived, region-scoped credential leases.
type Broker interface {
	Assume(ctx context.Context, roleARN, region string) (*Lease, error)
}

type Settings struct {
	SessionPrefix string        `mapstructure:"session_prefix"`
	Duration      time.Duration `mapstructure:"duration"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	// Disabled evaluates with the base credentials instead of assuming the
	// execution role. Only sensible when rules run in the audited account.
	Disabled bool `mapstructure:"disabled"`
}

// Lease is a set of temporary credentials bound to one role and one region.
// It is never cached between invocations.
type Lease struct {
	RoleARN string
	Region  string
	Expires time.Time
	Config  aws.Config
}

func (l *Lease) Expired(now time.Time) bool {
	return !l.Expires.IsZero() && !now.Before(l.Expires)
}

type broker struct {
	base     aws.Config
	client   STSClient
	settings Settings
	now      func() time.Time
}

func NewBroker(base aws.Config, client STSClient, settings Settings) Broker {
	if settings.SessionPrefix == "" {
		settings.SessionPrefix = DefaultSessionPrefix
	}
	if settings.Duration <= 0 {
		settings.Duration = DefaultLeaseDuration
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = DefaultMaxAttempts
	}
	return &broker{
		base:     base,
		client:   client,
		settings: settings,
		now:      time.Now,
	}
}

func (b *broker) Assume(ctx context.Context, roleARN, region string) (*Lease, error) {
	logger := zerolog.Ctx(ctx)

	if b.settings.Disabled {
		cfg := b.regional(region)
		return &Lease{RoleARN: roleARN, Region: cfg.Region, Config: cfg}, nil
	}

	if _, err := arn.ParseRole(roleARN); err != nil {
		return nil, domain.InvalidParameter("execution role: %v", err)
	}

	session := fmt.Sprintf("%s-%s", b.settings.SessionPrefix, uuid.NewString())
	out, err := b.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(session),
		DurationSeconds: aws.Int32(int32(b.settings.Duration / time.Second)),
	})
	if err != nil {
		logger.Error().Err(err).Str("role", roleARN).Msg("assume role failed")
		return nil, scrub(err)
	}
	if out.Credentials == nil {
		return nil, &domain.RuleError{
			Kind:            domain.KindInternal,
			Code:            domain.InternalErrorCode,
			InternalMessage: "assume role returned no credentials",
			Err:             domain.ErrAssumeRoleTransient,
		}
	}

	expires := b.now().Add(b.settings.Duration)
	if out.Credentials.Expiration != nil && out.Credentials.Expiration.Before(expires) {
		expires = *out.Credentials.Expiration
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "AssumeRole",
		CanExpire:       true,
		Expires:         expires,
	}

	cfg := b.regional(region)
	cfg.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		if !b.now().Before(expires) {
			return aws.Credentials{}, fmt.Errorf("%w: %s", domain.ErrLeaseExpired, roleARN)
		}
		return creds, nil
	})

	logger.Debug().
		Str("role", roleARN).
		Str("region", cfg.Region).
		Time("expires", expires).
		Msg("lease minted")

	return &Lease{RoleARN: roleARN, Region: cfg.Region, Expires: expires, Config: cfg}, nil
}

func (b *broker) regional(region string) aws.Config {
	cfg := b.base.Copy()
	if region != "" {
		cfg.Region = region
	}
	attempts := b.settings.MaxAttempts
	cfg.Retryer = func() aws.Retryer {
		return retry.AddWithMaxAttempts(retry.NewStandard(), attempts)
	}
	return cfg
}

// scrub hides the STS failure detail from the operator-facing message.
func scrub(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == domain.AccessDeniedErrorCode {
		return &domain.RuleError{
			Kind:            domain.KindCustomer,
			Code:            domain.AccessDeniedErrorCode,
			CustomerMessage: assumeRoleDeniedMessage,
			InternalMessage: assumeRoleDeniedMessage,
			Err:             domain.ErrAssumeRoleDenied,
		}
	}
	return &domain.RuleError{
		Kind:            domain.KindInternal,
		Code:            domain.InternalErrorCode,
		InternalMessage: "unexpected error while assuming role",
		Err:             fmt.Errorf("%w: %v", domain.ErrAssumeRoleTransient, err),
	}
}
