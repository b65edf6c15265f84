package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
)

// IdentityAPI is the STS call used to discover the home account.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// LoadAWS builds the base AWS configuration from the shared config chain.
func (c *Config) LoadAWS(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.AWS.Profile))
	}
	if c.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.AWS.Region))
	}
	if c.AWS.MaxAttempts > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(c.AWS.MaxAttempts))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// ResolveHome fills the drift home account and region from the caller
// identity and the base configuration when they are not configured.
func (c *Config) ResolveHome(ctx context.Context, base aws.Config, identity IdentityAPI) error {
	if c.Drift.HomeRegion == "" {
		c.Drift.HomeRegion = base.Region
	}
	if c.Drift.HomeAccount != "" {
		return nil
	}
	out, err := identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("failed to resolve home account: %w", err)
	}
	c.Drift.HomeAccount = aws.ToString(out.Account)
	zerolog.Ctx(ctx).Debug().Str("account", c.Drift.HomeAccount).Msg("home account resolved from caller identity")
	return nil
}
