package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/de-tools/compliance-engine/pkg/credentials"
	"github.com/de-tools/compliance-engine/pkg/services/drift"
	"github.com/de-tools/compliance-engine/pkg/services/evaluation"
	"github.com/de-tools/compliance-engine/pkg/services/mirror"
	"github.com/de-tools/compliance-engine/pkg/services/resolver"
	"github.com/de-tools/compliance-engine/pkg/services/submit"
	"github.com/de-tools/compliance-engine/pkg/services/whitelist"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
)

const EnvPrefix = "COMPLIANCE"

type Config struct {
	Log         LogConfig            `mapstructure:"log"`
	AWS         AWSConfig            `mapstructure:"aws"`
	Credentials credentials.Settings `mapstructure:"credentials"`
	Evaluation  evaluation.Settings  `mapstructure:"evaluation"`
	Drift       drift.Settings       `mapstructure:"drift"`
	Mirror      mirror.RunnerConfig  `mapstructure:"mirror"`
	Store       duckdb.Settings      `mapstructure:"store"`
	Server      ServerConfig         `mapstructure:"server"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AWSConfig struct {
	Profile     string `mapstructure:"profile"`
	Region      string `mapstructure:"region"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

var defaults = map[string]any{
	"log.level": "info",

	"aws.profile":      "",
	"aws.region":       "",
	"aws.max_attempts": 5,

	"credentials.session_prefix": credentials.DefaultSessionPrefix,
	"credentials.duration":       credentials.DefaultLeaseDuration,
	"credentials.max_attempts":   credentials.DefaultMaxAttempts,
	"credentials.disabled":       false,

	"evaluation.applicability_policy": string(resolver.DeletedAndLeftScope),
	"evaluation.max_batch":            submit.DefaultMaxBatch,

	"drift.bucket_prefix":    drift.DefaultBucketPrefix,
	"drift.default_template": drift.DefaultTemplate,
	"drift.pipeline_name":    drift.DefaultPipelineName,
	"drift.pipeline_role":    drift.DefaultPipelineRole,
	"drift.main_region":      "",
	"drift.stream":           drift.DefaultStream,
	"drift.rule_interval":    drift.DefaultRuleInterval,
	"drift.whitelist":        whitelist.Disabled,
	"drift.home_account":     "",
	"drift.home_region":      "",
	"drift.partition":        drift.DefaultPartition,

	"mirror.sync_interval":  mirror.DefaultSyncInterval,
	"mirror.retry_interval": mirror.DefaultRetryInterval,

	"store.path":    "compliance-engine.db",
	"store.threads": 4,

	"server.host": "localhost",
	"server.port": "8080",
}

// Load reads the optional configuration file at path and applies
// COMPLIANCE_* environment overrides, e.g. COMPLIANCE_DRIFT_HOME_ACCOUNT.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	policy, err := resolver.ParsePolicy(string(c.Evaluation.Policy))
	if err != nil {
		return err
	}
	c.Evaluation.Policy = policy
	if c.Evaluation.MaxBatch <= 0 {
		return fmt.Errorf("evaluation.max_batch must be positive, got %d", c.Evaluation.MaxBatch)
	}
	if c.Credentials.Duration < 15*time.Minute {
		return fmt.Errorf("credentials.duration must be at least 15m, got %s", c.Credentials.Duration)
	}
	if c.Mirror.SyncInterval <= 0 || c.Mirror.RetryInterval <= 0 {
		return fmt.Errorf("mirror intervals must be positive, got %s and %s", c.Mirror.SyncInterval, c.Mirror.RetryInterval)
	}
	if _, err := c.WhitelistLocation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WhitelistLocation returns nil when whitelisting is disabled.
func (c *Config) WhitelistLocation() (*whitelist.Location, error) {
	return whitelist.ParseLocation(c.Drift.Whitelist)
}
