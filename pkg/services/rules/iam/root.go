package iam

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
)

const (
	RootMFAEnabled  = "ROOT_MFA_ENABLED"
	RootNoAccessKey = "ROOT_NO_ACCESS_KEY"
	RootNoRecentUse = "ROOT_NO_RECENT_USE"

	recentUseWindow = 24 * time.Hour
)

// API is the subset of IAM the root account checks use.
type API interface {
	GetAccountSummary(ctx context.Context, params *iam.GetAccountSummaryInput, optFns ...func(*iam.Options)) (*iam.GetAccountSummaryOutput, error)
	GenerateCredentialReport(ctx context.Context, params *iam.GenerateCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GenerateCredentialReportOutput, error)
	GetCredentialReport(ctx context.Context, params *iam.GetCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GetCredentialReportOutput, error)
}

type ClientFactory func(cfg aws.Config) API

func NewClient(cfg aws.Config) API {
	return iam.NewFromConfig(cfg)
}

type accountRule struct {
	clients ClientFactory
}

func (accountRule) DefaultResourceType() string {
	return domain.AccountResourceType
}

func (accountRule) ValidateParameters(domain.Parameters) error {
	return nil
}

type rootMFA struct {
	accountRule
}

// NewRootMFAEnabled checks that the root user has an MFA device.
func NewRootMFAEnabled(clients ClientFactory) rules.Predicate {
	return &rootMFA{accountRule{clients: clients}}
}

func (r *rootMFA) Name() string {
	return RootMFAEnabled
}

func (r *rootMFA) Evaluate(ctx context.Context, in rules.Input) (domain.Result, error) {
	out, err := r.clients(in.Lease.Config).GetAccountSummary(ctx, &iam.GetAccountSummaryInput{})
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to get account summary: %w", err)
	}
	if out.SummaryMap["AccountMFAEnabled"] != 1 {
		return domain.Single(in.AccountVerdict(domain.NonCompliant, "The root user has no MFA device.")), nil
	}
	return domain.Single(in.AccountVerdict(domain.Compliant, "The root user has an MFA device.")), nil
}

type rootNoAccessKey struct {
	accountRule
	polling Polling
}

// NewRootNoAccessKey checks that the root user has no active access key.
func NewRootNoAccessKey(clients ClientFactory, polling Polling) rules.Predicate {
	return &rootNoAccessKey{accountRule: accountRule{clients: clients}, polling: polling}
}

func (r *rootNoAccessKey) Name() string {
	return RootNoAccessKey
}

func (r *rootNoAccessKey) Evaluate(ctx context.Context, in rules.Input) (domain.Result, error) {
	root, err := FetchRootCredentials(ctx, r.clients(in.Lease.Config), r.polling)
	if err != nil {
		return domain.Result{}, err
	}
	if root.AccessKey1Active || root.AccessKey2Active {
		return domain.Single(in.AccountVerdict(domain.NonCompliant, "The root user has an active access key.")), nil
	}
	return domain.Single(in.AccountVerdict(domain.Compliant, "The root user has no active access key.")), nil
}

type rootNoRecentUse struct {
	accountRule
	polling Polling
	now     func() time.Time
}

// NewRootNoRecentUse checks that no root credential was used in the last 24 hours.
func NewRootNoRecentUse(clients ClientFactory, polling Polling) rules.Predicate {
	return &rootNoRecentUse{
		accountRule: accountRule{clients: clients},
		polling:     polling,
		now:         time.Now,
	}
}

func (r *rootNoRecentUse) Name() string {
	return RootNoRecentUse
}

func (r *rootNoRecentUse) Evaluate(ctx context.Context, in rules.Input) (domain.Result, error) {
	root, err := FetchRootCredentials(ctx, r.clients(in.Lease.Config), r.polling)
	if err != nil {
		return domain.Result{}, err
	}

	now := r.now().UTC()
	var used []string
	for credential, value := range root.LastUsed() {
		recent, err := usedWithin(value, now, recentUseWindow)
		if err != nil {
			return domain.Result{}, err
		}
		if recent {
			used = append(used, credential)
		}
	}
	if len(used) == 0 {
		return domain.Single(in.AccountVerdict(domain.Compliant, "The root user was not used in the last 24 hours.")), nil
	}

	sort.Strings(used)
	zerolog.Ctx(ctx).Warn().Strs("credentials", used).Msg("root user used recently")
	return domain.Single(in.AccountVerdict(domain.NonCompliant,
		fmt.Sprintf("The root user was used in the last 24 hours (%s).", strings.Join(used, ", ")))), nil
}
