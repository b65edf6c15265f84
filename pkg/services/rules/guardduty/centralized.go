package guardduty

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/de-tools/compliance-engine/pkg/arn"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
)

const (
	EnabledCentralized = "GUARDDUTY_ENABLED_CENTRALIZED"

	// CentralAccountParameter names the account expected to administer GuardDuty.
	CentralAccountParameter = "CentralMonitoringAccount"

	relationshipMonitored = "Monitored"
)

type API interface {
	ListDetectors(ctx context.Context, params *guardduty.ListDetectorsInput, optFns ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error)
	GetDetector(ctx context.Context, params *guardduty.GetDetectorInput, optFns ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error)
	GetMasterAccount(ctx context.Context, params *guardduty.GetMasterAccountInput, optFns ...func(*guardduty.Options)) (*guardduty.GetMasterAccountOutput, error)
}

type ClientFactory func(cfg aws.Config) API

func NewClient(cfg aws.Config) API {
	return guardduty.NewFromConfig(cfg)
}

type centralized struct {
	clients ClientFactory
}

// NewEnabledCentralized checks that GuardDuty is enabled and, when a central
// monitoring account is configured, that findings flow to that account.
func NewEnabledCentralized(clients ClientFactory) rules.Predicate {
	return &centralized{clients: clients}
}

func (c *centralized) Name() string {
	return EnabledCentralized
}

func (c *centralized) DefaultResourceType() string {
	return domain.AccountResourceType
}

func (c *centralized) ValidateParameters(params domain.Parameters) error {
	central, ok := params.String(CentralAccountParameter)
	if !ok {
		return nil
	}
	if !arn.IsAccountID(central) {
		return domain.InvalidParameter("Parameter '%s' is not a valid AWS account (12-digit string).", CentralAccountParameter)
	}
	return nil
}

func (c *centralized) Evaluate(ctx context.Context, in rules.Input) (domain.Result, error) {
	if in.Invoking != nil && in.Invoking.MessageType != domain.MessageTypeScheduled {
		return domain.Result{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMessageType, in.Invoking.MessageType)
	}

	api := c.clients(in.Lease.Config)
	central, _ := in.Parameters.String(CentralAccountParameter)
	verdict := func(ct domain.ComplianceType, annotation string) (domain.Result, error) {
		return domain.Single(in.AccountVerdict(ct, annotation)), nil
	}

	detectors, err := listDetectors(ctx, api)
	if err != nil {
		return domain.Result{}, err
	}
	if len(detectors) == 0 {
		return verdict(domain.NonCompliant, "GuardDuty is not configured.")
	}

	var (
		enabled        bool
		master         string
		expectedMaster bool
	)
	for _, id := range detectors {
		detector, err := api.GetDetector(ctx, &guardduty.GetDetectorInput{DetectorId: aws.String(id)})
		if err != nil {
			return domain.Result{}, fmt.Errorf("failed to get detector %s: %w", id, err)
		}
		if detector.Status != gdtypes.DetectorStatusEnabled {
			continue
		}
		enabled = true

		if central == "" {
			return verdict(domain.Compliant, "GuardDuty is enabled.")
		}
		if central == in.AccountID() {
			return verdict(domain.Compliant, "GuardDuty is enabled and this account is the centralized account.")
		}

		out, err := api.GetMasterAccount(ctx, &guardduty.GetMasterAccountInput{DetectorId: aws.String(id)})
		if err != nil {
			return domain.Result{}, fmt.Errorf("failed to get master account of detector %s: %w", id, err)
		}
		if out.Master == nil {
			continue
		}
		master = aws.ToString(out.Master.AccountId)
		if master != central {
			continue
		}
		expectedMaster = true
		if aws.ToString(out.Master.RelationshipStatus) == relationshipMonitored {
			return verdict(domain.Compliant, "GuardDuty is enabled and centralized.")
		}
	}

	switch {
	case !enabled:
		return verdict(domain.NonCompliant, "GuardDuty is not enabled.")
	case expectedMaster:
		return verdict(domain.NonCompliant, "GuardDuty has the correct Central account, but it is not in 'Monitored' state.")
	case master == "":
		return verdict(domain.NonCompliant, "GuardDuty is enabled but not centralized.")
	default:
		return verdict(domain.NonCompliant, fmt.Sprintf(
			"GuardDuty is centralized in another account (%s) than the account specified as parameter (%s).",
			master, central))
	}
}

func listDetectors(ctx context.Context, api API) ([]string, error) {
	var ids []string
	var token *string
	for {
		out, err := api.ListDetectors(ctx, &guardduty.ListDetectorsInput{NextToken: token})
		if err != nil {
			return nil, fmt.Errorf("failed to list detectors: %w", err)
		}
		ids = append(ids, out.DetectorIds...)
		if out.NextToken == nil || *out.NextToken == "" {
			return ids, nil
		}
		token = out.NextToken
	}
}
