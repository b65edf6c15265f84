package catalog

import (
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/de-tools/compliance-engine/pkg/services/drift"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
	"github.com/de-tools/compliance-engine/pkg/services/rules/guardduty"
	"github.com/de-tools/compliance-engine/pkg/services/rules/iam"
	"github.com/de-tools/compliance-engine/pkg/services/rules/kms"
	"github.com/de-tools/compliance-engine/pkg/services/rules/ruleset"
	"github.com/de-tools/compliance-engine/pkg/services/rules/vpc"
	"github.com/de-tools/compliance-engine/pkg/services/whitelist"
)

// Dependencies are shared by the built-in rules.
type Dependencies struct {
	// Base is the engine's own AWS configuration.
	Base      aws.Config
	Auditor   *drift.Auditor
	Whitelist *whitelist.Location
	// Local receives a copy of every stream record. Optional.
	Local drift.Sink
}

// NewRegistry registers every built-in rule.
func NewRegistry(deps Dependencies) (rules.Registry, error) {
	reg := rules.NewRegistry()
	predicates := []rules.Predicate{
		iam.NewRootMFAEnabled(iam.NewClient),
		iam.NewRootNoAccessKey(iam.NewClient, iam.DefaultPolling),
		iam.NewRootNoRecentUse(iam.NewClient, iam.DefaultPolling),
		guardduty.NewEnabledCentralized(guardduty.NewClient),
		kms.NewCMKRotationEnabled(kms.NewClient, kms.NewRegionClient),
		vpc.NewSecurityGroupDefaultBlocked(vpc.NewClient),
	}
	if deps.Auditor != nil {
		predicates = append(predicates, ruleset.NewLatestInstalled(
			deps.Auditor, deps.Base, ruleset.DefaultFactories(), deps.Whitelist, deps.Local))
	}
	for _, p := range predicates {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
