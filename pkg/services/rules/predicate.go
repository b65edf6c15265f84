package rules

import (
	"context"
	"time"

	"github.com/de-tools/compliance-engine/pkg/arn"
	"github.com/de-tools/compliance-engine/pkg/credentials"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

// Predicate is the rule-specific logic of one compliance rule.
type Predicate interface {
	// Name is the rule identifier the predicate is registered under.
	Name() string
	// DefaultResourceType is the subject type used for bare and shadow verdicts.
	DefaultResourceType() string
	// ValidateParameters rejects unusable rule parameters with an
	// InvalidParameterValueException before any remote call is made.
	ValidateParameters(params domain.Parameters) error
	Evaluate(ctx context.Context, in Input) (domain.Result, error)
}

// Input is everything a predicate may look at during one invocation.
type Input struct {
	Event      domain.TriggerEvent
	Invoking   *domain.InvokingEvent
	Item       *domain.ConfigurationItem
	Parameters domain.Parameters
	// Lease is scoped to the execution role in the rule's home region.
	Lease *credentials.Lease
	// Broker mints additional leases, e.g. one per region.
	Broker credentials.Broker
	// Rule is the parsed ARN of the invoked rule.
	Rule arn.ARN
}

// OrderedAt is the ordering timestamp of verdicts produced by this invocation.
func (in Input) OrderedAt() time.Time {
	if in.Invoking == nil {
		return time.Time{}
	}
	return in.Invoking.NotificationCreationTime
}

// AccountID is the audited account.
func (in Input) AccountID() string {
	if in.Event.AccountID != "" {
		return in.Event.AccountID
	}
	return in.Rule.AccountID
}

// AccountVerdict builds a verdict about the audited account.
func (in Input) AccountVerdict(ct domain.ComplianceType, annotation string) domain.Verdict {
	return domain.AccountVerdict(in.AccountID(), ct, in.OrderedAt(), annotation)
}

// Assume mints a lease for the execution role in another region.
func (in Input) Assume(ctx context.Context, region string) (*credentials.Lease, error) {
	return in.Broker.Assume(ctx, in.Lease.RoleARN, region)
}
