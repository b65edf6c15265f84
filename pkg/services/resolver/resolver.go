package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

// ApplicabilityPolicy decides when a deleted subject is exempt from evaluation.
type ApplicabilityPolicy string

const (
	// DeletedAndLeftScope suppresses evaluation only when the item is deleted and
	// the event reports that it left the rule's scope.
	DeletedAndLeftScope ApplicabilityPolicy = "deleted-and-left-scope"
	// Deleted suppresses evaluation of any deleted item.
	Deleted ApplicabilityPolicy = "deleted"
)

func ParsePolicy(s string) (ApplicabilityPolicy, error) {
	switch p := ApplicabilityPolicy(s); p {
	case "":
		return DeletedAndLeftScope, nil
	case DeletedAndLeftScope, Deleted:
		return p, nil
	default:
		return "", fmt.Errorf("unknown applicability policy %q", s)
	}
}

// HistorySource looks up an item in the recorded resource history.
type HistorySource interface {
	ResourceHistory(ctx context.Context, resourceType, resourceID string, laterTime time.Time) (*domain.ConfigurationItem, error)
}

// Resolver turns an invoking event into the configuration item under
// evaluation. Scheduled invocations have no subject.
type Resolver struct {
	history HistorySource
	policy  ApplicabilityPolicy
}

func NewResolver(history HistorySource, policy ApplicabilityPolicy) *Resolver {
	if policy == "" {
		policy = DeletedAndLeftScope
	}
	return &Resolver{history: history, policy: policy}
}

func (r *Resolver) Resolve(ctx context.Context, event *domain.InvokingEvent) (*domain.ConfigurationItem, error) {
	switch event.MessageType {
	case domain.MessageTypeScheduled:
		return nil, nil
	case domain.MessageTypeConfigurationItem:
		if event.ConfigurationItem == nil {
			return nil, fmt.Errorf("configurationItem is not defined")
		}
		return event.ConfigurationItem, nil
	case domain.MessageTypeOversizedItem:
		return r.fetchOversized(ctx, event.ConfigurationItemSummary)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMessageType, event.MessageType)
	}
}

func (r *Resolver) fetchOversized(ctx context.Context, summary *domain.ConfigurationItemSummary) (*domain.ConfigurationItem, error) {
	if summary == nil {
		return nil, fmt.Errorf("configurationItemSummary is not defined")
	}

	item, err := r.history.ResourceHistory(ctx, summary.ResourceType, summary.ResourceID, summary.CaptureTime)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s/%s at %s", domain.ErrHistoryLookupFailed,
			summary.ResourceType, summary.ResourceID, summary.CaptureTime.Format(time.RFC3339))
	}

	zerolog.Ctx(ctx).Debug().
		Str("resource_type", item.ResourceType).
		Str("resource_id", item.ResourceID).
		Msg("oversized configuration item fetched from history")
	return item, nil
}

// Applicable reports whether the item should be evaluated at all. A nil item
// (scheduled invocation) is always applicable.
func (r *Resolver) Applicable(item *domain.ConfigurationItem, leftScope bool) bool {
	if item == nil || !item.Status.Deleted() {
		return true
	}
	switch r.policy {
	case Deleted:
		return false
	default:
		return !leftScope
	}
}
