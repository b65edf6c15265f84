package domain

import (
	"fmt"
	"strings"
	"time"
)

type ComplianceType string

const (
	Compliant     ComplianceType = "COMPLIANT"
	NonCompliant  ComplianceType = "NON_COMPLIANT"
	NotApplicable ComplianceType = "NOT_APPLICABLE"
)

func (c ComplianceType) Valid() bool {
	switch c {
	case Compliant, NonCompliant, NotApplicable:
		return true
	default:
		return false
	}
}

// AccountResourceType is the pseudo resource type used when a verdict is about
// the account itself rather than a resource inside it.
const AccountResourceType = "AWS::::Account"

// MaxAnnotationLength is the longest annotation the rule-state service accepts.
const MaxAnnotationLength = 256

// Verdict is one compliance judgment about one resource at one point in time.
// Verdicts are never mutated once built; a newer OrderingTimestamp for the same
// ResourceID supersedes an older one.
type Verdict struct {
	ResourceType      string
	ResourceID        string
	ComplianceType    ComplianceType
	Annotation        string
	OrderingTimestamp time.Time
}

func NewVerdict(resourceType, resourceID string, ct ComplianceType, orderedAt time.Time, annotation string) Verdict {
	return Verdict{
		ResourceType:      resourceType,
		ResourceID:        resourceID,
		ComplianceType:    ct,
		Annotation:        truncateAnnotation(annotation),
		OrderingTimestamp: orderedAt,
	}
}

// AccountVerdict builds a verdict about the account itself.
func AccountVerdict(accountID string, ct ComplianceType, orderedAt time.Time, annotation string) Verdict {
	return NewVerdict(AccountResourceType, accountID, ct, orderedAt, annotation)
}

// ItemVerdict builds a verdict about the configuration item under evaluation,
// ordered by the item's capture time.
func ItemVerdict(item *ConfigurationItem, ct ComplianceType, annotation string) Verdict {
	return NewVerdict(item.ResourceType, item.ResourceID, ct, item.CaptureTime, annotation)
}

// Validate reports every required field missing from the verdict.
func (v Verdict) Validate() error {
	var missing []string
	if v.ResourceType == "" {
		missing = append(missing, "ResourceType")
	}
	if v.ResourceID == "" {
		missing = append(missing, "ResourceID")
	}
	if !v.ComplianceType.Valid() {
		missing = append(missing, "ComplianceType")
	}
	if v.OrderingTimestamp.IsZero() {
		missing = append(missing, "OrderingTimestamp")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedVerdict, strings.Join(missing, ", "))
	}
	return nil
}

func truncateAnnotation(annotation string) string {
	runes := []rune(annotation)
	if len(runes) <= MaxAnnotationLength {
		return annotation
	}
	return string(runes[:MaxAnnotationLength-3]) + "..."
}
