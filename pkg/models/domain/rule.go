package domain

import (
	"slices"
	"strings"
)

// ManagedCheckType is the manifest resource type describing one deployable rule.
const ManagedCheckType = "AWS::Config::ConfigRule"

const RuleStateActive = "ACTIVE"

// RuleManifestEntry declares one rule that is expected to exist in an account.
type RuleManifestEntry struct {
	LogicalID string
	RuleName  string
	Scope     *Scope
	Source    *RuleSource
}

type Manifest struct {
	Rules []RuleManifestEntry
}

// LiveRule is a rule as currently deployed in an account.
type LiveRule struct {
	Name   string
	ARN    string
	State  string
	Scope  *Scope
	Source *RuleSource
}

type RulePage struct {
	Rules     []LiveRule
	NextToken *string
}

type Scope struct {
	ComplianceResourceID    string
	ComplianceResourceTypes []string
	TagKey                  string
	TagValue                string
}

// Equal compares two scopes, ignoring the order of resource types.
func (s *Scope) Equal(other *Scope) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.ComplianceResourceID == other.ComplianceResourceID &&
		s.TagKey == other.TagKey &&
		s.TagValue == other.TagValue &&
		sameSet(s.ComplianceResourceTypes, other.ComplianceResourceTypes)
}

type RuleSource struct {
	Owner            string
	SourceDetails    []SourceDetail
	SourceIdentifier string
}

type SourceDetail struct {
	EventSource               string
	MessageType               string
	MaximumExecutionFrequency string
}

func (d SourceDetail) key() string {
	return strings.Join([]string{d.EventSource, d.MessageType, d.MaximumExecutionFrequency}, "|")
}

// SameSourceDetails compares two detail lists, ignoring order.
func SameSourceDetails(a, b []SourceDetail) bool {
	keys := func(details []SourceDetail) []string {
		out := make([]string, 0, len(details))
		for _, d := range details {
			out = append(out, d.key())
		}
		return out
	}
	return sameSet(keys(a), keys(b))
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
