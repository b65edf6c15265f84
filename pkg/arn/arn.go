// Package arn parses resource names of the form
//
//	arn:partition:service:region:account-id:resource
//
// where resource may itself contain ':' or '/' separators.
package arn

import (
	"errors"
	"fmt"
	"strings"

	awsarn "github.com/aws/aws-sdk-go-v2/aws/arn"
)

var ErrMalformed = errors.New("malformed arn")

// ARN is a parsed resource name.
type ARN struct {
	Partition string
	Service   string
	Region    string
	AccountID string
	Resource  string
}

func Parse(s string) (ARN, error) {
	parsed, err := awsarn.Parse(s)
	if err != nil {
		return ARN{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	if parsed.Partition == "" || parsed.Service == "" {
		return ARN{}, fmt.Errorf("%w: %q: empty partition or service", ErrMalformed, s)
	}
	if parsed.AccountID != "" && !IsAccountID(parsed.AccountID) {
		return ARN{}, fmt.Errorf("%w: %q: account id must be 12 digits", ErrMalformed, s)
	}
	return ARN{
		Partition: parsed.Partition,
		Service:   parsed.Service,
		Region:    parsed.Region,
		AccountID: parsed.AccountID,
		Resource:  parsed.Resource,
	}, nil
}

// ParseRole accepts only IAM role ARNs.
func ParseRole(s string) (ARN, error) {
	a, err := Parse(s)
	if err != nil {
		return ARN{}, err
	}
	if a.Service != "iam" || !strings.HasPrefix(a.Resource, "role/") || a.AccountID == "" {
		return ARN{}, fmt.Errorf("%w: %q is not a role", ErrMalformed, s)
	}
	return a, nil
}

// IsAccountID reports whether s is a 12-digit account identifier.
func IsAccountID(s string) bool {
	if len(s) != 12 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ResourceName returns the final path or colon segment of the resource.
func (a ARN) ResourceName() string {
	i := strings.LastIndexAny(a.Resource, "/:")
	return a.Resource[i+1:]
}

func (a ARN) String() string {
	return awsarn.ARN{
		Partition: a.Partition,
		Service:   a.Service,
		Region:    a.Region,
		AccountID: a.AccountID,
		Resource:  a.Resource,
	}.String()
}

// RoleARN builds the ARN of a role in the given partition and account.
func RoleARN(partition, accountID, roleName string) string {
	return ARN{
		Partition: partition,
		Service:   "iam",
		AccountID: accountID,
		Resource:  "role/" + roleName,
	}.String()
}
