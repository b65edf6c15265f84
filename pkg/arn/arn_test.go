package arn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ARN
		wantErr bool
	}{
		{
			name:  "config rule",
			input: "arn:aws:config:eu-west-1:123456789012:config-rule/config-rule-abc",
			want: ARN{
				Partition: "aws",
				Service:   "config",
				Region:    "eu-west-1",
				AccountID: "123456789012",
				Resource:  "config-rule/config-rule-abc",
			},
		},
		{
			name:  "global resource",
			input: "arn:aws-us-gov:iam::123456789012:role/Audit",
			want: ARN{
				Partition: "aws-us-gov",
				Service:   "iam",
				AccountID: "123456789012",
				Resource:  "role/Audit",
			},
		},
		{name: "not an arn", input: "role/Audit", wantErr: true},
		{name: "short account", input: "arn:aws:iam::1234:role/Audit", wantErr: true},
		{name: "missing resource", input: "arn:aws:iam::123456789012", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.input, got.String())
		})
	}
}

func TestParseRole(t *testing.T) {
	_, err := ParseRole("arn:aws:iam::123456789012:role/path/Audit")
	assert.NoError(t, err)

	_, err = ParseRole("arn:aws:iam::123456789012:user/alice")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ParseRole("arn:aws:s3:::bucket")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestResourceName(t *testing.T) {
	a, err := Parse("arn:aws:lambda:us-east-1:123456789012:function:ruleset-check")
	require.NoError(t, err)
	assert.Equal(t, "ruleset-check", a.ResourceName())

	a, err = Parse("arn:aws:iam::123456789012:role/path/Audit")
	require.NoError(t, err)
	assert.Equal(t, "Audit", a.ResourceName())
}

func TestRoleARN(t *testing.T) {
	assert.Equal(t,
		"arn:aws:iam::123456789012:role/ComplianceEngine-CodePipelineRole",
		RoleARN("aws", "123456789012", "ComplianceEngine-CodePipelineRole"))
}

func TestIsAccountID(t *testing.T) {
	assert.True(t, IsAccountID("000000000000"))
	assert.False(t, IsAccountID("12345678901a"))
	assert.False(t, IsAccountID("1234567890123"))
}
