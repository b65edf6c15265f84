package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

var subs = Substitutions{Partition: "aws", Region: "eu-west-1", AccountID: "999999999999", HomeAccount: "999999999999"}

func TestParseManifest_JSON(t *testing.T) {
	body := []byte(`{
	"AWSTemplateFormatVersion": "2010-09-09",
	"Resources": {
		"ZuluRule": {
			"Type": "AWS::Config::ConfigRule",
			"Properties": {
				"ConfigRuleName": "ZULU",
				"Scope": {"ComplianceResourceTypes": ["AWS::S3::Bucket", "AWS::EC2::Volume"]},
				"Source": {
					"Owner": "CUSTOM_LAMBDA",
					"SourceDetails": [{"EventSource": "aws.config", "MessageType": "ScheduledNotification", "MaximumExecutionFrequency": "TwentyFour_Hours"}],
					"SourceIdentifier": {"Fn::Sub": "arn:${AWS::Partition}:lambda:${AWS::Region}:${LambdaAccountId}:function:ZULU"}
				}
			}
		},
		"Bucket": {"Type": "AWS::S3::Bucket", "Properties": {"BucketName": "x"}},
		"AlphaRule": {
			"Type": "AWS::Config::ConfigRule",
			"Properties": {
				"ConfigRuleName": "ALPHA",
				"Source": {"Owner": "AWS", "SourceIdentifier": "ROOT_ACCOUNT_MFA_ENABLED"}
			}
		}
	}
}`)

	manifest, err := ParseManifest(body, subs)

	require.NoError(t, err)
	require.Len(t, manifest.Rules, 2)

	zulu := manifest.Rules[0]
	assert.Equal(t, "ZuluRule", zulu.LogicalID)
	assert.Equal(t, "ZULU", zulu.RuleName)
	assert.Equal(t, []string{"AWS::S3::Bucket", "AWS::EC2::Volume"}, zulu.Scope.ComplianceResourceTypes)
	assert.Equal(t, "arn:aws:lambda:eu-west-1:999999999999:function:ZULU", zulu.Source.SourceIdentifier)
	assert.Equal(t, []domain.SourceDetail{{
		EventSource:               "aws.config",
		MessageType:               "ScheduledNotification",
		MaximumExecutionFrequency: "TwentyFour_Hours",
	}}, zulu.Source.SourceDetails)

	alpha := manifest.Rules[1]
	assert.Equal(t, "ALPHA", alpha.RuleName)
	assert.Nil(t, alpha.Scope)
	assert.Equal(t, "ROOT_ACCOUNT_MFA_ENABLED", alpha.Source.SourceIdentifier)
}

func TestParseManifest_YAMLShortSub(t *testing.T) {
	body := []byte(`
Resources:
  Drift:
    Type: AWS::Config::ConfigRule
    Properties:
      ConfigRuleName: COMPLIANCE_RULESET_LATEST_INSTALLED
      Source:
        Owner: CUSTOM_LAMBDA
        SourceIdentifier: !Sub arn:${AWS::Partition}:lambda:${AWS::Region}:${AWS::AccountId}:function:RULESET
  Listed:
    Type: AWS::Config::ConfigRule
    Properties:
      ConfigRuleName: LISTED
      Source:
        Owner: CUSTOM_LAMBDA
        SourceIdentifier:
          Fn::Sub:
            - arn:${AWS::Partition}:lambda:${AWS::Region}:${LambdaAccountId}:function:LISTED
            - {}
`)

	manifest, err := ParseManifest(body, subs)

	require.NoError(t, err)
	require.Len(t, manifest.Rules, 2)
	assert.Equal(t, "arn:aws:lambda:eu-west-1:999999999999:function:RULESET", manifest.Rules[0].Source.SourceIdentifier)
	assert.Equal(t, "arn:aws:lambda:eu-west-1:999999999999:function:LISTED", manifest.Rules[1].Source.SourceIdentifier)
}

func TestParseManifest_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not a document", body: `{"Resources": `},
		{name: "no resources", body: `{"Parameters": {}}`},
		{name: "resources not a map", body: `{"Resources": []}`},
		{name: "rule without name", body: `{"Resources": {"R": {"Type": "AWS::Config::ConfigRule", "Properties": {}}}}`},
		{name: "unsupported identifier", body: `{"Resources": {"R": {"Type": "AWS::Config::ConfigRule", "Properties": {"ConfigRuleName": "R", "Source": {"Owner": "AWS", "SourceIdentifier": {"Fn::Join": ["", ["a"]]}}}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.body), subs)
			assert.ErrorIs(t, err, domain.ErrMalformedManifest)
		})
	}
}

func TestSubstitutions_Apply(t *testing.T) {
	got := subs.Apply("${AWS::Partition}/${AWS::Region}/${AWS::AccountId}/${LambdaAccountId}/${Other}")
	assert.Equal(t, "aws/eu-west-1/999999999999/999999999999/${Other}", got)
}
