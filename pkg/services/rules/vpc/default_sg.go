package vpc

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/rules"
)

const (
	SecurityGroupDefaultBlocked = "VPC_SECURITY_GROUP_DEFAULT_BLOCKED"
	SecurityGroupResourceType   = "AWS::EC2::SecurityGroup"

	defaultGroupName = "default"
)

type API interface {
	rules.RegionAPI
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

type ClientFactory func(cfg aws.Config) API

func NewClient(cfg aws.Config) API {
	return ec2.NewFromConfig(cfg)
}

type defaultGroups struct {
	clients ClientFactory
}

// NewSecurityGroupDefaultBlocked checks that the default security group of
// every VPC in every region allows no traffic at all.
func NewSecurityGroupDefaultBlocked(clients ClientFactory) rules.Predicate {
	return &defaultGroups{clients: clients}
}

func (d *defaultGroups) Name() string {
	return SecurityGroupDefaultBlocked
}

func (d *defaultGroups) DefaultResourceType() string {
	return SecurityGroupResourceType
}

func (d *defaultGroups) ValidateParameters(domain.Parameters) error {
	return nil
}

func (d *defaultGroups) Evaluate(ctx context.Context, in rules.Input) (domain.Result, error) {
	regions, err := rules.Regions(ctx, d.clients(in.Lease.Config))
	if err != nil {
		return domain.Result{}, err
	}

	var verdicts []domain.Verdict
	for _, region := range regions {
		lease, err := in.Assume(ctx, region)
		if err != nil {
			return domain.Result{}, err
		}
		groups, err := listDefaultGroups(ctx, d.clients(lease.Config))
		if err != nil {
			return domain.Result{}, fmt.Errorf("region %s: %w", region, err)
		}
		for _, sg := range groups {
			verdicts = append(verdicts, evaluateGroup(sg, region, in))
		}
	}
	return domain.List(verdicts...), nil
}

func listDefaultGroups(ctx context.Context, api API) ([]ec2types.SecurityGroup, error) {
	var groups []ec2types.SecurityGroup
	var token *string
	for {
		out, err := api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{NextToken: token})
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}
		for _, sg := range out.SecurityGroups {
			if aws.ToString(sg.VpcId) != "" && aws.ToString(sg.GroupName) == defaultGroupName {
				groups = append(groups, sg)
			}
		}
		if out.NextToken == nil || *out.NextToken == "" {
			return groups, nil
		}
		token = out.NextToken
	}
}

func evaluateGroup(sg ec2types.SecurityGroup, region string, in rules.Input) domain.Verdict {
	id := fmt.Sprintf("arn:aws:ec2:%s:%s:security_group/%s", region, in.AccountID(), aws.ToString(sg.GroupId))
	switch {
	case len(sg.IpPermissions) > 0:
		return domain.NewVerdict(SecurityGroupResourceType, id, domain.NonCompliant, in.OrderedAt(),
			"There are permissions on the ingress of this security group.")
	case len(sg.IpPermissionsEgress) > 0:
		return domain.NewVerdict(SecurityGroupResourceType, id, domain.NonCompliant, in.OrderedAt(),
			"There are permissions on the egress of this security group.")
	default:
		return domain.NewVerdict(SecurityGroupResourceType, id, domain.Compliant, in.OrderedAt(),
			"This security group has no permission.")
	}
}
