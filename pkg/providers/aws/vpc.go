package awsprovider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
	"github.com/amarra-project/amarra/pkg/waiter"
)

func (p *AWSProvider) reconcileVPC(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}

	existing, err := p.findVPCByName(ctx, spec.Name)
	if err != nil && !awsutil.IsNotFound(err) {
		return nil, fmt.Errorf("failed to describe VPC: %w", err)
	}

	if spec.State == models.StateAbsent {
		if existing == nil {
			return result, nil
		}
		result.Record("vpc", *existing.VpcId, "absent")
		if opts.CheckMode {
			return result, nil
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.DeleteVpc(ctx, &ec2.DeleteVpcInput{
				VpcId: existing.VpcId,
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			return nil, fmt.Errorf("failed to delete VPC %s: %w", *existing.VpcId, err)
		}
		return result, nil
	}

	vpcSpec := spec.VPC
	if existing == nil {
		return p.createVPC(ctx, spec, opts, result)
	}

	vpcID := *existing.VpcId
	result.SetOutput("vpc_id", vpcID)
	result.SetOutput("cidr_block", aws.ToString(existing.CidrBlock))

	// CIDR is immutable; a mismatch is unresolvable drift, not something
	// to silently recreate.
	if aws.ToString(existing.CidrBlock) != vpcSpec.CidrBlock {
		return nil, fmt.Errorf(
			"VPC %s has CIDR %s but spec wants %s; CIDR cannot be changed in place",
			vpcID, aws.ToString(existing.CidrBlock), vpcSpec.CidrBlock,
		)
	}

	if err := p.convergeVPCAttributes(ctx, vpcID, vpcSpec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeEC2Tags(ctx, vpcID, awsutil.TagsToMap(existing.Tags), spec, opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *AWSProvider) createVPC(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
	result *models.Result,
) (*models.Result, error) {
	l := logger.Get()
	vpcSpec := spec.VPC

	result.Record("vpc", "absent", vpcSpec.CidrBlock)
	if opts.CheckMode {
		return result, nil
	}

	input := &ec2.CreateVpcInput{
		CidrBlock:         aws.String(vpcSpec.CidrBlock),
		TagSpecifications: awsutil.TagSpecification(ec2types.ResourceTypeVpc, namedTags(spec)),
	}
	if vpcSpec.InstanceTenancy != "" {
		input.InstanceTenancy = ec2types.Tenancy(vpcSpec.InstanceTenancy)
	}

	var created *ec2.CreateVpcOutput
	err := retry.Do(ctx, func() error {
		var err error
		created, err = p.Clients.EC2.CreateVpc(ctx, input)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := *created.Vpc.VpcId
	result.SetOutput("vpc_id", vpcID)
	result.SetOutput("cidr_block", vpcSpec.CidrBlock)

	l.Infof("Created VPC %s, waiting for it to become available", vpcID)
	err = waiter.Wait(ctx, waiter.VPCAvailable, func(ctx context.Context) (bool, error) {
		out, err := p.Clients.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
			VpcIds: []string{vpcID},
		})
		if err != nil {
			// A just-created VPC can be briefly invisible.
			if awsutil.IsNotFound(err) || awsutil.IsRetryable(err) {
				return false, nil
			}
			return false, err
		}
		return len(out.Vpcs) > 0 && out.Vpcs[0].State == ec2types.VpcStateAvailable, nil
	})
	if err != nil {
		return nil, fmt.Errorf("VPC %s did not become available: %w", vpcID, err)
	}

	if err := p.convergeVPCAttributes(ctx, vpcID, vpcSpec, opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

// convergeVPCAttributes aligns the DNS attributes, which are only
// readable one at a time through DescribeVpcAttribute.
func (p *AWSProvider) convergeVPCAttributes(
	ctx context.Context,
	vpcID string,
	vpcSpec *models.VPCSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	type attribute struct {
		name    ec2types.VpcAttributeName
		field   string
		desired *bool
		modify  func(*ec2.ModifyVpcAttributeInput, bool)
	}
	attributes := []attribute{
		{
			name:    ec2types.VpcAttributeNameEnableDnsSupport,
			field:   "enable_dns_support",
			desired: vpcSpec.EnableDnsSupport,
			modify: func(in *ec2.ModifyVpcAttributeInput, v bool) {
				in.EnableDnsSupport = &ec2types.AttributeBooleanValue{Value: aws.Bool(v)}
			},
		},
		{
			name:    ec2types.VpcAttributeNameEnableDnsHostnames,
			field:   "enable_dns_hostnames",
			desired: vpcSpec.EnableDnsHostnames,
			modify: func(in *ec2.ModifyVpcAttributeInput, v bool) {
				in.EnableDnsHostnames = &ec2types.AttributeBooleanValue{Value: aws.Bool(v)}
			},
		},
	}

	for _, attr := range attributes {
		if attr.desired == nil {
			continue
		}

		var current bool
		err := retry.Do(ctx, func() error {
			out, err := p.Clients.EC2.DescribeVpcAttribute(ctx, &ec2.DescribeVpcAttributeInput{
				VpcId:     aws.String(vpcID),
				Attribute: attr.name,
			})
			if err != nil {
				return err
			}
			switch attr.name {
			case ec2types.VpcAttributeNameEnableDnsSupport:
				current = out.EnableDnsSupport != nil && aws.ToBool(out.EnableDnsSupport.Value)
			case ec2types.VpcAttributeNameEnableDnsHostnames:
				current = out.EnableDnsHostnames != nil && aws.ToBool(out.EnableDnsHostnames.Value)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to describe VPC attribute %s: %w", attr.name, err)
		}

		if current == *attr.desired {
			continue
		}
		result.Record(attr.field, current, *attr.desired)
		if opts.CheckMode {
			continue
		}

		input := &ec2.ModifyVpcAttributeInput{VpcId: aws.String(vpcID)}
		attr.modify(input, *attr.desired)
		err = retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.ModifyVpcAttribute(ctx, input)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to modify VPC attribute %s: %w", attr.name, err)
		}
	}
	return nil
}

func (p *AWSProvider) findVPCByName(ctx context.Context, name string) (*ec2types.Vpc, error) {
	var out *ec2.DescribeVpcsOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("tag:Name"), Values: []string{name}},
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out.Vpcs) == 0 {
		return nil, nil
	}
	if len(out.Vpcs) > 1 {
		return nil, fmt.Errorf("multiple VPCs tagged Name=%s; refusing to guess", name)
	}
	return &out.Vpcs[0], nil
}

// namedTags merges the resource name into the desired tag set as the
// Name tag.
func namedTags(spec models.ResourceSpec) map[string]string {
	tags := make(map[string]string, len(spec.Tags)+1)
	for k, v := range spec.Tags {
		tags[k] = v
	}
	tags["Name"] = spec.Name
	return tags
}

// convergeEC2Tags aligns tags on any EC2 resource through the shared
// CreateTags/DeleteTags calls.
func (p *AWSProvider) convergeEC2Tags(
	ctx context.Context,
	resourceID string,
	current map[string]string,
	spec models.ResourceSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	toSet, toRemove := awsutil.CompareTags(current, namedTags(spec), spec.PurgeTags)
	if len(toSet) == 0 && len(toRemove) == 0 {
		return nil
	}

	for k, v := range toSet {
		result.Record("tag:"+k, current[k], v)
	}
	for _, k := range toRemove {
		result.Record("tag:"+k, current[k], "")
	}
	if opts.CheckMode {
		return nil
	}

	if len(toSet) > 0 {
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.CreateTags(ctx, &ec2.CreateTagsInput{
				Resources: []string{resourceID},
				Tags:      awsutil.MapToTags(toSet),
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to set tags on %s: %w", resourceID, err)
		}
	}
	if len(toRemove) > 0 {
		removeTags := make([]ec2types.Tag, 0, len(toRemove))
		for _, k := range toRemove {
			removeTags = append(removeTags, ec2types.Tag{Key: aws.String(k)})
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.DeleteTags(ctx, &ec2.DeleteTagsInput{
				Resources: []string{resourceID},
				Tags:      removeTags,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to remove tags on %s: %w", resourceID, err)
		}
	}
	return nil
}
