package awsprovider

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
)

// DHCP option sets are immutable in EC2: convergence means creating a
// set with the desired options, re-associating the VPC, and deleting
// the superseded set.
func (p *AWSProvider) reconcileDHCPOptions(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}

	existing, err := p.findDHCPOptionsByName(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe DHCP option sets: %w", err)
	}

	if spec.State == models.StateAbsent {
		if existing == nil {
			return result, nil
		}
		result.Record("dhcp_options", *existing.DhcpOptionsId, "absent")
		if opts.CheckMode {
			return result, nil
		}
		if err := p.detachDHCPOptions(ctx, *existing.DhcpOptionsId, result); err != nil {
			return nil, err
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.DeleteDhcpOptions(ctx, &ec2.DeleteDhcpOptionsInput{
				DhcpOptionsId: existing.DhcpOptionsId,
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			return nil, fmt.Errorf("failed to delete DHCP option set %s: %w",
				*existing.DhcpOptionsId, err)
		}
		return result, nil
	}

	desired := dhcpConfigurations(spec.DHCPOptions)
	if existing != nil {
		desired = inheritDhcpConfigurations(existing.DhcpConfigurations, desired)
	}

	if existing != nil && dhcpConfigurationsEqual(existing.DhcpConfigurations, desired) {
		result.SetOutput("dhcp_options_id", *existing.DhcpOptionsId)
		if err := p.convergeEC2Tags(
			ctx, *existing.DhcpOptionsId, awsutil.TagsToMap(existing.Tags), spec, opts, result,
		); err != nil {
			return nil, err
		}
		return result, nil
	}

	if existing == nil {
		result.Record("dhcp_options", "absent", "present")
	} else {
		result.Record("dhcp_options", *existing.DhcpOptionsId, "recreated")
	}
	if opts.CheckMode {
		return result, nil
	}

	created, err := p.createDHCPOptions(ctx, spec, desired)
	if err != nil {
		return nil, err
	}
	result.SetOutput("dhcp_options_id", *created.DhcpOptionsId)

	if spec.DHCPOptions.VpcID != "" {
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.AssociateDhcpOptions(ctx, &ec2.AssociateDhcpOptionsInput{
				DhcpOptionsId: created.DhcpOptionsId,
				VpcId:         aws.String(spec.DHCPOptions.VpcID),
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to associate DHCP option set with VPC %s: %w",
				spec.DHCPOptions.VpcID, err)
		}
		result.Record("association", "", spec.DHCPOptions.VpcID)
	}

	// The superseded set can only be removed once no VPC references it.
	if existing != nil {
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.DeleteDhcpOptions(ctx, &ec2.DeleteDhcpOptionsInput{
				DhcpOptionsId: existing.DhcpOptionsId,
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			logger.Get().Warnf("Could not delete superseded DHCP option set %s: %v",
				*existing.DhcpOptionsId, err)
		}
	}
	return result, nil
}

// detachDHCPOptions points every VPC using the option set back at the
// Amazon-provided defaults. Deleting a set a VPC still references fails
// with DependencyViolation.
func (p *AWSProvider) detachDHCPOptions(
	ctx context.Context,
	id string,
	result *models.Result,
) error {
	var out *ec2.DescribeVpcsOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("dhcp-options-id"), Values: []string{id}},
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to find VPCs using DHCP option set %s: %w", id, err)
	}

	for _, vpc := range out.Vpcs {
		vpcID := aws.ToString(vpc.VpcId)
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.AssociateDhcpOptions(ctx, &ec2.AssociateDhcpOptionsInput{
				DhcpOptionsId: aws.String("default"),
				VpcId:         vpc.VpcId,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to detach DHCP option set from VPC %s: %w", vpcID, err)
		}
		result.Record("association", vpcID, "default")
	}
	return nil
}

func (p *AWSProvider) createDHCPOptions(
	ctx context.Context,
	spec models.ResourceSpec,
	desired []ec2types.NewDhcpConfiguration,
) (*ec2types.DhcpOptions, error) {
	var out *ec2.CreateDhcpOptionsOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.EC2.CreateDhcpOptions(ctx, &ec2.CreateDhcpOptionsInput{
			DhcpConfigurations: desired,
			TagSpecifications: awsutil.TagSpecification(
				ec2types.ResourceTypeDhcpOptions, namedTags(spec),
			),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DHCP option set: %w", err)
	}
	return out.DhcpOptions, nil
}

func (p *AWSProvider) findDHCPOptionsByName(
	ctx context.Context,
	name string,
) (*ec2types.DhcpOptions, error) {
	var out *ec2.DescribeDhcpOptionsOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.EC2.DescribeDhcpOptions(ctx, &ec2.DescribeDhcpOptionsInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("tag:Name"), Values: []string{name}},
			},
		})
		return err
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.DhcpOptions) == 0 {
		return nil, nil
	}
	return &out.DhcpOptions[0], nil
}

// inheritDhcpConfigurations carries options omitted from the desired
// list over from the live set, so a recreate does not silently drop
// them.
func inheritDhcpConfigurations(
	current []ec2types.DhcpConfiguration,
	desired []ec2types.NewDhcpConfiguration,
) []ec2types.NewDhcpConfiguration {
	managed := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		managed[aws.ToString(d.Key)] = struct{}{}
	}

	for _, c := range current {
		if _, ok := managed[aws.ToString(c.Key)]; ok {
			continue
		}
		values := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			values = append(values, aws.ToString(v.Value))
		}
		desired = append(desired, ec2types.NewDhcpConfiguration{
			Key:    c.Key,
			Values: values,
		})
	}
	return desired
}

// dhcpConfigurations builds the request configuration list from the
// declared options.
func dhcpConfigurations(spec *models.DHCPOptionsSpec) []ec2types.NewDhcpConfiguration {
	var configs []ec2types.NewDhcpConfiguration
	add := func(key string, values []string) {
		if len(values) == 0 {
			return
		}
		configs = append(configs, ec2types.NewDhcpConfiguration{
			Key:    aws.String(key),
			Values: values,
		})
	}

	if spec.DomainName != "" {
		add("domain-name", []string{spec.DomainName})
	}
	add("domain-name-servers", spec.DomainNameServers)
	add("ntp-servers", spec.NtpServers)
	add("netbios-name-servers", spec.NetbiosNameServers)
	if spec.NetbiosNodeType != "" {
		add("netbios-node-type", []string{spec.NetbiosNodeType})
	}
	return configs
}

// dhcpConfigurationsEqual compares a live option set against the
// desired request configs, ignoring option and value order.
func dhcpConfigurationsEqual(
	current []ec2types.DhcpConfiguration,
	desired []ec2types.NewDhcpConfiguration,
) bool {
	currentMap := make(map[string][]string, len(current))
	for _, c := range current {
		values := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			values = append(values, aws.ToString(v.Value))
		}
		sort.Strings(values)
		currentMap[aws.ToString(c.Key)] = values
	}

	if len(currentMap) != len(desired) {
		return false
	}
	for _, d := range desired {
		values := append([]string{}, d.Values...)
		sort.Strings(values)
		currentValues, ok := currentMap[aws.ToString(d.Key)]
		if !ok || len(currentValues) != len(values) {
			return false
		}
		for i := range values {
			if currentValues[i] != values[i] {
				return false
			}
		}
	}
	return true
}
