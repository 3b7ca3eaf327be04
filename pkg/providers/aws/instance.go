package awsprovider

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
	"github.com/amarra-project/amarra/pkg/waiter"
)

// UbuntuAMIOwner is Canonical's AWS account ID, the default owner for
// name-filter AMI lookups.
const UbuntuAMIOwner = "099720109477"

func (p *AWSProvider) reconcileInstance(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}

	existing, err := p.findInstanceByName(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances: %w", err)
	}

	if spec.State == models.StateAbsent {
		if existing == nil {
			return result, nil
		}
		instanceID := *existing.InstanceId
		result.Record("instance", instanceID, "terminated")
		if opts.CheckMode {
			return result, nil
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
				InstanceIds: []string{instanceID},
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			return nil, fmt.Errorf("failed to terminate instance %s: %w", instanceID, err)
		}
		if spec.Instance != nil && spec.Instance.Wait {
			if err := p.waitForInstanceState(
				ctx, waiter.InstanceTerminated, instanceID, ec2types.InstanceStateNameTerminated,
			); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	instSpec := spec.Instance
	if existing != nil {
		instanceID := *existing.InstanceId
		result.SetOutput("instance_id", instanceID)
		result.SetOutput("private_ip", aws.ToString(existing.PrivateIpAddress))
		if existing.PublicIpAddress != nil {
			result.SetOutput("public_ip", *existing.PublicIpAddress)
		}

		// Most instance attributes cannot change without stopping the
		// instance; report drift instead of guessing.
		if string(existing.InstanceType) != instSpec.InstanceType {
			return nil, fmt.Errorf(
				"instance %s is %s but spec wants %s; instance type cannot be changed while running",
				instanceID, existing.InstanceType, instSpec.InstanceType,
			)
		}
		if err := p.convergeEC2Tags(
			ctx, instanceID, awsutil.TagsToMap(existing.Tags), spec, opts, result,
		); err != nil {
			return nil, err
		}
		return result, nil
	}

	imageID, err := p.resolveImageID(ctx, instSpec)
	if err != nil {
		return nil, err
	}

	result.Record("instance", "absent", fmt.Sprintf("%s (%s)", instSpec.InstanceType, imageID))
	if opts.CheckMode {
		return result, nil
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(imageID),
		InstanceType: ec2types.InstanceType(instSpec.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: awsutil.TagSpecification(
			ec2types.ResourceTypeInstance, namedTags(spec),
		),
	}
	if instSpec.SubnetID != "" {
		input.SubnetId = aws.String(instSpec.SubnetID)
	}
	if len(instSpec.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = instSpec.SecurityGroupIDs
	}
	if instSpec.KeyName != "" {
		input.KeyName = aws.String(instSpec.KeyName)
	}
	if instSpec.UserData != "" {
		input.UserData = aws.String(
			base64.StdEncoding.EncodeToString([]byte(instSpec.UserData)),
		)
	}

	var runOut *ec2.RunInstancesOutput
	err = retry.Do(ctx, func() error {
		var err error
		runOut, err = p.Clients.EC2.RunInstances(ctx, input)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run instance: %w", err)
	}
	instanceID := *runOut.Instances[0].InstanceId
	result.SetOutput("instance_id", instanceID)
	logger.Get().Infof("Launched instance %s from %s", instanceID, imageID)

	if instSpec.Wait {
		if err := p.waitForInstanceState(
			ctx, waiter.InstanceRunning, instanceID, ec2types.InstanceStateNameRunning,
		); err != nil {
			return nil, err
		}
		// Re-describe to pick up the addresses assigned after launch.
		launched, err := p.findInstanceByID(ctx, instanceID)
		if err == nil && launched != nil {
			result.SetOutput("private_ip", aws.ToString(launched.PrivateIpAddress))
			if launched.PublicIpAddress != nil {
				result.SetOutput("public_ip", *launched.PublicIpAddress)
			}
		}
	}
	return result, nil
}

// resolveImageID turns the spec's image reference into a concrete AMI
// ID: a pinned ID, a public SSM parameter, or a most-recent name
// filter.
func (p *AWSProvider) resolveImageID(
	ctx context.Context,
	instSpec *models.InstanceSpec,
) (string, error) {
	if instSpec.ImageID != "" {
		return instSpec.ImageID, nil
	}
	lookup := instSpec.ImageLookup
	if lookup == nil {
		return "", fmt.Errorf("instance spec needs image_id or image_lookup")
	}

	if lookup.SSMParameter != "" {
		var out *ssm.GetParameterOutput
		err := retry.Do(ctx, func() error {
			var err error
			out, err = p.Clients.SSM.GetParameter(ctx, &ssm.GetParameterInput{
				Name: aws.String(lookup.SSMParameter),
			})
			return err
		})
		if err != nil {
			return "", fmt.Errorf("failed to resolve AMI from SSM parameter %s: %w",
				lookup.SSMParameter, err)
		}
		return *out.Parameter.Value, nil
	}

	if lookup.NameFilter != "" {
		owner := lookup.Owner
		if owner == "" {
			owner = UbuntuAMIOwner
		}
		var out *ec2.DescribeImagesOutput
		err := retry.Do(ctx, func() error {
			var err error
			out, err = p.Clients.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
				Owners: []string{owner},
				Filters: []ec2types.Filter{
					{Name: aws.String("name"), Values: []string{lookup.NameFilter}},
					{Name: aws.String("state"), Values: []string{"available"}},
				},
			})
			return err
		})
		if err != nil {
			return "", fmt.Errorf("failed to search AMIs matching %s: %w", lookup.NameFilter, err)
		}
		if len(out.Images) == 0 {
			return "", fmt.Errorf("no AMI matches name filter %s for owner %s",
				lookup.NameFilter, owner)
		}
		images := out.Images
		sort.Slice(images, func(i, j int) bool {
			return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
		})
		return *images[0].ImageId, nil
	}
	return "", fmt.Errorf("image_lookup needs ssm_parameter or name_filter")
}

func (p *AWSProvider) waitForInstanceState(
	ctx context.Context,
	cfg waiter.Config,
	instanceID string,
	target ec2types.InstanceStateName,
) error {
	err := waiter.Wait(ctx, cfg, func(ctx context.Context) (bool, error) {
		out, err := p.Clients.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{instanceID},
		})
		if err != nil {
			if awsutil.IsNotFound(err) || awsutil.IsRetryable(err) {
				return false, nil
			}
			return false, err
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				if inst.State == nil {
					continue
				}
				name := inst.State.Name
				if name == target {
					return true, nil
				}
				// Waiting for running on an instance that died is hopeless.
				if target == ec2types.InstanceStateNameRunning &&
					(name == ec2types.InstanceStateNameTerminated ||
						name == ec2types.InstanceStateNameShuttingDown) {
					return false, fmt.Errorf("instance %s entered state %s", instanceID, name)
				}
			}
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("instance %s did not reach state %s: %w", instanceID, target, err)
	}
	return nil
}

func (p *AWSProvider) findInstanceByName(
	ctx context.Context,
	name string,
) (*ec2types.Instance, error) {
	return p.findInstance(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
			{Name: aws.String("instance-state-name"), Values: []string{
				"pending", "running", "stopping", "stopped",
			}},
		},
	})
}

func (p *AWSProvider) findInstanceByID(
	ctx context.Context,
	instanceID string,
) (*ec2types.Instance, error) {
	return p.findInstance(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
}

func (p *AWSProvider) findInstance(
	ctx context.Context,
	input *ec2.DescribeInstancesInput,
) (*ec2types.Instance, error) {
	var out *ec2.DescribeInstancesOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.EC2.DescribeInstances(ctx, input)
		return err
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, res := range out.Reservations {
		for i := range res.Instances {
			return &res.Instances[i], nil
		}
	}
	return nil, nil
}
