package awsprovider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
	"github.com/amarra-project/amarra/pkg/waiter"
)

func (p *AWSProvider) reconcileAutoScalingGroup(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}

	existing, err := p.findAutoScalingGroup(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe auto scaling group: %w", err)
	}

	if spec.State == models.StateAbsent {
		if existing == nil {
			return result, nil
		}
		result.Record("autoscaling_group", spec.Name, "absent")
		if opts.CheckMode {
			return result, nil
		}
		return result, p.deleteAutoScalingGroup(ctx, spec)
	}

	asgSpec := spec.Group
	if existing == nil {
		return p.createAutoScalingGroup(ctx, spec, asgSpec, opts, result)
	}

	if err := p.updateAutoScalingGroup(ctx, existing, asgSpec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeASGTags(ctx, existing, spec, opts, result); err != nil {
		return nil, err
	}
	if asgSpec.WaitForInstances && result.Changed && !opts.CheckMode {
		if err := p.waitForInService(ctx, spec.Name, asgSpec.MinSize); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *AWSProvider) createAutoScalingGroup(
	ctx context.Context,
	spec models.ResourceSpec,
	asgSpec *models.AutoScalingSpec,
	opts ReconcileOptions,
	result *models.Result,
) (*models.Result, error) {
	result.Record("autoscaling_group", "absent",
		fmt.Sprintf("min=%d max=%d", asgSpec.MinSize, asgSpec.MaxSize))
	if opts.CheckMode {
		return result, nil
	}

	input := &autoscaling.CreateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(spec.Name),
		MinSize:              aws.Int32(asgSpec.MinSize),
		MaxSize:              aws.Int32(asgSpec.MaxSize),
		LaunchTemplate:       launchTemplateSpecification(asgSpec.LaunchTemplate),
		Tags:                 asgTags(spec.Name, namedTags(spec)),
	}
	if asgSpec.DesiredCapacity != nil {
		input.DesiredCapacity = asgSpec.DesiredCapacity
	}
	if len(asgSpec.Subnets) > 0 {
		input.VPCZoneIdentifier = aws.String(strings.Join(asgSpec.Subnets, ","))
	}
	if asgSpec.HealthCheckType != "" {
		input.HealthCheckType = aws.String(asgSpec.HealthCheckType)
	}

	err := retry.Do(ctx, func() error {
		_, err := p.Clients.AutoScaling.CreateAutoScalingGroup(ctx, input)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auto scaling group %s: %w", spec.Name, err)
	}
	logger.Get().Infof("Created auto scaling group %s", spec.Name)

	if asgSpec.WaitForInstances {
		if err := p.waitForInService(ctx, spec.Name, asgSpec.MinSize); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *AWSProvider) updateAutoScalingGroup(
	ctx context.Context,
	existing *asgtypes.AutoScalingGroup,
	asgSpec *models.AutoScalingSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	name := aws.ToString(existing.AutoScalingGroupName)
	input := &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
	}
	dirty := false

	if aws.ToInt32(existing.MinSize) != asgSpec.MinSize {
		result.Record("min_size", aws.ToInt32(existing.MinSize), asgSpec.MinSize)
		input.MinSize = aws.Int32(asgSpec.MinSize)
		dirty = true
	}
	if aws.ToInt32(existing.MaxSize) != asgSpec.MaxSize {
		result.Record("max_size", aws.ToInt32(existing.MaxSize), asgSpec.MaxSize)
		input.MaxSize = aws.Int32(asgSpec.MaxSize)
		dirty = true
	}
	if asgSpec.DesiredCapacity != nil &&
		aws.ToInt32(existing.DesiredCapacity) != *asgSpec.DesiredCapacity {
		result.Record("desired_capacity",
			aws.ToInt32(existing.DesiredCapacity), *asgSpec.DesiredCapacity)
		input.DesiredCapacity = asgSpec.DesiredCapacity
		dirty = true
	}

	if len(asgSpec.Subnets) > 0 {
		desired := strings.Join(asgSpec.Subnets, ",")
		current := aws.ToString(existing.VPCZoneIdentifier)
		if !sameStringSet(strings.Split(current, ","), asgSpec.Subnets) {
			result.Record("subnets", current, desired)
			input.VPCZoneIdentifier = aws.String(desired)
			dirty = true
		}
	}
	if asgSpec.HealthCheckType != "" &&
		aws.ToString(existing.HealthCheckType) != asgSpec.HealthCheckType {
		result.Record("health_check_type",
			aws.ToString(existing.HealthCheckType), asgSpec.HealthCheckType)
		input.HealthCheckType = aws.String(asgSpec.HealthCheckType)
		dirty = true
	}

	if lt := launchTemplateDrift(existing, asgSpec.LaunchTemplate); lt != nil {
		result.Record("launch_template",
			describeLaunchTemplate(existing.LaunchTemplate), describeLaunchTemplate(lt))
		input.LaunchTemplate = lt
		dirty = true
	}

	if !dirty || opts.CheckMode {
		return nil
	}
	err := retry.Do(ctx, func() error {
		_, err := p.Clients.AutoScaling.UpdateAutoScalingGroup(ctx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update auto scaling group %s: %w", name, err)
	}
	return nil
}

// deleteAutoScalingGroup drains the group before deleting it. Forced
// deletion skips the drain and lets the service terminate instances.
func (p *AWSProvider) deleteAutoScalingGroup(ctx context.Context, spec models.ResourceSpec) error {
	force := spec.Group != nil && spec.Group.Force

	if !force {
		if err := p.scaleGroupToZero(ctx, spec.Name); err != nil {
			return err
		}
	}

	err := retry.Do(ctx, func() error {
		_, err := p.Clients.AutoScaling.DeleteAutoScalingGroup(ctx,
			&autoscaling.DeleteAutoScalingGroupInput{
				AutoScalingGroupName: aws.String(spec.Name),
				ForceDelete:          aws.Bool(force),
			})
		return err
	})
	if err := awsutil.IgnoreNotFound(err); err != nil {
		return fmt.Errorf("failed to delete auto scaling group %s: %w", spec.Name, err)
	}

	err = waiter.Wait(ctx, waiter.GroupDeleted, func(ctx context.Context) (bool, error) {
		group, err := p.findAutoScalingGroup(ctx, spec.Name)
		if err != nil {
			return false, err
		}
		return group == nil, nil
	})
	if err != nil {
		return fmt.Errorf("auto scaling group %s still present after deletion: %w", spec.Name, err)
	}
	return nil
}

// scaleGroupToZero sets min/max/desired to zero and waits until the
// last instance has left the group. DeleteAutoScalingGroup without
// ForceDelete is rejected while instances remain.
func (p *AWSProvider) scaleGroupToZero(ctx context.Context, name string) error {
	logger.Get().Infof("Scaling auto scaling group %s to zero before deletion", name)

	err := retry.Do(ctx, func() error {
		_, err := p.Clients.AutoScaling.UpdateAutoScalingGroup(ctx,
			&autoscaling.UpdateAutoScalingGroupInput{
				AutoScalingGroupName: aws.String(name),
				MinSize:              aws.Int32(0),
				MaxSize:              aws.Int32(0),
				DesiredCapacity:      aws.Int32(0),
			})
		return err
	})
	if err := awsutil.IgnoreNotFound(err); err != nil {
		return fmt.Errorf("failed to scale auto scaling group %s to zero: %w", name, err)
	}

	err = waiter.Wait(ctx, waiter.GroupDeleted, func(ctx context.Context) (bool, error) {
		group, err := p.findAutoScalingGroup(ctx, name)
		if err != nil {
			return false, err
		}
		return group == nil || len(group.Instances) == 0, nil
	})
	if err != nil {
		return fmt.Errorf("auto scaling group %s did not drain: %w", name, err)
	}
	return nil
}

// waitForInService polls until at least min instances report InService.
func (p *AWSProvider) waitForInService(ctx context.Context, name string, min int32) error {
	l := logger.Get()
	err := waiter.Wait(ctx, waiter.GroupInService, func(ctx context.Context) (bool, error) {
		group, err := p.findAutoScalingGroup(ctx, name)
		if err != nil {
			return false, err
		}
		if group == nil {
			return false, fmt.Errorf("auto scaling group %s disappeared while waiting", name)
		}
		inService := int32(0)
		for _, inst := range group.Instances {
			if inst.LifecycleState == asgtypes.LifecycleStateInService {
				inService++
			}
		}
		l.Debugf("Auto scaling group %s: %d/%d instances in service", name, inService, min)
		return inService >= min, nil
	})
	if err != nil {
		return fmt.Errorf("auto scaling group %s did not reach %d in-service instances: %w",
			name, min, err)
	}
	return nil
}

func (p *AWSProvider) convergeASGTags(
	ctx context.Context,
	existing *asgtypes.AutoScalingGroup,
	spec models.ResourceSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	current := make(map[string]string, len(existing.Tags))
	for _, tag := range existing.Tags {
		current[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}

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
			_, err := p.Clients.AutoScaling.CreateOrUpdateTags(ctx,
				&autoscaling.CreateOrUpdateTagsInput{
					Tags: asgTags(spec.Name, toSet),
				})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to set tags on auto scaling group %s: %w", spec.Name, err)
		}
	}
	if len(toRemove) > 0 {
		removeTags := make([]asgtypes.Tag, 0, len(toRemove))
		for _, k := range toRemove {
			removeTags = append(removeTags, asgtypes.Tag{
				Key:               aws.String(k),
				ResourceId:        aws.String(spec.Name),
				ResourceType:      aws.String("auto-scaling-group"),
				PropagateAtLaunch: aws.Bool(true),
			})
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.AutoScaling.DeleteTags(ctx, &autoscaling.DeleteTagsInput{
				Tags: removeTags,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to remove tags on auto scaling group %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (p *AWSProvider) findAutoScalingGroup(
	ctx context.Context,
	name string,
) (*asgtypes.AutoScalingGroup, error) {
	var out *autoscaling.DescribeAutoScalingGroupsOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.AutoScaling.DescribeAutoScalingGroups(ctx,
			&autoscaling.DescribeAutoScalingGroupsInput{
				AutoScalingGroupNames: []string{name},
			})
		return err
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.AutoScalingGroups) == 0 {
		return nil, nil
	}
	return &out.AutoScalingGroups[0], nil
}

func launchTemplateSpecification(ref models.LaunchTemplateRef) *asgtypes.LaunchTemplateSpecification {
	lt := &asgtypes.LaunchTemplateSpecification{}
	if ref.ID != "" {
		lt.LaunchTemplateId = aws.String(ref.ID)
	}
	if ref.Name != "" {
		lt.LaunchTemplateName = aws.String(ref.Name)
	}
	version := ref.Version
	if version == "" {
		version = "$Latest"
	}
	lt.Version = aws.String(version)
	return lt
}

func launchTemplateDrift(
	existing *asgtypes.AutoScalingGroup,
	ref models.LaunchTemplateRef,
) *asgtypes.LaunchTemplateSpecification {
	if ref.ID == "" && ref.Name == "" {
		return nil
	}
	desired := launchTemplateSpecification(ref)
	current := existing.LaunchTemplate
	if current == nil {
		return desired
	}
	if ref.ID != "" && aws.ToString(current.LaunchTemplateId) != ref.ID {
		return desired
	}
	if ref.Name != "" && aws.ToString(current.LaunchTemplateName) != ref.Name {
		return desired
	}
	if aws.ToString(desired.Version) != aws.ToString(current.Version) {
		return desired
	}
	return nil
}

func describeLaunchTemplate(lt *asgtypes.LaunchTemplateSpecification) string {
	if lt == nil {
		return "none"
	}
	name := aws.ToString(lt.LaunchTemplateName)
	if name == "" {
		name = aws.ToString(lt.LaunchTemplateId)
	}
	return fmt.Sprintf("%s@%s", name, aws.ToString(lt.Version))
}

func asgTags(groupName string, tags map[string]string) []asgtypes.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]asgtypes.Tag, 0, len(keys))
	for _, k := range keys {
		result = append(result, asgtypes.Tag{
			Key:               aws.String(k),
			Value:             aws.String(tags[k]),
			ResourceId:        aws.String(groupName),
			ResourceType:      aws.String("auto-scaling-group"),
			PropagateAtLaunch: aws.Bool(true),
		})
	}
	return result
}
