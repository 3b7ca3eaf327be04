package awsprovider

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amarra-project/amarra/pkg/models"
)

func asgSpec(state models.State) models.ResourceSpec {
	return models.ResourceSpec{
		Type:  models.TypeAutoScalingGroup,
		Name:  "web-asg",
		State: state,
		Group: &models.AutoScalingSpec{
			MinSize: 2,
			MaxSize: 6,
			LaunchTemplate: models.LaunchTemplateRef{
				Name:    "web-template",
				Version: "$Latest",
			},
			Subnets: []string{"subnet-a", "subnet-b"},
		},
	}
}

func existingASG() asgtypes.AutoScalingGroup {
	return asgtypes.AutoScalingGroup{
		AutoScalingGroupName: aws.String("web-asg"),
		MinSize:              aws.Int32(2),
		MaxSize:              aws.Int32(6),
		DesiredCapacity:      aws.Int32(2),
		VPCZoneIdentifier:    aws.String("subnet-a,subnet-b"),
		LaunchTemplate: &asgtypes.LaunchTemplateSpecification{
			LaunchTemplateName: aws.String("web-template"),
			Version:            aws.String("$Latest"),
		},
		Tags: []asgtypes.TagDescription{{
			Key:   aws.String("Name"),
			Value: aws.String("web-asg"),
		}},
	}
}

func describedASG(groups ...asgtypes.AutoScalingGroup) *autoscaling.DescribeAutoScalingGroupsOutput {
	return &autoscaling.DescribeAutoScalingGroupsOutput{AutoScalingGroups: groups}
}

func TestReconcileASGCreates(t *testing.T) {
	p, m := newTestProvider()

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(), nil)
	m.AutoScaling.On("CreateAutoScalingGroup", mock.Anything, mock.MatchedBy(func(in *autoscaling.CreateAutoScalingGroupInput) bool {
		return aws.ToString(in.AutoScalingGroupName) == "web-asg" &&
			aws.ToInt32(in.MinSize) == 2 &&
			aws.ToInt32(in.MaxSize) == 6 &&
			aws.ToString(in.VPCZoneIdentifier) == "subnet-a,subnet-b" &&
			aws.ToString(in.LaunchTemplate.LaunchTemplateName) == "web-template"
	})).Return(&autoscaling.CreateAutoScalingGroupOutput{}, nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), asgSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.AutoScaling.AssertExpectations(t)
}

func TestReconcileASGCreateWaitsForInstances(t *testing.T) {
	p, m := newTestProvider()

	spec := asgSpec(models.StatePresent)
	spec.Group.WaitForInstances = true

	inService := existingASG()
	inService.Instances = []asgtypes.Instance{
		{InstanceId: aws.String("i-1"), LifecycleState: asgtypes.LifecycleStateInService},
		{InstanceId: aws.String("i-2"), LifecycleState: asgtypes.LifecycleStateInService},
	}

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(), nil).Once()
	m.AutoScaling.On("CreateAutoScalingGroup", mock.Anything, mock.Anything).
		Return(&autoscaling.CreateAutoScalingGroupOutput{}, nil)
	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(inService), nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.AutoScaling.AssertExpectations(t)
}

func TestReconcileASGAlreadyConverged(t *testing.T) {
	p, m := newTestProvider()

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(existingASG()), nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), asgSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.AutoScaling.AssertNotCalled(t, "UpdateAutoScalingGroup", mock.Anything, mock.Anything)
	m.AutoScaling.AssertNotCalled(t, "CreateOrUpdateTags", mock.Anything, mock.Anything)
}

func TestReconcileASGResizes(t *testing.T) {
	p, m := newTestProvider()

	spec := asgSpec(models.StatePresent)
	spec.Group.MaxSize = 10

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(existingASG()), nil)
	m.AutoScaling.On("UpdateAutoScalingGroup", mock.Anything, mock.MatchedBy(func(in *autoscaling.UpdateAutoScalingGroupInput) bool {
		return aws.ToInt32(in.MaxSize) == 10 && in.MinSize == nil
	})).Return(&autoscaling.UpdateAutoScalingGroupOutput{}, nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "max_size", result.Changes[0].Field)
	m.AutoScaling.AssertExpectations(t)
}

func TestReconcileASGLaunchTemplateVersionDrift(t *testing.T) {
	p, m := newTestProvider()

	spec := asgSpec(models.StatePresent)
	spec.Group.LaunchTemplate.Version = "3"

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(existingASG()), nil)
	m.AutoScaling.On("UpdateAutoScalingGroup", mock.Anything, mock.MatchedBy(func(in *autoscaling.UpdateAutoScalingGroupInput) bool {
		return in.LaunchTemplate != nil && aws.ToString(in.LaunchTemplate.Version) == "3"
	})).Return(&autoscaling.UpdateAutoScalingGroupOutput{}, nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.AutoScaling.AssertExpectations(t)
}

func TestReconcileASGCheckModeNeverMutates(t *testing.T) {
	p, m := newTestProvider()

	spec := asgSpec(models.StatePresent)
	spec.Group.MinSize = 4

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(existingASG()), nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), spec,
		ReconcileOptions{CheckMode: true})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.AutoScaling.AssertNotCalled(t, "UpdateAutoScalingGroup", mock.Anything, mock.Anything)
}

func TestReconcileASGForceDelete(t *testing.T) {
	p, m := newTestProvider()

	spec := asgSpec(models.StateAbsent)
	spec.Group.Force = true

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(existingASG()), nil).Once()
	m.AutoScaling.On("DeleteAutoScalingGroup", mock.Anything, mock.MatchedBy(func(in *autoscaling.DeleteAutoScalingGroupInput) bool {
		return aws.ToBool(in.ForceDelete)
	})).Return(&autoscaling.DeleteAutoScalingGroupOutput{}, nil)
	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(), nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.AutoScaling.AssertExpectations(t)
}

func TestReconcileASGDeleteScalesToZeroFirst(t *testing.T) {
	p, m := newTestProvider()

	populated := existingASG()
	populated.Instances = []asgtypes.Instance{
		{InstanceId: aws.String("i-1"), LifecycleState: asgtypes.LifecycleStateInService},
	}

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(populated), nil).Once()
	m.AutoScaling.On("UpdateAutoScalingGroup", mock.Anything, mock.MatchedBy(func(in *autoscaling.UpdateAutoScalingGroupInput) bool {
		return aws.ToInt32(in.MinSize) == 0 &&
			aws.ToInt32(in.MaxSize) == 0 &&
			aws.ToInt32(in.DesiredCapacity) == 0
	})).Return(&autoscaling.UpdateAutoScalingGroupOutput{}, nil)
	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(existingASG()), nil).Once()
	m.AutoScaling.On("DeleteAutoScalingGroup", mock.Anything, mock.MatchedBy(func(in *autoscaling.DeleteAutoScalingGroupInput) bool {
		return !aws.ToBool(in.ForceDelete)
	})).Return(&autoscaling.DeleteAutoScalingGroupOutput{}, nil)
	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(), nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), asgSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.AutoScaling.AssertExpectations(t)
}

func TestReconcileASGForceDeleteSkipsDrain(t *testing.T) {
	p, m := newTestProvider()

	spec := asgSpec(models.StateAbsent)
	spec.Group.Force = true

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(existingASG()), nil).Once()
	m.AutoScaling.On("DeleteAutoScalingGroup", mock.Anything, mock.Anything).
		Return(&autoscaling.DeleteAutoScalingGroupOutput{}, nil)
	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(), nil)

	_, err := p.reconcileAutoScalingGroup(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	m.AutoScaling.AssertNotCalled(t, "UpdateAutoScalingGroup", mock.Anything, mock.Anything)
}

func TestReconcileASGDeleteAbsentIsNoop(t *testing.T) {
	p, m := newTestProvider()

	m.AutoScaling.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).
		Return(describedASG(), nil)

	result, err := p.reconcileAutoScalingGroup(context.Background(), asgSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.AutoScaling.AssertNotCalled(t, "DeleteAutoScalingGroup", mock.Anything, mock.Anything)
}
