package awsprovider

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amarra-project/amarra/pkg/models"
)

func imageSpec(state models.State) models.ResourceSpec {
	return models.ResourceSpec{
		Type:  models.TypeImage,
		Name:  "web-golden",
		State: state,
		Image: &models.ImageSpec{
			InstanceID:  "i-0123",
			Description: "golden web image",
		},
	}
}

func liveImage() ec2types.Image {
	return ec2types.Image{
		ImageId: aws.String("ami-0456"),
		Name:    aws.String("web-golden"),
		State:   ec2types.ImageStateAvailable,
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String("web-golden")},
		},
	}
}

func TestReconcileImageCreatesFromInstance(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeImages", mock.Anything, mock.Anything).
		Return(&ec2.DescribeImagesOutput{}, nil)
	m.EC2.On("CreateImage", mock.Anything, mock.MatchedBy(func(in *ec2.CreateImageInput) bool {
		return aws.ToString(in.InstanceId) == "i-0123" && aws.ToString(in.Name) == "web-golden"
	})).Return(&ec2.CreateImageOutput{ImageId: aws.String("ami-0456")}, nil)

	result, err := p.reconcileImage(context.Background(), imageSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "ami-0456", result.Output["image_id"])
	m.EC2.AssertExpectations(t)
}

func TestReconcileImageCreateWaitsForAvailable(t *testing.T) {
	p, m := newTestProvider()

	spec := imageSpec(models.StatePresent)
	spec.Image.Wait = true

	m.EC2.On("DescribeImages", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeImagesInput) bool {
		return len(in.Filters) > 0
	})).Return(&ec2.DescribeImagesOutput{}, nil)
	m.EC2.On("CreateImage", mock.Anything, mock.Anything).
		Return(&ec2.CreateImageOutput{ImageId: aws.String("ami-0456")}, nil)
	m.EC2.On("DescribeImages", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeImagesInput) bool {
		return len(in.ImageIds) == 1 && in.ImageIds[0] == "ami-0456"
	})).Return(&ec2.DescribeImagesOutput{Images: []ec2types.Image{liveImage()}}, nil)

	result, err := p.reconcileImage(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertExpectations(t)
}

func TestReconcileImageRegistersFromSnapshot(t *testing.T) {
	p, m := newTestProvider()

	spec := imageSpec(models.StatePresent)
	spec.Image.InstanceID = ""
	spec.Image.SnapshotID = "snap-0123"

	m.EC2.On("DescribeImages", mock.Anything, mock.Anything).
		Return(&ec2.DescribeImagesOutput{}, nil)
	m.EC2.On("RegisterImage", mock.Anything, mock.MatchedBy(func(in *ec2.RegisterImageInput) bool {
		return aws.ToString(in.Name) == "web-golden" &&
			aws.ToString(in.RootDeviceName) == "/dev/sda1" &&
			len(in.BlockDeviceMappings) == 1 &&
			aws.ToString(in.BlockDeviceMappings[0].Ebs.SnapshotId) == "snap-0123"
	})).Return(&ec2.RegisterImageOutput{ImageId: aws.String("ami-0789")}, nil)
	m.EC2.On("CreateTags", mock.Anything, mock.MatchedBy(func(in *ec2.CreateTagsInput) bool {
		return len(in.Resources) == 1 && in.Resources[0] == "ami-0789"
	})).Return(&ec2.CreateTagsOutput{}, nil)

	result, err := p.reconcileImage(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "ami-0789", result.Output["image_id"])
	m.EC2.AssertNotCalled(t, "CreateImage", mock.Anything, mock.Anything)
	m.EC2.AssertExpectations(t)
}

func TestReconcileImageNeedsASource(t *testing.T) {
	p, m := newTestProvider()

	spec := imageSpec(models.StatePresent)
	spec.Image.InstanceID = ""

	m.EC2.On("DescribeImages", mock.Anything, mock.Anything).
		Return(&ec2.DescribeImagesOutput{}, nil)

	_, err := p.reconcileImage(context.Background(), spec, ReconcileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance_id or snapshot_id")
}

func TestReconcileImageAlreadyPresent(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeImages", mock.Anything, mock.Anything).
		Return(&ec2.DescribeImagesOutput{Images: []ec2types.Image{liveImage()}}, nil)

	result, err := p.reconcileImage(context.Background(), imageSpec(models.StatePresent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.EC2.AssertNotCalled(t, "CreateImage", mock.Anything, mock.Anything)
}

func TestReconcileImageConvergesLaunchPermissions(t *testing.T) {
	p, m := newTestProvider()

	spec := imageSpec(models.StatePresent)
	spec.Image.LaunchPermissions = []string{"210987654321"}

	m.EC2.On("DescribeImages", mock.Anything, mock.Anything).
		Return(&ec2.DescribeImagesOutput{Images: []ec2types.Image{liveImage()}}, nil)
	m.EC2.On("DescribeImageAttribute", mock.Anything, mock.Anything).
		Return(&ec2.DescribeImageAttributeOutput{
			LaunchPermissions: []ec2types.LaunchPermission{
				{UserId: aws.String("111111111111")},
			},
		}, nil)
	m.EC2.On("ModifyImageAttribute", mock.Anything, mock.MatchedBy(func(in *ec2.ModifyImageAttributeInput) bool {
		return len(in.LaunchPermission.Add) == 1 && len(in.LaunchPermission.Remove) == 1 &&
			aws.ToString(in.LaunchPermission.Add[0].UserId) == "210987654321"
	})).Return(&ec2.ModifyImageAttributeOutput{}, nil)

	result, err := p.reconcileImage(context.Background(), spec, ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertExpectations(t)
}

func TestReconcileImageDeregisters(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeImages", mock.Anything, mock.Anything).
		Return(&ec2.DescribeImagesOutput{Images: []ec2types.Image{liveImage()}}, nil)
	m.EC2.On("DeregisterImage", mock.Anything, mock.MatchedBy(func(in *ec2.DeregisterImageInput) bool {
		return aws.ToString(in.ImageId) == "ami-0456"
	})).Return(&ec2.DeregisterImageOutput{}, nil)

	result, err := p.reconcileImage(context.Background(), imageSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	m.EC2.AssertExpectations(t)
}

func TestReconcileImageDeregisterAbsentIsNoop(t *testing.T) {
	p, m := newTestProvider()

	m.EC2.On("DescribeImages", mock.Anything, mock.Anything).
		Return(&ec2.DescribeImagesOutput{}, nil)

	result, err := p.reconcileImage(context.Background(), imageSpec(models.StateAbsent), ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	m.EC2.AssertNotCalled(t, "DeregisterImage", mock.Anything, mock.Anything)
}
