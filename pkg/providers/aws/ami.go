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

func (p *AWSProvider) reconcileImage(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}

	existing, err := p.findImageByName(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe images: %w", err)
	}

	if spec.State == models.StateAbsent {
		if existing == nil {
			return result, nil
		}
		imageID := *existing.ImageId
		result.Record("image", imageID, "deregistered")
		if opts.CheckMode {
			return result, nil
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.DeregisterImage(ctx, &ec2.DeregisterImageInput{
				ImageId: aws.String(imageID),
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			return nil, fmt.Errorf("failed to deregister image %s: %w", imageID, err)
		}
		return result, nil
	}

	imgSpec := spec.Image
	var imageID string

	if existing != nil {
		imageID = *existing.ImageId
		result.SetOutput("image_id", imageID)
	} else {
		source := imgSpec.InstanceID
		if source == "" {
			source = imgSpec.SnapshotID
		}
		if source == "" {
			return nil, fmt.Errorf("image spec needs instance_id or snapshot_id to create %s",
				spec.Name)
		}
		result.Record("image", "absent", fmt.Sprintf("from %s", source))
		if opts.CheckMode {
			return result, nil
		}

		var err error
		if imgSpec.InstanceID != "" {
			imageID, err = p.createImageFromInstance(ctx, spec, imgSpec)
		} else {
			imageID, err = p.registerImageFromSnapshot(ctx, spec, imgSpec)
		}
		if err != nil {
			return nil, err
		}
		result.SetOutput("image_id", imageID)
		logger.Get().Infof("Registered image %s from %s", imageID, source)

		if imgSpec.Wait {
			if err := p.waitForImageAvailable(ctx, imageID); err != nil {
				return nil, err
			}
		}
	}

	if err := p.convergeLaunchPermissions(ctx, imageID, imgSpec, opts, result); err != nil {
		return nil, err
	}
	if existing != nil {
		if err := p.convergeEC2Tags(
			ctx, imageID, awsutil.TagsToMap(existing.Tags), spec, opts, result,
		); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *AWSProvider) createImageFromInstance(
	ctx context.Context,
	spec models.ResourceSpec,
	imgSpec *models.ImageSpec,
) (string, error) {
	var created *ec2.CreateImageOutput
	err := retry.Do(ctx, func() error {
		var err error
		created, err = p.Clients.EC2.CreateImage(ctx, &ec2.CreateImageInput{
			InstanceId:  aws.String(imgSpec.InstanceID),
			Name:        aws.String(spec.Name),
			Description: aws.String(imgSpec.Description),
			NoReboot:    aws.Bool(imgSpec.NoReboot),
			TagSpecifications: awsutil.TagSpecification(
				ec2types.ResourceTypeImage, namedTags(spec),
			),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create image from %s: %w", imgSpec.InstanceID, err)
	}
	return *created.ImageId, nil
}

// registerImageFromSnapshot registers an HVM image with the snapshot as
// its root volume. RegisterImage does not accept tag specifications, so
// tags go on afterwards.
func (p *AWSProvider) registerImageFromSnapshot(
	ctx context.Context,
	spec models.ResourceSpec,
	imgSpec *models.ImageSpec,
) (string, error) {
	rootDevice := imgSpec.RootDeviceName
	if rootDevice == "" {
		rootDevice = "/dev/sda1"
	}
	arch := ec2types.ArchitectureValues(imgSpec.Architecture)
	if arch == "" {
		arch = ec2types.ArchitectureValuesX8664
	}

	var created *ec2.RegisterImageOutput
	err := retry.Do(ctx, func() error {
		var err error
		created, err = p.Clients.EC2.RegisterImage(ctx, &ec2.RegisterImageInput{
			Name:               aws.String(spec.Name),
			Description:        aws.String(imgSpec.Description),
			Architecture:       arch,
			RootDeviceName:     aws.String(rootDevice),
			VirtualizationType: aws.String("hvm"),
			BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
				DeviceName: aws.String(rootDevice),
				Ebs: &ec2types.EbsBlockDevice{
					SnapshotId:          aws.String(imgSpec.SnapshotID),
					DeleteOnTermination: aws.Bool(true),
				},
			}},
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to register image from %s: %w", imgSpec.SnapshotID, err)
	}
	imageID := *created.ImageId

	if tags := namedTags(spec); len(tags) > 0 {
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.EC2.CreateTags(ctx, &ec2.CreateTagsInput{
				Resources: []string{imageID},
				Tags:      awsutil.MapToTags(tags),
			})
			return err
		})
		if err != nil {
			return "", fmt.Errorf("failed to tag image %s: %w", imageID, err)
		}
	}
	return imageID, nil
}

func (p *AWSProvider) waitForImageAvailable(ctx context.Context, imageID string) error {
	err := waiter.Wait(ctx, waiter.ImageAvailable, func(ctx context.Context) (bool, error) {
		out, err := p.Clients.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
			ImageIds: []string{imageID},
		})
		if err != nil {
			if awsutil.IsNotFound(err) || awsutil.IsRetryable(err) {
				return false, nil
			}
			return false, err
		}
		if len(out.Images) == 0 {
			return false, nil
		}
		switch out.Images[0].State {
		case ec2types.ImageStateAvailable:
			return true, nil
		case ec2types.ImageStateFailed:
			return false, fmt.Errorf("image %s entered failed state", imageID)
		default:
			return false, nil
		}
	})
	if err != nil {
		return fmt.Errorf("image %s did not become available: %w", imageID, err)
	}
	return nil
}

// convergeLaunchPermissions aligns which accounts may launch the image.
func (p *AWSProvider) convergeLaunchPermissions(
	ctx context.Context,
	imageID string,
	imgSpec *models.ImageSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	if imgSpec.LaunchPermissions == nil {
		return nil
	}

	desired := make(map[string]struct{}, len(imgSpec.LaunchPermissions))
	for _, account := range imgSpec.LaunchPermissions {
		desired[account] = struct{}{}
	}

	current, err := p.describeLaunchPermissions(ctx, imageID)
	if err != nil {
		return err
	}

	var add, remove []ec2types.LaunchPermission
	for account := range desired {
		if _, ok := current[account]; !ok {
			add = append(add, ec2types.LaunchPermission{UserId: aws.String(account)})
			result.Record("launch_permission", "", account)
		}
	}
	for account := range current {
		if _, ok := desired[account]; !ok {
			remove = append(remove, ec2types.LaunchPermission{UserId: aws.String(account)})
			result.Record("launch_permission", account, "")
		}
	}
	if opts.CheckMode || (len(add) == 0 && len(remove) == 0) {
		return nil
	}

	err = retry.Do(ctx, func() error {
		_, err := p.Clients.EC2.ModifyImageAttribute(ctx, &ec2.ModifyImageAttributeInput{
			ImageId: aws.String(imageID),
			LaunchPermission: &ec2types.LaunchPermissionModifications{
				Add:    add,
				Remove: remove,
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to modify launch permissions on %s: %w", imageID, err)
	}
	return nil
}

// describeLaunchPermissions reads the accounts allowed to launch the
// image; launch permissions are an image attribute, not part of
// DescribeImages.
func (p *AWSProvider) describeLaunchPermissions(
	ctx context.Context,
	imageID string,
) (map[string]struct{}, error) {
	var out *ec2.DescribeImageAttributeOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.EC2.DescribeImageAttribute(ctx, &ec2.DescribeImageAttributeInput{
			ImageId:   aws.String(imageID),
			Attribute: ec2types.ImageAttributeNameLaunchPermission,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe launch permissions on %s: %w", imageID, err)
	}

	accounts := make(map[string]struct{}, len(out.LaunchPermissions))
	for _, perm := range out.LaunchPermissions {
		if perm.UserId != nil {
			accounts[*perm.UserId] = struct{}{}
		}
	}
	return accounts, nil
}

func (p *AWSProvider) findImageByName(ctx context.Context, name string) (*ec2types.Image, error) {
	var out *ec2.DescribeImagesOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
			Owners: []string{"self"},
			Filters: []ec2types.Filter{
				{Name: aws.String("name"), Values: []string{name}},
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
	if len(out.Images) == 0 {
		return nil, nil
	}
	return &out.Images[0], nil
}
