package awsprovider

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
	"github.com/amarra-project/amarra/pkg/waiter"
)

func (p *AWSProvider) reconcileBucket(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}
	bucket := spec.Name

	exists, err := p.bucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to head bucket %s: %w", bucket, err)
	}

	if spec.State == models.StateAbsent {
		if !exists {
			return result, nil
		}
		result.Record("bucket", bucket, "absent")
		if opts.CheckMode {
			return result, nil
		}
		return result, p.deleteBucket(ctx, spec)
	}

	bucketSpec := spec.Bucket
	if !exists {
		result.Record("bucket", "absent", bucket)
		if opts.CheckMode {
			return result, nil
		}
		if err := p.createBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}
	result.SetOutput("bucket", bucket)

	if err := p.convergeBucketVersioning(ctx, bucket, bucketSpec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeBucketPolicy(ctx, bucket, bucketSpec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeBucketTags(ctx, bucket, spec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeBucketEncryption(ctx, bucket, bucketSpec, opts, result); err != nil {
		return nil, err
	}
	if err := p.convergeBucketPublicAccessBlock(ctx, bucket, bucketSpec, opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *AWSProvider) bucketExists(ctx context.Context, bucket string) (bool, error) {
	err := retry.Do(ctx, func() error {
		_, err := p.Clients.S3.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		return err
	})
	if err != nil {
		if awsutil.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *AWSProvider) createBucket(ctx context.Context, bucket string) error {
	l := logger.Get()

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint.
	if p.Clients.Region != "" && p.Clients.Region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.Clients.Region),
		}
	}

	err := retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
		_, err := p.Clients.S3.CreateBucket(ctx, input)
		return err
	})
	if err != nil {
		code := awsutil.ErrCode(err)
		if code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	l.Infof("Created bucket %s, waiting for it to exist", bucket)

	// S3 creation is eventually consistent; wait until HeadBucket stops
	// returning 404 before attaching configuration.
	err = waiter.Wait(ctx, waiter.BucketExists, func(ctx context.Context) (bool, error) {
		_, err := p.Clients.S3.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			if awsutil.IsNotFound(err) || awsutil.IsRetryable(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("bucket %s did not become visible after creation: %w", bucket, err)
	}
	return nil
}

// bucketRetryConfig also retries the OperationAborted conflicts S3
// returns while a prior operation on the same bucket settles.
func bucketRetryConfig() retry.Config {
	cfg := retry.DefaultConfig
	cfg.ShouldRetry = func(err error) bool {
		if awsutil.IsRetryable(err) {
			return true
		}
		return awsutil.ErrCode(err) == "OperationAborted"
	}
	return cfg
}

func (p *AWSProvider) convergeBucketVersioning(
	ctx context.Context,
	bucket string,
	bucketSpec *models.BucketSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	if bucketSpec.Versioning == nil {
		return nil
	}

	var current s3types.BucketVersioningStatus
	err := retry.Do(ctx, func() error {
		out, err := p.Clients.S3.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			return err
		}
		current = out.Status
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to get versioning on %s: %w", bucket, err)
	}

	desired := s3types.BucketVersioningStatusSuspended
	if *bucketSpec.Versioning {
		desired = s3types.BucketVersioningStatusEnabled
	}
	// A bucket that never had versioning reports an empty status; only
	// suspend when it was actually enabled before.
	if current == desired || (current == "" && desired == s3types.BucketVersioningStatusSuspended) {
		return nil
	}

	result.Record("versioning", string(current), string(desired))
	if opts.CheckMode {
		return nil
	}
	err = retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
		_, err := p.Clients.S3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
			Bucket: aws.String(bucket),
			VersioningConfiguration: &s3types.VersioningConfiguration{
				Status: desired,
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to put versioning on %s: %w", bucket, err)
	}
	return nil
}

func (p *AWSProvider) convergeBucketPolicy(
	ctx context.Context,
	bucket string,
	bucketSpec *models.BucketSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	if bucketSpec.Policy == nil {
		return nil
	}
	desired := *bucketSpec.Policy

	var current string
	err := retry.Do(ctx, func() error {
		out, err := p.Clients.S3.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			if awsutil.IsNotFound(err) {
				current = ""
				return nil
			}
			return err
		}
		current = aws.ToString(out.Policy)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to get policy on %s: %w", bucket, err)
	}

	equal, err := awsutil.ComparePolicies(current, desired)
	if err != nil {
		return fmt.Errorf("failed to compare policies on %s: %w", bucket, err)
	}
	if equal {
		return nil
	}

	switch {
	case desired == "":
		result.Record("policy", "present", "absent")
		if opts.CheckMode {
			return nil
		}
		err = retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
			_, err := p.Clients.S3.DeleteBucketPolicy(ctx, &s3.DeleteBucketPolicyInput{
				Bucket: aws.String(bucket),
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			return fmt.Errorf("failed to delete policy on %s: %w", bucket, err)
		}
	default:
		before := "absent"
		if current != "" {
			before = "present"
		}
		result.Record("policy", before, "updated")
		if opts.CheckMode {
			return nil
		}
		err = retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
			_, err := p.Clients.S3.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
				Bucket: aws.String(bucket),
				Policy: aws.String(desired),
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to put policy on %s: %w", bucket, err)
		}
	}
	return nil
}

func (p *AWSProvider) convergeBucketTags(
	ctx context.Context,
	bucket string,
	spec models.ResourceSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	if spec.Tags == nil && !spec.PurgeTags {
		return nil
	}

	current := map[string]string{}
	err := retry.Do(ctx, func() error {
		out, err := p.Clients.S3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			if awsutil.IsNotFound(err) {
				return nil
			}
			return err
		}
		for _, tag := range out.TagSet {
			current[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to get tags on %s: %w", bucket, err)
	}

	toSet, toRemove := awsutil.CompareTags(current, spec.Tags, spec.PurgeTags)
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

	// S3 tagging is replace-the-set: merge unless purging.
	merged := make(map[string]string)
	if !spec.PurgeTags {
		for k, v := range current {
			merged[k] = v
		}
	}
	for k, v := range spec.Tags {
		merged[k] = v
	}

	if len(merged) == 0 {
		err = retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
			_, err := p.Clients.S3.DeleteBucketTagging(ctx, &s3.DeleteBucketTaggingInput{
				Bucket: aws.String(bucket),
			})
			return err
		})
		if err := awsutil.IgnoreNotFound(err); err != nil {
			return fmt.Errorf("failed to delete tags on %s: %w", bucket, err)
		}
		return nil
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tagSet := make([]s3types.Tag, 0, len(merged))
	for _, k := range keys {
		tagSet = append(tagSet, s3types.Tag{
			Key:   aws.String(k),
			Value: aws.String(merged[k]),
		})
	}

	err = retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
		_, err := p.Clients.S3.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
			Bucket:  aws.String(bucket),
			Tagging: &s3types.Tagging{TagSet: tagSet},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to put tags on %s: %w", bucket, err)
	}
	return nil
}

func (p *AWSProvider) convergeBucketEncryption(
	ctx context.Context,
	bucket string,
	bucketSpec *models.BucketSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	if bucketSpec.Encryption == "" {
		return nil
	}

	var currentAlgorithm, currentKey string
	err := retry.Do(ctx, func() error {
		out, err := p.Clients.S3.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			if awsutil.IsNotFound(err) ||
				awsutil.ErrCode(err) == "ServerSideEncryptionConfigurationNotFoundError" {
				return nil
			}
			return err
		}
		if out.ServerSideEncryptionConfiguration != nil {
			for _, rule := range out.ServerSideEncryptionConfiguration.Rules {
				if rule.ApplyServerSideEncryptionByDefault != nil {
					currentAlgorithm = string(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm)
					currentKey = aws.ToString(rule.ApplyServerSideEncryptionByDefault.KMSMasterKeyID)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to get encryption on %s: %w", bucket, err)
	}

	if currentAlgorithm == bucketSpec.Encryption && currentKey == bucketSpec.KMSKeyID {
		return nil
	}
	result.Record("encryption", currentAlgorithm, bucketSpec.Encryption)
	if opts.CheckMode {
		return nil
	}

	byDefault := &s3types.ServerSideEncryptionByDefault{
		SSEAlgorithm: s3types.ServerSideEncryption(bucketSpec.Encryption),
	}
	if bucketSpec.KMSKeyID != "" {
		byDefault.KMSMasterKeyID = aws.String(bucketSpec.KMSKeyID)
	}

	err = retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
		_, err := p.Clients.S3.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
			Bucket: aws.String(bucket),
			ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
				Rules: []s3types.ServerSideEncryptionRule{
					{ApplyServerSideEncryptionByDefault: byDefault},
				},
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to put encryption on %s: %w", bucket, err)
	}
	return nil
}

func (p *AWSProvider) convergeBucketPublicAccessBlock(
	ctx context.Context,
	bucket string,
	bucketSpec *models.BucketSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	if bucketSpec.PublicAccessBlock == nil {
		return nil
	}
	desired := bucketSpec.PublicAccessBlock

	var current *s3types.PublicAccessBlockConfiguration
	err := retry.Do(ctx, func() error {
		out, err := p.Clients.S3.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			if awsutil.IsNotFound(err) ||
				awsutil.ErrCode(err) == "NoSuchPublicAccessBlockConfiguration" {
				return nil
			}
			return err
		}
		current = out.PublicAccessBlockConfiguration
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to get public access block on %s: %w", bucket, err)
	}

	matches := current != nil &&
		aws.ToBool(current.BlockPublicAcls) == desired.BlockPublicAcls &&
		aws.ToBool(current.IgnorePublicAcls) == desired.IgnorePublicAcls &&
		aws.ToBool(current.BlockPublicPolicy) == desired.BlockPublicPolicy &&
		aws.ToBool(current.RestrictPublicBuckets) == desired.RestrictPublicBuckets
	if matches {
		return nil
	}

	result.Record("public_access_block", describePublicAccessBlock(current),
		fmt.Sprintf("%+v", *desired))
	if opts.CheckMode {
		return nil
	}

	err = retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
		_, err := p.Clients.S3.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
			Bucket: aws.String(bucket),
			PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(desired.BlockPublicAcls),
				IgnorePublicAcls:      aws.Bool(desired.IgnorePublicAcls),
				BlockPublicPolicy:     aws.Bool(desired.BlockPublicPolicy),
				RestrictPublicBuckets: aws.Bool(desired.RestrictPublicBuckets),
			},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to put public access block on %s: %w", bucket, err)
	}
	return nil
}

func describePublicAccessBlock(cfg *s3types.PublicAccessBlockConfiguration) string {
	if cfg == nil {
		return "absent"
	}
	return fmt.Sprintf(
		"{BlockPublicAcls:%t IgnorePublicAcls:%t BlockPublicPolicy:%t RestrictPublicBuckets:%t}",
		aws.ToBool(cfg.BlockPublicAcls),
		aws.ToBool(cfg.IgnorePublicAcls),
		aws.ToBool(cfg.BlockPublicPolicy),
		aws.ToBool(cfg.RestrictPublicBuckets),
	)
}

func (p *AWSProvider) deleteBucket(ctx context.Context, spec models.ResourceSpec) error {
	l := logger.Get()
	bucket := spec.Name

	if spec.Bucket != nil && spec.Bucket.Force {
		if err := p.emptyBucket(ctx, bucket); err != nil {
			return err
		}
	}

	err := retry.DoWithConfig(ctx, bucketRetryConfig(), func() error {
		_, err := p.Clients.S3.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucket),
		})
		return err
	})
	if err := awsutil.IgnoreNotFound(err); err != nil {
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}

	err = waiter.Wait(ctx, waiter.BucketNotExists, func(ctx context.Context) (bool, error) {
		_, err := p.Clients.S3.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			if awsutil.IsNotFound(err) {
				return true, nil
			}
			if awsutil.IsRetryable(err) {
				return false, nil
			}
			return false, err
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("bucket %s still visible after deletion: %w", bucket, err)
	}
	l.Infof("Deleted bucket %s", bucket)
	return nil
}

// emptyBucket removes all objects so the bucket can be deleted. The
// second pass removes old versions and delete markers, which keep a
// versioned bucket non-empty after the current objects are gone.
func (p *AWSProvider) emptyBucket(ctx context.Context, bucket string) error {
	if err := p.purgeCurrentObjects(ctx, bucket); err != nil {
		return err
	}
	return p.purgeObjectVersions(ctx, bucket)
}

func (p *AWSProvider) purgeCurrentObjects(ctx context.Context, bucket string) error {
	l := logger.Get()
	var continuation *string

	for {
		var page *s3.ListObjectsV2Output
		err := retry.Do(ctx, func() error {
			var err error
			page, err = p.Clients.S3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(bucket),
				ContinuationToken: continuation,
			})
			return err
		})
		if err != nil {
			if awsutil.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to list objects in %s: %w", bucket, err)
		}
		if len(page.Contents) == 0 {
			return nil
		}

		objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
		}
		err = retry.Do(ctx, func() error {
			_, err := p.Clients.S3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &s3types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects in %s: %w", bucket, err)
		}
		l.Debugf("Deleted %d objects from %s", len(objects), bucket)

		if !aws.ToBool(page.IsTruncated) {
			return nil
		}
		continuation = page.NextContinuationToken
	}
}

func (p *AWSProvider) purgeObjectVersions(ctx context.Context, bucket string) error {
	l := logger.Get()
	var keyMarker, versionMarker *string

	for {
		var page *s3.ListObjectVersionsOutput
		err := retry.Do(ctx, func() error {
			var err error
			page, err = p.Clients.S3.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
				Bucket:          aws.String(bucket),
				KeyMarker:       keyMarker,
				VersionIdMarker: versionMarker,
			})
			return err
		})
		if err != nil {
			if awsutil.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to list object versions in %s: %w", bucket, err)
		}

		objects := make([]s3types.ObjectIdentifier, 0, len(page.Versions)+len(page.DeleteMarkers))
		for _, v := range page.Versions {
			objects = append(objects, s3types.ObjectIdentifier{
				Key:       v.Key,
				VersionId: v.VersionId,
			})
		}
		for _, marker := range page.DeleteMarkers {
			objects = append(objects, s3types.ObjectIdentifier{
				Key:       marker.Key,
				VersionId: marker.VersionId,
			})
		}

		if len(objects) > 0 {
			err = retry.Do(ctx, func() error {
				_, err := p.Clients.S3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
					Bucket: aws.String(bucket),
					Delete: &s3types.Delete{
						Objects: objects,
						Quiet:   aws.Bool(true),
					},
				})
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to delete object versions in %s: %w", bucket, err)
			}
			l.Debugf("Deleted %d object versions from %s", len(objects), bucket)
		}

		if !aws.ToBool(page.IsTruncated) {
			return nil
		}
		keyMarker = page.NextKeyMarker
		versionMarker = page.NextVersionIdMarker
	}
}
