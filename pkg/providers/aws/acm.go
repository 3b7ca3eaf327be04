package awsprovider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
	"github.com/amarra-project/amarra/pkg/waiter"
)

func (p *AWSProvider) reconcileCertificate(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	result := &models.Result{}
	certSpec := spec.Certificate

	domain := spec.Name
	if certSpec != nil && certSpec.DomainName != "" {
		domain = certSpec.DomainName
	}

	var existing *acmtypes.CertificateSummary
	var err error
	if certSpec != nil && certSpec.CertificateARN != "" {
		parsed, parseErr := awsutil.ParseARN(certSpec.CertificateARN)
		if parseErr != nil {
			return nil, parseErr
		}
		if parsed.Region != p.Clients.Region {
			return nil, fmt.Errorf("certificate ARN region %s does not match %s",
				parsed.Region, p.Clients.Region)
		}
		existing, err = p.findCertificateByARN(ctx, certSpec.CertificateARN)
		if err != nil {
			return nil, fmt.Errorf("failed to describe certificate: %w", err)
		}
	} else {
		existing, err = p.findCertificate(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to list certificates: %w", err)
		}
	}

	if spec.State == models.StateAbsent {
		if existing == nil {
			return result, nil
		}
		result.Record("certificate", domain, "absent")
		if opts.CheckMode {
			return result, nil
		}
		return result, p.deleteCertificate(ctx, aws.ToString(existing.CertificateArn))
	}

	if existing == nil {
		return p.createCertificate(ctx, spec, certSpec, domain, opts, result)
	}

	arn := aws.ToString(existing.CertificateArn)
	result.SetOutput("certificate_arn", arn)

	// Re-import replaces the certificate body in place when a bundle is
	// given, but an unchanged bundle cannot be detected without the
	// private key, so imports only happen on first creation.
	if err := p.convergeCertificateTags(ctx, arn, spec, opts, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *AWSProvider) createCertificate(
	ctx context.Context,
	spec models.ResourceSpec,
	certSpec *models.CertificateSpec,
	domain string,
	opts ReconcileOptions,
	result *models.Result,
) (*models.Result, error) {
	result.Record("certificate", "absent", domain)
	if opts.CheckMode {
		return result, nil
	}

	var arn string
	var err error
	if certSpec.Certificate != "" {
		arn, err = p.importCertificate(ctx, certSpec)
	} else {
		arn, err = p.requestCertificate(ctx, certSpec, domain)
		if err == nil && certSpec.Wait {
			err = p.waitForCertificateIssued(ctx, arn)
		}
	}
	if err != nil {
		return nil, err
	}
	result.SetOutput("certificate_arn", arn)

	if err := p.convergeCertificateTags(ctx, arn, spec, opts, result); err != nil {
		// The certificate was just created. Remove it again rather than
		// leave an untagged one behind.
		if delErr := p.deleteCertificate(ctx, arn); delErr != nil {
			logger.Get().Warnf("Failed to roll back certificate %s: %v", arn, delErr)
		}
		return nil, fmt.Errorf("failed to tag certificate %s: %w", arn, err)
	}
	return result, nil
}

func (p *AWSProvider) importCertificate(
	ctx context.Context,
	certSpec *models.CertificateSpec,
) (string, error) {
	input := &acm.ImportCertificateInput{
		Certificate: []byte(certSpec.Certificate),
		PrivateKey:  []byte(certSpec.PrivateKey),
	}
	if certSpec.CertificateChain != "" {
		input.CertificateChain = []byte(certSpec.CertificateChain)
	}

	var out *acm.ImportCertificateOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.ACM.ImportCertificate(ctx, input)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to import certificate: %w", err)
	}
	arn := aws.ToString(out.CertificateArn)
	logger.Get().Infof("Imported certificate %s", arn)
	return arn, nil
}

func (p *AWSProvider) requestCertificate(
	ctx context.Context,
	certSpec *models.CertificateSpec,
	domain string,
) (string, error) {
	method := acmtypes.ValidationMethodDns
	if certSpec.ValidationMethod != "" {
		method = acmtypes.ValidationMethod(certSpec.ValidationMethod)
	}

	var out *acm.RequestCertificateOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.ACM.RequestCertificate(ctx, &acm.RequestCertificateInput{
			DomainName:       aws.String(domain),
			ValidationMethod: method,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to request certificate for %s: %w", domain, err)
	}
	arn := aws.ToString(out.CertificateArn)
	logger.Get().Infof("Requested certificate %s for %s", arn, domain)
	return arn, nil
}

// waitForCertificateIssued blocks until a requested certificate leaves
// PENDING_VALIDATION. DNS validation needs records created out of band,
// so apply does not wait by default.
func (p *AWSProvider) waitForCertificateIssued(ctx context.Context, arn string) error {
	err := waiter.Wait(ctx, waiter.CertificateIssued, func(ctx context.Context) (bool, error) {
		var out *acm.DescribeCertificateOutput
		err := retry.Do(ctx, func() error {
			var err error
			out, err = p.Clients.ACM.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
				CertificateArn: aws.String(arn),
			})
			return err
		})
		if err != nil {
			return false, err
		}
		switch out.Certificate.Status {
		case acmtypes.CertificateStatusIssued:
			return true, nil
		case acmtypes.CertificateStatusPendingValidation:
			return false, nil
		default:
			return false, fmt.Errorf("certificate %s entered state %s",
				arn, out.Certificate.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("certificate %s was not issued: %w", arn, err)
	}
	return nil
}

func (p *AWSProvider) deleteCertificate(ctx context.Context, arn string) error {
	err := retry.Do(ctx, func() error {
		_, err := p.Clients.ACM.DeleteCertificate(ctx, &acm.DeleteCertificateInput{
			CertificateArn: aws.String(arn),
		})
		return err
	})
	if err := awsutil.IgnoreNotFound(err); err != nil {
		return fmt.Errorf("failed to delete certificate %s: %w", arn, err)
	}
	return nil
}

func (p *AWSProvider) convergeCertificateTags(
	ctx context.Context,
	arn string,
	spec models.ResourceSpec,
	opts ReconcileOptions,
	result *models.Result,
) error {
	var listOut *acm.ListTagsForCertificateOutput
	err := retry.Do(ctx, func() error {
		var err error
		listOut, err = p.Clients.ACM.ListTagsForCertificate(ctx,
			&acm.ListTagsForCertificateInput{CertificateArn: aws.String(arn)})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to list tags for certificate %s: %w", arn, err)
	}

	current := make(map[string]string, len(listOut.Tags))
	for _, tag := range listOut.Tags {
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
			_, err := p.Clients.ACM.AddTagsToCertificate(ctx, &acm.AddTagsToCertificateInput{
				CertificateArn: aws.String(arn),
				Tags:           acmTags(toSet),
			})
			return err
		})
		if err != nil {
			return err
		}
	}
	if len(toRemove) > 0 {
		removeTags := make([]acmtypes.Tag, 0, len(toRemove))
		for _, k := range toRemove {
			removeTags = append(removeTags, acmtypes.Tag{Key: aws.String(k)})
		}
		err := retry.Do(ctx, func() error {
			_, err := p.Clients.ACM.RemoveTagsFromCertificate(ctx,
				&acm.RemoveTagsFromCertificateInput{
					CertificateArn: aws.String(arn),
					Tags:           removeTags,
				})
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *AWSProvider) findCertificateByARN(
	ctx context.Context,
	arn string,
) (*acmtypes.CertificateSummary, error) {
	var out *acm.DescribeCertificateOutput
	err := retry.Do(ctx, func() error {
		var err error
		out, err = p.Clients.ACM.DescribeCertificate(ctx, &acm.DescribeCertificateInput{
			CertificateArn: aws.String(arn),
		})
		return err
	})
	if awsutil.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acmtypes.CertificateSummary{
		CertificateArn: out.Certificate.CertificateArn,
		DomainName:     out.Certificate.DomainName,
	}, nil
}

// findCertificate returns the certificate whose domain name matches, or
// nil. ListCertificates pages by token.
func (p *AWSProvider) findCertificate(
	ctx context.Context,
	domain string,
) (*acmtypes.CertificateSummary, error) {
	var token *string
	for {
		var out *acm.ListCertificatesOutput
		err := retry.Do(ctx, func() error {
			var err error
			out, err = p.Clients.ACM.ListCertificates(ctx, &acm.ListCertificatesInput{
				NextToken: token,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		for i := range out.CertificateSummaryList {
			summary := out.CertificateSummaryList[i]
			if aws.ToString(summary.DomainName) == domain {
				return &summary, nil
			}
		}
		if out.NextToken == nil {
			return nil, nil
		}
		token = out.NextToken
	}
}

func acmTags(tags map[string]string) []acmtypes.Tag {
	result := make([]acmtypes.Tag, 0, len(tags))
	for _, tag := range awsutil.MapToTags(tags) {
		result = append(result, acmtypes.Tag{Key: tag.Key, Value: tag.Value})
	}
	return result
}
