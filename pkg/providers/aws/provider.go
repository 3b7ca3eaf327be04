// Package awsprovider converges desired-state resource specs against
// live AWS resources. Each resource type has a reconciler that
// describes current state, computes the delta, and issues only the API
// calls needed to converge, then waits for asynchronous transitions.
package awsprovider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/amarra-project/amarra/pkg/clients"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	"github.com/amarra-project/amarra/pkg/retry"
)

// AWSProvider reconciles resources in a single region.
type AWSProvider struct {
	Clients   *clients.ClientSet
	AccountID string
}

// ReconcileOptions modify how a reconciliation runs.
type ReconcileOptions struct {
	// CheckMode computes the change set without issuing any mutating
	// call.
	CheckMode bool
}

// NewAWSProvider builds a provider for the region the client set was
// constructed for and resolves the account identity.
func NewAWSProvider(ctx context.Context, cs *clients.ClientSet) (*AWSProvider, error) {
	if cs == nil {
		return nil, fmt.Errorf("client set is required")
	}

	var identity *sts.GetCallerIdentityOutput
	err := retry.Do(ctx, func() error {
		var err error
		identity, err = cs.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get AWS account identity: %w", err)
	}

	return &AWSProvider{
		Clients:   cs,
		AccountID: *identity.Account,
	}, nil
}

// Reconcile converges one resource to its spec and reports the change
// set. State absent deletes the resource; deleting an already absent
// resource succeeds without a change.
func (p *AWSProvider) Reconcile(
	ctx context.Context,
	spec models.ResourceSpec,
	opts ReconcileOptions,
) (*models.Result, error) {
	l := logger.Get()
	l.Infof("Reconciling %s %q (state=%s, check_mode=%t)",
		spec.Type, spec.Name, spec.State, opts.CheckMode)

	var (
		result *models.Result
		err    error
	)
	switch spec.Type {
	case models.TypeVPC:
		result, err = p.reconcileVPC(ctx, spec, opts)
	case models.TypeDHCPOptions:
		result, err = p.reconcileDHCPOptions(ctx, spec, opts)
	case models.TypeSecurityGroup:
		result, err = p.reconcileSecurityGroup(ctx, spec, opts)
	case models.TypeInstance:
		result, err = p.reconcileInstance(ctx, spec, opts)
	case models.TypeImage:
		result, err = p.reconcileImage(ctx, spec, opts)
	case models.TypeS3Bucket:
		result, err = p.reconcileBucket(ctx, spec, opts)
	case models.TypeCloudFormation:
		result, err = p.reconcileStack(ctx, spec, opts)
	case models.TypeLoadBalancer:
		result, err = p.reconcileLoadBalancer(ctx, spec, opts)
	case models.TypeAutoScalingGroup:
		result, err = p.reconcileAutoScalingGroup(ctx, spec, opts)
	case models.TypeCertificate:
		result, err = p.reconcileCertificate(ctx, spec, opts)
	default:
		return nil, fmt.Errorf("unsupported resource type %q", spec.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", spec.Type, spec.Name, err)
	}
	if result.Changed {
		l.Infof("Converged %s %q (%d changes)", spec.Type, spec.Name, len(result.Changes))
	} else {
		l.Debugf("%s %q already converged", spec.Type, spec.Name)
	}
	return result, nil
}
