// Package runner executes a desired-state document against AWS,
// fanning out across regions while keeping document order within each
// region.
package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/amarra-project/amarra/pkg/clients"
	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	awsprovider "github.com/amarra-project/amarra/pkg/providers/aws"
)

// Reconciler converges a single resource spec.
type Reconciler interface {
	Reconcile(ctx context.Context, spec models.ResourceSpec, opts awsprovider.ReconcileOptions) (*models.Result, error)
}

// Options control a run.
type Options struct {
	// CheckMode plans the run without mutating anything.
	CheckMode bool
	// Destroy flips every resource to absent and reconciles in reverse
	// document order, so dependents go before their dependencies.
	Destroy bool
	// Region overrides the region of every resource in the document.
	Region string
	// Profile selects the AWS credentials profile.
	Profile string
}

// Runner executes documents. The zero value is not usable; call New.
type Runner struct {
	opts Options

	// newProvider builds the reconciler for one region. Swapped out in
	// tests.
	newProvider func(ctx context.Context, region string) (Reconciler, error)
}

// New builds a Runner that talks to real AWS endpoints.
func New(opts Options) *Runner {
	r := &Runner{opts: opts}
	r.newProvider = func(ctx context.Context, region string) (Reconciler, error) {
		cs, err := clients.NewClientSet(ctx, clients.Options{
			Region:  region,
			Profile: opts.Profile,
		})
		if err != nil {
			return nil, err
		}
		return awsprovider.NewAWSProvider(ctx, cs)
	}
	return r
}

// Run converges every resource in the document and reports the
// aggregate outcome. Regions run concurrently; resources within a
// region run sequentially in document order. A failed resource stops
// its region but not the others, and the failure is recorded in the
// summary rather than returned.
func (r *Runner) Run(ctx context.Context, doc *models.Document) (*models.Summary, error) {
	groups := doc.ResourcesByRegion()
	if r.opts.Region != "" {
		merged := make([]models.ResourceSpec, len(doc.Resources))
		copy(merged, doc.Resources)
		groups = map[string][]models.ResourceSpec{r.opts.Region: merged}
	}
	for region := range groups {
		if region == "" {
			return nil, fmt.Errorf(
				"document %s: no region set; give the document a region or pass --region",
				doc.Name,
			)
		}
	}

	summary := &models.Summary{
		DocumentName: doc.Name,
		CheckMode:    r.opts.CheckMode,
	}

	var mu sync.Mutex
	perRegion := make(map[string][]models.ResourceResult, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	for region, specs := range groups {
		region, specs := region, specs
		g.Go(func() error {
			results, err := r.runRegion(gctx, region, specs)
			mu.Lock()
			perRegion[region] = results
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	regions := make([]string, 0, len(perRegion))
	for region := range perRegion {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	for _, region := range regions {
		summary.Results = append(summary.Results, perRegion[region]...)
	}
	return summary, nil
}

func (r *Runner) runRegion(
	ctx context.Context,
	region string,
	specs []models.ResourceSpec,
) ([]models.ResourceResult, error) {
	l := logger.Get()

	provider, err := r.newProvider(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", region, err)
	}

	if r.opts.Destroy {
		specs = reverseSpecs(specs)
	}

	results := make([]models.ResourceResult, 0, len(specs))
	for _, spec := range specs {
		if r.opts.Destroy {
			spec.State = models.StateAbsent
		}

		res, err := provider.Reconcile(ctx, spec, awsprovider.ReconcileOptions{
			CheckMode: r.opts.CheckMode,
		})
		results = append(results, models.ResourceResult{
			Type:   spec.Type,
			Name:   spec.Name,
			Region: region,
			Result: res,
			Err:    err,
		})
		if err != nil {
			l.Errorf("Region %s: stopping after %s %q: %v", region, spec.Type, spec.Name, err)
			break
		}
	}
	return results, nil
}

func reverseSpecs(specs []models.ResourceSpec) []models.ResourceSpec {
	out := make([]models.ResourceSpec, len(specs))
	for i, s := range specs {
		out[len(specs)-1-i] = s
	}
	return out
}
