package runner

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarra-project/amarra/pkg/logger"
	"github.com/amarra-project/amarra/pkg/models"
	awsprovider "github.com/amarra-project/amarra/pkg/providers/aws"
)

func TestMain(m *testing.M) {
	logger.SetGlobalLogger(logger.NewNopLogger())
	os.Exit(m.Run())
}

type fakeReconciler struct {
	mu     sync.Mutex
	calls  []string
	opts   []awsprovider.ReconcileOptions
	states []models.State
	errOn  string
}

func (f *fakeReconciler) Reconcile(
	_ context.Context,
	spec models.ResourceSpec,
	opts awsprovider.ReconcileOptions,
) (*models.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spec.Name)
	f.opts = append(f.opts, opts)
	f.states = append(f.states, spec.State)
	if spec.Name == f.errOn {
		return nil, errors.New("boom")
	}
	return &models.Result{Changed: true}, nil
}

func testDocument() *models.Document {
	return &models.Document{
		Name:   "web",
		Region: "us-east-1",
		Resources: []models.ResourceSpec{
			{Type: models.TypeVPC, Name: "net", State: models.StatePresent, VPC: &models.VPCSpec{CidrBlock: "10.0.0.0/16"}},
			{Type: models.TypeSecurityGroup, Name: "fw", State: models.StatePresent, SecurityGroup: &models.SecurityGroupSpec{Description: "web"}},
			{Type: models.TypeS3Bucket, Name: "assets", State: models.StatePresent, Region: "eu-west-1", Bucket: &models.BucketSpec{}},
		},
	}
}

func newTestRunner(opts Options, fakes map[string]*fakeReconciler) *Runner {
	r := New(opts)
	r.newProvider = func(_ context.Context, region string) (Reconciler, error) {
		f, ok := fakes[region]
		if !ok {
			return nil, errors.New("unexpected region " + region)
		}
		return f, nil
	}
	return r
}

func TestRunKeepsDocumentOrderWithinRegion(t *testing.T) {
	useast := &fakeReconciler{}
	euwest := &fakeReconciler{}
	r := newTestRunner(Options{}, map[string]*fakeReconciler{
		"us-east-1": useast,
		"eu-west-1": euwest,
	})

	summary, err := r.Run(context.Background(), testDocument())
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"net", "fw"}, useast.calls); diff != "" {
		t.Errorf("us-east-1 order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"assets"}, euwest.calls); diff != "" {
		t.Errorf("eu-west-1 order mismatch (-want +got):\n%s", diff)
	}

	// Summary is ordered by region name for stable output.
	require.Len(t, summary.Results, 3)
	assert.Equal(t, "assets", summary.Results[0].Name)
	assert.Equal(t, "eu-west-1", summary.Results[0].Region)
	assert.True(t, summary.Changed())
	assert.False(t, summary.Failed())
}

func TestRunDestroyReversesOrderAndForcesAbsent(t *testing.T) {
	useast := &fakeReconciler{}
	euwest := &fakeReconciler{}
	r := newTestRunner(Options{Destroy: true}, map[string]*fakeReconciler{
		"us-east-1": useast,
		"eu-west-1": euwest,
	})

	_, err := r.Run(context.Background(), testDocument())
	require.NoError(t, err)

	assert.Equal(t, []string{"fw", "net"}, useast.calls)
	for _, st := range append(useast.states, euwest.states...) {
		assert.Equal(t, models.StateAbsent, st)
	}
}

func TestRunCheckModePropagates(t *testing.T) {
	useast := &fakeReconciler{}
	euwest := &fakeReconciler{}
	r := newTestRunner(Options{CheckMode: true}, map[string]*fakeReconciler{
		"us-east-1": useast,
		"eu-west-1": euwest,
	})

	summary, err := r.Run(context.Background(), testDocument())
	require.NoError(t, err)

	assert.True(t, summary.CheckMode)
	for _, o := range append(useast.opts, euwest.opts...) {
		assert.True(t, o.CheckMode)
	}
}

func TestRunFailureStopsRegionButNotOthers(t *testing.T) {
	useast := &fakeReconciler{errOn: "net"}
	euwest := &fakeReconciler{}
	r := newTestRunner(Options{}, map[string]*fakeReconciler{
		"us-east-1": useast,
		"eu-west-1": euwest,
	})

	summary, err := r.Run(context.Background(), testDocument())
	require.NoError(t, err)

	// fw never ran because net failed first in its region.
	assert.Equal(t, []string{"net"}, useast.calls)
	assert.Equal(t, []string{"assets"}, euwest.calls)
	assert.True(t, summary.Failed())
}

func TestRunRegionOverrideMergesGroups(t *testing.T) {
	west := &fakeReconciler{}
	r := newTestRunner(Options{Region: "us-west-2"}, map[string]*fakeReconciler{
		"us-west-2": west,
	})

	summary, err := r.Run(context.Background(), testDocument())
	require.NoError(t, err)

	assert.Len(t, west.calls, 3)
	for _, res := range summary.Results {
		assert.Equal(t, "us-west-2", res.Region)
	}
}

func TestRunRequiresARegion(t *testing.T) {
	doc := testDocument()
	doc.Region = ""
	doc.Resources = doc.Resources[:1]

	r := newTestRunner(Options{}, nil)
	_, err := r.Run(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no region set")
}
