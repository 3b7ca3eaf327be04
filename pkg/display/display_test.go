package display

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amarra-project/amarra/pkg/models"
)

func sampleSummary() *models.Summary {
	created := &models.Result{}
	created.Record("vpc", "(absent)", "vpc-0123")
	created.SetOutput("vpc_id", "vpc-0123")

	return &models.Summary{
		DocumentName: "web",
		Results: []models.ResourceResult{
			{Type: models.TypeVPC, Name: "net", Region: "us-east-1", Result: created},
			{Type: models.TypeS3Bucket, Name: "assets", Region: "us-east-1", Result: &models.Result{}},
			{Type: models.TypeInstance, Name: "app", Region: "us-east-1", Err: errors.New("ami lookup failed")},
		},
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(sampleSummary())

	assert.Contains(t, out, "Document web")
	assert.Contains(t, out, "net")
	assert.Contains(t, out, "changed")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "ami lookup failed")
	assert.Contains(t, out, "vpc-0123")
	assert.Contains(t, out, "3 resources, 1 changed, 1 failed")
}

func TestRenderSummaryCheckMode(t *testing.T) {
	s := sampleSummary()
	s.CheckMode = true
	s.Results = s.Results[:2]

	out := RenderSummary(s)

	assert.Contains(t, out, "(plan)")
	assert.Contains(t, out, "would change")
	assert.Contains(t, out, "0 failed")
	assert.NotContains(t, out, "ami lookup failed")
}

func TestRenderSummaryShowsBeforeAfter(t *testing.T) {
	res := &models.Result{}
	res.Record("instance_type", "t3.micro", "t3.small")

	s := &models.Summary{
		DocumentName: "resize",
		Results: []models.ResourceResult{
			{Type: models.TypeInstance, Name: "app", Region: "us-east-1", Result: res},
		},
	}

	out := RenderSummary(s)
	assert.Contains(t, out, "instance_type: t3.micro -> t3.small")
}
