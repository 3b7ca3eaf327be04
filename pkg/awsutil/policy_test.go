package awsutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simplePolicy = `{
	"Version": "2012-10-17",
	"Statement": [{
		"Sid": "AllowRead",
		"Effect": "Allow",
		"Principal": {"AWS": "arn:aws:iam::123456789012:root"},
		"Action": ["s3:GetObject"],
		"Resource": "arn:aws:s3:::example-bucket/*"
	}]
}`

func TestComparePoliciesEqualDespiteFormatting(t *testing.T) {
	// AWS collapses single-element lists and reorders statements; the
	// comparison has to see through both.
	rewritten := `{
		"Statement": {
			"Resource": ["arn:aws:s3:::example-bucket/*"],
			"Action": "s3:GetObject",
			"Principal": {"AWS": "arn:aws:iam::123456789012:root"},
			"Effect": "Allow",
			"Sid": "AllowRead"
		},
		"Version": "2012-10-17"
	}`

	equal, err := ComparePolicies(simplePolicy, rewritten)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestComparePoliciesListOrder(t *testing.T) {
	a := `{"Statement": [{"Action": ["s3:GetObject", "s3:PutObject"], "Effect": "Allow", "Resource": "*"}]}`
	b := `{"Statement": [{"Action": ["s3:PutObject", "s3:GetObject"], "Effect": "Allow", "Resource": "*"}]}`

	equal, err := ComparePolicies(a, b)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestComparePoliciesWildcardPrincipal(t *testing.T) {
	a := `{"Statement": [{"Principal": "*", "Effect": "Allow", "Action": "s3:GetObject", "Resource": "*"}]}`
	b := `{"Statement": [{"Principal": {"AWS": "*"}, "Effect": "Allow", "Action": "s3:GetObject", "Resource": "*"}]}`

	equal, err := ComparePolicies(a, b)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestComparePoliciesDifferent(t *testing.T) {
	other := `{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Deny",
			"Principal": "*",
			"Action": "s3:*",
			"Resource": "*"
		}]
	}`

	equal, err := ComparePolicies(simplePolicy, other)
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestComparePoliciesEmpty(t *testing.T) {
	equal, err := ComparePolicies("", "")
	require.NoError(t, err)
	assert.True(t, equal)

	equal, err = ComparePolicies(simplePolicy, "")
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestComparePoliciesMalformed(t *testing.T) {
	_, err := ComparePolicies("{not json", simplePolicy)
	assert.Error(t, err)
}
