package awsutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubNilParameters(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]interface{}
		expected map[string]interface{}
	}{
		{
			name:     "empty map",
			input:    map[string]interface{}{},
			expected: map[string]interface{}{},
		},
		{
			name:     "nil values removed",
			input:    map[string]interface{}{"a": 1, "b": nil, "c": "x"},
			expected: map[string]interface{}{"a": 1, "c": "x"},
		},
		{
			name: "nested maps scrubbed",
			input: map[string]interface{}{
				"outer": map[string]interface{}{
					"keep": true,
					"drop": nil,
					"deeper": map[string]interface{}{
						"drop": nil,
					},
				},
			},
			expected: map[string]interface{}{
				"outer": map[string]interface{}{
					"keep":   true,
					"deeper": map[string]interface{}{},
				},
			},
		},
		{
			name:     "falsy values preserved",
			input:    map[string]interface{}{"zero": 0, "empty": "", "false": false},
			expected: map[string]interface{}{"zero": 0, "empty": "", "false": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScrubNilParameters(tt.input))
		})
	}
}

func TestScrubNilParametersIdempotent(t *testing.T) {
	input := map[string]interface{}{
		"a": nil,
		"b": map[string]interface{}{"c": nil, "d": 2},
		"e": []interface{}{nil},
	}
	once := ScrubNilParameters(input)
	twice := ScrubNilParameters(once)
	assert.Equal(t, once, twice)
}

func TestCamelToSnake(t *testing.T) {
	tests := map[string]string{
		"VpcId":            "vpc_id",
		"DNSName":          "dns_name",
		"CidrBlock":        "cidr_block",
		"EnableDnsSupport": "enable_dns_support",
		"already_snake":    "already_snake",
		"ARN":              "arn",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, CamelToSnake(input), "input %q", input)
	}
}

func TestSnakeCaseKeys(t *testing.T) {
	input := map[string]interface{}{
		"VpcId": "vpc-12345",
		"Tags": []interface{}{
			map[string]interface{}{"Key": "Name", "Value": "test"},
		},
		"CidrBlockAssociation": map[string]interface{}{
			"AssociationId": "assoc-1",
		},
	}
	expected := map[string]interface{}{
		"vpc_id": "vpc-12345",
		"tags": []interface{}{
			map[string]interface{}{"key": "Name", "value": "test"},
		},
		"cidr_block_association": map[string]interface{}{
			"association_id": "assoc-1",
		},
	}
	assert.Equal(t, expected, SnakeCaseKeys(input))
}
