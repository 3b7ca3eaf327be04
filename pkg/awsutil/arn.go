package awsutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// ErrMalformedARN reports an input that does not parse as an ARN.
var ErrMalformedARN = errors.New("malformed ARN")

// ARN is a parsed Amazon Resource Name.
type ARN struct {
	Partition string
	Service   string
	Region    string
	AccountID string
	Resource  string
}

// ParseARN parses an ARN string into its components.
func ParseARN(s string) (*ARN, error) {
	parsed, err := arn.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrMalformedARN, s, err)
	}
	return &ARN{
		Partition: parsed.Partition,
		Service:   parsed.Service,
		Region:    parsed.Region,
		AccountID: parsed.AccountID,
		Resource:  parsed.Resource,
	}, nil
}

// IsARN reports whether s looks like an ARN.
func IsARN(s string) bool {
	return arn.IsARN(s)
}

// ResourceType returns the type portion of the resource field, e.g.
// "vpc" for "vpc-0123456789abcdef0" or "loadbalancer" for
// "loadbalancer/app/my-alb/50dc6c495c0c9188". Empty when the resource
// field has no type prefix.
func (a *ARN) ResourceType() string {
	for _, sep := range []string{"/", ":"} {
		if idx := strings.Index(a.Resource, sep); idx > 0 {
			return a.Resource[:idx]
		}
	}
	return ""
}

// ResourceID returns the identifier portion of the resource field.
func (a *ARN) ResourceID() string {
	for _, sep := range []string{"/", ":"} {
		if idx := strings.Index(a.Resource, sep); idx > 0 {
			return a.Resource[idx+1:]
		}
	}
	return a.Resource
}
