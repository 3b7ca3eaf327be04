// Package awsutil holds the small stateless helpers shared by every
// resource reconciler: tag conversion and comparison, IAM policy
// normalization, ARN parsing, parameter scrubbing, and AWS error
// classification.
package awsutil

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrNotFound is returned by describe helpers when the resource does not
// exist. Deletion paths treat it as success.
var ErrNotFound = errors.New("resource not found")

// Error codes AWS returns when a request should be retried after backing
// off. The list mirrors the throttling codes the SDK itself recognizes
// plus the service-specific variants we have been bitten by.
var retryableErrorCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"ThrottledException":                     {},
	"RequestThrottled":                       {},
	"RequestThrottledException":              {},
	"RequestLimitExceeded":                   {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
	"TransactionInProgressException":         {},
	"SlowDown":                               {},
	"EC2ThrottledException":                  {},
	"PriorRequestNotComplete":                {},
	"BandwidthLimitExceeded":                 {},
	"LimitExceededException":                 {},
}

// Error codes that mean "the resource is not there". Suffix matching
// covers the EC2 family (InvalidVpcID.NotFound, InvalidGroup.NotFound...).
var notFoundErrorCodes = map[string]struct{}{
	"NotFound":                     {}, // S3 HeadBucket
	"NoSuchBucket":                 {},
	"NoSuchTagSet":                 {},
	"NoSuchBucketPolicy":           {},
	"NoSuchLifecycleConfiguration": {},
	"NotFoundException":            {},
	"ResourceNotFoundException":    {},
	"LoadBalancerNotFound":         {},
	"ListenerNotFound":             {},
	"TargetGroupNotFound":          {},
	"NoSuchEntity":                 {},
	"ParameterNotFound":            {},
}

// ErrCode extracts the AWS error code from err, unwrapping as needed.
// Returns the empty string when err carries no API error.
func ErrCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsRetryable reports whether err is a transient throttling-style error
// that should be retried with backoff.
func IsRetryable(err error) bool {
	code := ErrCode(err)
	if code == "" {
		return false
	}
	_, ok := retryableErrorCodes[code]
	return ok
}

// IsNotFound reports whether err indicates a missing resource, either our
// own ErrNotFound sentinel or a service not-found error code.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	code := ErrCode(err)
	if code == "" {
		return false
	}
	if _, ok := notFoundErrorCodes[code]; ok {
		return true
	}
	return strings.HasSuffix(code, ".NotFound") || strings.HasSuffix(code, ".Malformed")
}

// IgnoreNotFound maps not-found errors to nil so deletion of an already
// absent resource reports success without a change.
func IgnoreNotFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}
