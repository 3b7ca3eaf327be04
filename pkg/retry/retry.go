// Package retry wraps AWS API calls with exponential backoff. Only
// errors classified as transient (throttling and rate-limit codes) are
// retried; everything else fails immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/amarra-project/amarra/pkg/awsutil"
	"github.com/amarra-project/amarra/pkg/logger"
)

// Config controls the backoff schedule for a retried operation.
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration

	// ShouldRetry classifies errors. Defaults to awsutil.IsRetryable.
	ShouldRetry func(error) bool
}

// DefaultConfig matches the schedule we use for throttled AWS calls.
var DefaultConfig = Config{
	InitialInterval: 1 * time.Second,
	MaxInterval:     30 * time.Second,
	MaxElapsedTime:  2 * time.Minute,
}

// Do runs op with the default backoff schedule, retrying throttled
// calls until they succeed or the elapsed-time budget runs out.
func Do(ctx context.Context, op func() error) error {
	return DoWithConfig(ctx, DefaultConfig, op)
}

// DoWithConfig runs op under cfg. Context cancellation aborts the
// retry loop between attempts.
func DoWithConfig(ctx context.Context, cfg Config, op func() error) error {
	l := logger.Get()

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = awsutil.IsRetryable
	}

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	b.MaxElapsedTime = cfg.MaxElapsedTime

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err == nil {
			return nil
		}
		if shouldRetry(err) {
			l.Debugf("Retrying after transient error: %v", err)
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
