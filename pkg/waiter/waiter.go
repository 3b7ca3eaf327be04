// Package waiter polls an AWS describe operation until a resource
// reaches an expected state or a fixed delay/attempt budget is spent.
// The per-resource budgets live in configs.go, declared the same way
// for every service so timeouts are auditable in one place.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amarra-project/amarra/pkg/logger"
)

// ErrWaitTimeout is returned when the attempt budget is exhausted before
// the check reports done.
var ErrWaitTimeout = errors.New("timed out waiting for resource state")

// Config is a fixed-delay polling budget.
type Config struct {
	// Name identifies the waiter in logs and timeout errors.
	Name string
	// Delay between polls.
	Delay time.Duration
	// MaxAttempts before giving up.
	MaxAttempts int
}

// CheckFunc inspects the resource once. done=true stops the wait
// successfully. A non-nil error aborts the wait unless the caller's
// check chooses to swallow it (eventual-consistency windows where a
// just-created resource is briefly invisible).
type CheckFunc func(ctx context.Context) (done bool, err error)

// Wait polls check every cfg.Delay until it reports done, fails, or the
// attempt budget runs out.
func Wait(ctx context.Context, cfg Config, check CheckFunc) error {
	l := logger.Get()
	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("waiter %s: max attempts must be positive", cfg.Name)
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return fmt.Errorf("waiter %s failed on attempt %d: %w", cfg.Name, attempt, err)
		}
		if done {
			return nil
		}
		l.Debugf("Waiter %s: attempt %d/%d, state not reached", cfg.Name, attempt, cfg.MaxAttempts)

		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}
	return fmt.Errorf("waiter %s: %w after %d attempts", cfg.Name, ErrWaitTimeout, cfg.MaxAttempts)
}
