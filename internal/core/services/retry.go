package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/logger"
)

const (
	defaultBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// retryPolicy bounds how often and how patiently an external call is retried.
type retryPolicy struct {
	// attempts is the number of retries after the first try.
	attempts int
	// initial is the first delay; it doubles per attempt up to maxBackoff.
	initial time.Duration
	// timeout bounds each individual call. Zero means no per-call timeout.
	timeout time.Duration
	// detach runs calls on a context that ignores the caller's cancellation,
	// so work already started is allowed to finish.
	detach bool
}

// delay returns the backoff before retry number attempt (0-based).
func (p retryPolicy) delay(attempt int) time.Duration {
	base := p.initial
	if base <= 0 {
		base = defaultBackoff
	}
	if attempt > 16 {
		attempt = 16
	}
	d := base << attempt
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// retry runs fn until it succeeds, returns an invalid-input error, or the
// retry budget is spent. Backoff waits end early if ctx is cancelled.
func retry(ctx context.Context, p retryPolicy, what string, fn func(ctx context.Context) error) error {
	if p.detach {
		ctx = context.WithoutCancel(ctx)
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = call(ctx, p, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return err
		}
		if attempt >= p.attempts {
			return err
		}

		wait := p.delay(attempt)
		logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v", what, attempt+1, p.attempts+1, wait, err)

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// call runs fn once under the policy's timeout.
func call(ctx context.Context, p retryPolicy, fn func(ctx context.Context) error) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return fn(ctx)
}
