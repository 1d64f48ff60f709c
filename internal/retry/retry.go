package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is the single retry configuration shared by the source client and
// the batch writer. Attempts counts the total tries, not the retries.
type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy matches the cadence the source APIs tolerate: a few quick
// retries with exponential backoff, never more than a couple of seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:        3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// permanentError wraps an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks an error as fatal so Do stops immediately instead of
// burning the remaining attempts. Client errors (4xx) and validation
// failures go through here.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op under the policy, backing off exponentially between attempts.
// It returns the last error once attempts are exhausted, unwrapping any
// Permanent marker so callers can match with errors.Is/As.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return backoff.Permanent(perm.err)
		}
		return err
	}

	err := backoff.Retry(wrapped, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
	if err != nil {
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return err
}
