package store

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrTooManyConflicts is returned when the retry budget is exhausted on
// transactional write conflicts. Callers surface it as a "try again" failure.
var ErrTooManyConflicts = errors.New("too many write conflicts")

const (
	maxAttempts    = 5
	initialBackoff = 10 * time.Millisecond
)

// WithRetry re-runs fn while it fails with ErrWriteConflict, with exponential
// backoff and jitter between attempts. fn must be a whole read-validate-write
// unit; partial state never survives a conflicted attempt. It returns the
// number of attempts made. Any other error aborts immediately.
func WithRetry(ctx context.Context, fn func() error) (int, error) {
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, ErrWriteConflict) {
			return attempt, err
		}
		if attempt >= maxAttempts {
			return attempt, ErrTooManyConflicts
		}

		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
		backoff *= 2
	}
}
