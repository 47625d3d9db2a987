package pipeline

import (
	"context"
	"time"

	"github.com/gruntworks-dev/orchestrator/internal/apperrors"
)

// maxAttempts is the pipeline's single bounded retry: the initial attempt
// plus one retry, per spec.md §4.D — "a single bounded retry (exponential
// backoff, at most 2 attempts)".
const maxAttempts = 2

// baseRetryDelay is the teacher's own default (agent's WithRetry sets a 1s
// base when none is configured).
const baseRetryDelay = time.Second

// withRetry runs op up to maxAttempts times, retrying only when op's error
// is apperrors.IsRetryable (ProviderUnavailable — network and rate-limit
// failures), with exponential backoff between attempts. Grounded on the
// teacher's Builder.executeWithRetry / calculateRetryDelay
// (agent/builder_execution.go), simplified to the pipeline's fixed 2-attempt
// cap instead of a configurable maxRetries.
func withRetry(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !apperrors.IsRetryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := baseRetryDelay * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
