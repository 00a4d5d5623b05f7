package util

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// Retry calls fn until it succeeds, ctx is done or maxRetries additional
// attempts have failed. The wait between attempts grows exponentially from
// initialBackoff.
func Retry(ctx context.Context, maxRetries uint64, initialBackoff time.Duration, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialBackoff
	policy.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return fn()
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
	if err != nil {
		return fmt.Errorf("after %d attempts, last error: %w", attempts, err)
	}
	return nil
}
