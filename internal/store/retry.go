package store

import (
	"context"

	errs "finreview/pkg/errors"
)

// Retry runs attempt until it succeeds, fails with anything other than a stale
// version, or maxAttempts is used up. attempt must reload everything it reads.
// onRetry, if set, is called before each further attempt.
func Retry(ctx context.Context, maxAttempts int, onRetry func(attempt int), attempt func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for i := 1; i <= maxAttempts; i++ {
		if err = attempt(); err == nil || !errs.Is(err, errs.ErrStaleVersion) {
			return err
		}
		if i == maxAttempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if onRetry != nil {
			onRetry(i)
		}
	}
	return err
}
