package store

import (
	"context"
	"testing"

	errs "finreview/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestRetry(t *testing.T) {
	staleErr := errs.Deny(errs.ErrStaleVersion, errs.ReasonVersionOutdated, "changed")

	t.Run("stale once then success", func(t *testing.T) {
		calls, retries := 0, 0
		err := Retry(context.Background(), 2, func(int) { retries++ }, func() error {
			calls++
			if calls == 1 {
				return staleErr
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, retries)
	})

	t.Run("stale every time surfaces", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 2, nil, func() error {
			calls++
			return staleErr
		})
		assert.ErrorIs(t, err, errs.ErrStaleVersion)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 5, nil, func() error {
			calls++
			return errs.ErrPermissionDenied
		})
		assert.ErrorIs(t, err, errs.ErrPermissionDenied)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := Retry(ctx, 3, nil, func() error {
			calls++
			return staleErr
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
