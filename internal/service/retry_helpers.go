package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"miniquest-server/internal/config"
	"miniquest-server/shared/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// withStoreRetry runs fn with bounded exponential backoff. Not-found, invalid state
// and context errors are returned immediately; anything else that survives every
// attempt is wrapped in ErrStoreUnavailable.
func (s *questServiceImpl) withStoreRetry(ctx context.Context, op string, fn func() error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.opts.StoreRetryBaseDelay
	expBackoff.MaxInterval = config.StoreRetryMaxIntervalFactor * s.opts.StoreRetryBaseDelay
	expBackoff.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, s.opts.StoreMaxRetries), ctx)

	var lastErr error
	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanentStoreError(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		storeRetriesTotal.WithLabelValues(op).Inc()
		s.logger.Warn("Quest store operation failed, retrying",
			zap.String("operation", op),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		if isPermanentStoreError(ctx, lastErr) {
			return lastErr
		}
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, lastErr)
	}
	return nil
}

func isPermanentStoreError(ctx context.Context, err error) bool {
	return errors.Is(err, models.ErrQuestNotFound) ||
		errors.Is(err, models.ErrInvalidQuestState) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}
