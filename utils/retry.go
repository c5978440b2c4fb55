package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
)

// Permanent marks an error as not retryable
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// NewBackOff makes the exponential policy described by config
func NewBackOff(ctx context.Context, config types.RetryConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.MinDelay
	b.MaxInterval = config.MaxDelay
	b.MaxElapsedTime = 0
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Retry calls f until it succeeds, returns a permanent error, or the policy gives up
func Retry(ctx context.Context, name string, config types.RetryConfig, f func() error) error {
	logger := log.WithFunc("utils.Retry").WithField("call", name)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return f()
	}, NewBackOff(ctx, config), func(err error, d time.Duration) {
		logger.Warnf(ctx, "attempt %d failed, retry in %v: %+v", attempt, d, err)
	})
}
