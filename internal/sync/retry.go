// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"fmt"
	"time"
)

// RetryExecutor runs an operation with bounded retries and exponential
// backoff. Only transient failures are retried; permanent failures
// propagate immediately. Exhausting attempts yields a terminal error
// carrying the last failure.
type RetryExecutor struct {
	attempts int
	delay    time.Duration
}

// NewRetryExecutor creates an executor making up to attempts tries with an
// initial backoff of delay, doubling per attempt.
func NewRetryExecutor(attempts int, delay time.Duration) *RetryExecutor {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryExecutor{attempts: attempts, delay: delay}
}

// Execute runs op until it succeeds, fails permanently, or the attempt
// ceiling is reached. Returns the number of attempts made alongside the
// final error.
func (r *RetryExecutor) Execute(ctx context.Context, op func(context.Context) error) (int, error) {
	delay := r.delay
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if !IsTransient(lastErr) {
			return attempt, lastErr
		}
		if attempt == r.attempts {
			return attempt, fmt.Errorf("max retry attempts reached: %w", lastErr)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
		delay *= 2
	}

	// Unreachable: the loop always returns.
	return r.attempts, lastErr
}
