// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// Resolution outcomes and engine-level sentinel errors. Resolution errors
// are permanent: the dispatcher records them as Failed (or Skipped) without
// retrying.
var (
	// ErrNotFoundInLibrary means no downstream entry matches the item.
	ErrNotFoundInLibrary = errors.New("no matching entry in downstream library")

	// ErrAmbiguous means more than one downstream candidate matches with
	// equal confidence. The engine never guesses.
	ErrAmbiguous = errors.New("multiple downstream candidates match")

	// ErrSkippedSpecial marks a season-0 item excluded by configuration.
	ErrSkippedSpecial = errors.New("special episode excluded from sync")

	// ErrServiceDisabled means the downstream service that owns this media
	// kind is not configured.
	ErrServiceDisabled = errors.New("downstream service disabled")

	// ErrBulkSyncRunning is returned by a bulk start while one is running.
	ErrBulkSyncRunning = errors.New("a bulk sync is already running")

	// ErrLookupNotFound is returned by the metadata lookup on no match.
	ErrLookupNotFound = errors.New("metadata lookup found no match")

	// ErrActionNotFailed is returned when retrying an action that is not
	// in the failed state.
	ErrActionNotFailed = errors.New("action is not in failed state")
)

// transientError marks a failure worth retrying: network errors, 5xx
// responses, timeouts.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err as retryable. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err should be retried. Context deadlines and
// an open circuit breaker count as transient: both may clear on a later
// attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// statusError converts a non-2xx HTTP response into the right error class:
// 5xx and 429 are transient, everything else is permanent.
func statusError(service, operation string, status int, body string) error {
	err := fmt.Errorf("%s %s returned status %d: %s", service, operation, status, body)
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return Transient(err)
	}
	return err
}
