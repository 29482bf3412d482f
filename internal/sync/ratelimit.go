// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/unmonitarr/unmonitarr/internal/metrics"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// RateLimiter bounds outbound call rate per downstream service with a
// token bucket sized to the per-minute limit, refilled one token per
// (60/limit) seconds. Acquire never drops a call; it backpressures by
// blocking until a token is available or the context ends.
//
// The bucket is shared per service, never per item, so aggregate load
// stays bounded regardless of how many items are in flight.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[models.Service]*rate.Limiter
	interval time.Duration
	burst    int
}

// NewRateLimiter creates a limiter allowing perMinute calls per service.
func NewRateLimiter(perMinute int) *RateLimiter {
	return newRateLimiter(time.Minute/time.Duration(perMinute), perMinute)
}

// newRateLimiter is the tunable constructor used by tests.
func newRateLimiter(interval time.Duration, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[models.Service]*rate.Limiter),
		interval: interval,
		burst:    burst,
	}
}

// Acquire blocks until the service may make one call and records the
// wait duration.
func (rl *RateLimiter) Acquire(ctx context.Context, service models.Service) error {
	start := time.Now()
	err := rl.limiterFor(service).Wait(ctx)
	metrics.RateLimitWaitDuration.WithLabelValues(string(service)).Observe(time.Since(start).Seconds())
	return err
}

// Allow reports whether a call slot is immediately available, consuming it
// if so. Used by tests and opportunistic callers; the engine itself always
// blocks via Acquire.
func (rl *RateLimiter) Allow(service models.Service) bool {
	return rl.limiterFor(service).Allow()
}

func (rl *RateLimiter) limiterFor(service models.Service) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[service]
	if !ok {
		l = rate.NewLimiter(rate.Every(rl.interval), rl.burst)
		rl.limiters[service] = l
	}
	return l
}
