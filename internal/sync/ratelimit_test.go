// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/models"
)

func TestRateLimiterEnforcesBurst(t *testing.T) {
	rl := newRateLimiter(time.Hour, 2)

	if !rl.Allow(models.ServiceSonarr) {
		t.Fatal("first call denied")
	}
	if !rl.Allow(models.ServiceSonarr) {
		t.Fatal("second call denied within burst")
	}
	if rl.Allow(models.ServiceSonarr) {
		t.Error("third call allowed beyond burst with no refill")
	}
}

func TestRateLimiterBucketsArePerService(t *testing.T) {
	rl := newRateLimiter(time.Hour, 1)

	if !rl.Allow(models.ServiceSonarr) {
		t.Fatal("sonarr call denied")
	}
	if rl.Allow(models.ServiceSonarr) {
		t.Fatal("sonarr bucket did not drain")
	}
	// Radarr has its own untouched bucket.
	if !rl.Allow(models.ServiceRadarr) {
		t.Error("radarr call denied despite separate bucket")
	}
}

func TestRateLimiterAcquireBlocksUntilRefill(t *testing.T) {
	rl := newRateLimiter(30*time.Millisecond, 1)
	ctx := context.Background()

	if err := rl.Acquire(ctx, models.ServiceSonarr); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	start := time.Now()
	if err := rl.Acquire(ctx, models.ServiceSonarr); err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("second Acquire() returned after %v, expected it to wait for a token", elapsed)
	}
}

func TestRateLimiterAcquireHonorsContext(t *testing.T) {
	rl := newRateLimiter(time.Hour, 1)
	ctx := context.Background()

	if err := rl.Acquire(ctx, models.ServiceSonarr); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	timed, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := rl.Acquire(timed, models.ServiceSonarr); err == nil {
		t.Error("Acquire() = nil with an empty bucket and expiring context")
	}
}
