// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/config"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

func testEngineConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			DebounceDelay:         20 * time.Millisecond,
			RetryAttempts:         2,
			RetryDelay:            time.Millisecond,
			RequestsPerMinute:     60000,
			IgnoreSpecialEpisodes: true,
			ResolveCacheTTL:       time.Minute,
		},
	}
}

// waitForAction polls the store until the action reaches a terminal state.
func waitForAction(t *testing.T, store *memStore, id uint64, timeout time.Duration) *models.SyncAction {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a, err := store.Get(id); err == nil && a.Status.IsTerminal() {
			return a
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("action %d did not reach a terminal state within %v", id, timeout)
	return nil
}

// waitForTerminalCount polls until the store holds n terminal actions.
func waitForTerminalCount(t *testing.T, store *memStore, status models.SyncStatus, n int, timeout time.Duration) []models.SyncAction {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		actions, err := store.ListByStatus(context.Background(), status)
		if err == nil && len(actions) >= n {
			return actions
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("store did not reach %d %s actions within %v", n, status, timeout)
	return nil
}

func TestEngineSubmitWatchEventEndToEnd(t *testing.T) {
	store := newMemStore()
	radarr := newFakeDownstream(models.ServiceRadarr)
	radarr.addMovie(7, "Heat", true)
	media := newFakeMedia()

	e := NewEngine(testEngineConfig(), media, []DownstreamClient{radarr}, nil, store, EngineOptions{})
	defer e.coalescer.Close()
	defer e.resolver.Close()

	e.SubmitWatchEvent(movieEvent("jf-1", "Heat", true))
	if got := e.PendingEvents(); got != 1 {
		t.Errorf("PendingEvents() = %d, want 1 inside the debounce window", got)
	}

	actions := waitForTerminalCount(t, store, models.StatusCompleted, 1, 5*time.Second)
	if actions[0].Action != models.ActionUnmonitor {
		t.Errorf("action = %s, want unmonitor", actions[0].Action)
	}
	if radarr.isMonitored(7) {
		t.Error("movie still monitored after watched event")
	}
}

func TestEngineCoalescesRapidToggle(t *testing.T) {
	store := newMemStore()
	radarr := newFakeDownstream(models.ServiceRadarr)
	radarr.addMovie(7, "Heat", false)
	media := newFakeMedia()

	e := NewEngine(testEngineConfig(), media, []DownstreamClient{radarr}, nil, store, EngineOptions{})
	defer e.coalescer.Close()
	defer e.resolver.Close()

	// Watched then immediately unwatched: only the final state syncs.
	e.SubmitWatchEvent(movieEvent("jf-1", "Heat", true))
	e.SubmitWatchEvent(movieEvent("jf-1", "Heat", false))

	actions := waitForTerminalCount(t, store, models.StatusCompleted, 1, 5*time.Second)
	if store.countActions() != 1 {
		t.Errorf("store holds %d actions, want 1 (first toggle coalesced away)", store.countActions())
	}
	if actions[0].Action != models.ActionMonitor {
		t.Errorf("action = %s, want monitor (the final unwatched state)", actions[0].Action)
	}
	if !radarr.isMonitored(7) {
		t.Error("movie not monitored after final unwatched state")
	}
}

func TestEngineRetryUnknownAction(t *testing.T) {
	store := newMemStore()
	media := newFakeMedia()
	e := NewEngine(testEngineConfig(), media, nil, nil, store, EngineOptions{})
	defer e.coalescer.Close()
	defer e.resolver.Close()

	if err := e.Retry(context.Background(), 999); !errors.Is(err, errFakeNotFound) {
		t.Fatalf("Retry(999) error = %v, want store not-found", err)
	}
}

func TestEngineRetryNonFailedAction(t *testing.T) {
	store := newMemStore()
	media := newFakeMedia()
	e := NewEngine(testEngineConfig(), media, nil, nil, store, EngineOptions{})
	defer e.coalescer.Close()
	defer e.resolver.Close()

	action := &models.SyncAction{ItemID: "jf-1", Action: models.ActionUnmonitor, Status: models.StatusCompleted}
	if err := store.Append(action); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := e.Retry(context.Background(), action.ID); !errors.Is(err, ErrActionNotFailed) {
		t.Fatalf("Retry() error = %v, want ErrActionNotFailed", err)
	}
}

func TestEngineRetryFailedAction(t *testing.T) {
	store := newMemStore()
	radarr := newFakeDownstream(models.ServiceRadarr)
	media := newFakeMedia()
	media.metadata["jf-1"] = models.ItemMetadata{Title: "Tenet", Kind: models.MediaKindMovie}

	e := NewEngine(testEngineConfig(), media, []DownstreamClient{radarr}, nil, store, EngineOptions{})
	defer e.coalescer.Close()
	defer e.resolver.Close()

	failed := &models.SyncAction{
		ItemID:       "jf-1",
		Action:       models.ActionUnmonitor,
		Status:       models.StatusFailed,
		ErrorMessage: "no matching entry in downstream library",
	}
	if err := store.Append(failed); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// The movie has shown up downstream since the failure.
	radarr.addMovie(30, "Tenet", true)

	if err := e.Retry(context.Background(), failed.ID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	a := waitForAction(t, store, failed.ID, 5*time.Second)
	if a.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", a.Status)
	}
	if a.ErrorMessage != "" {
		t.Errorf("error message not cleared: %q", a.ErrorMessage)
	}
	if radarr.isMonitored(30) {
		t.Error("movie still monitored after successful retry")
	}
}

func TestEngineRetryAllFailedRespectsWindow(t *testing.T) {
	store := newMemStore()
	radarr := newFakeDownstream(models.ServiceRadarr)
	radarr.addMovie(1, "Heat", true)
	radarr.addMovie(2, "Ronin", true)
	media := newFakeMedia()
	media.metadata["jf-1"] = models.ItemMetadata{Title: "Heat", Kind: models.MediaKindMovie}
	media.metadata["jf-2"] = models.ItemMetadata{Title: "Ronin", Kind: models.MediaKindMovie}
	media.metadata["jf-old"] = models.ItemMetadata{Title: "Old Movie", Kind: models.MediaKindMovie}

	e := NewEngine(testEngineConfig(), media, []DownstreamClient{radarr}, nil, store, EngineOptions{})
	defer e.coalescer.Close()
	defer e.resolver.Close()

	recent1 := &models.SyncAction{ItemID: "jf-1", Action: models.ActionUnmonitor, Status: models.StatusFailed}
	recent2 := &models.SyncAction{ItemID: "jf-2", Action: models.ActionUnmonitor, Status: models.StatusFailed}
	stale := &models.SyncAction{
		ItemID:    "jf-old",
		Action:    models.ActionUnmonitor,
		Status:    models.StatusFailed,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	for _, a := range []*models.SyncAction{recent1, recent2, stale} {
		if err := store.Append(a); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	count, err := e.RetryAllFailed(context.Background(), 24*time.Hour, 0)
	if err != nil {
		t.Fatalf("RetryAllFailed() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 (stale failure outside the window)", count)
	}

	waitForTerminalCount(t, store, models.StatusCompleted, 2, 5*time.Second)
	if a, _ := store.Get(stale.ID); a.Status != models.StatusFailed {
		t.Errorf("stale action status = %s, want still failed", a.Status)
	}
}

func TestEngineRetryAllFailedHonorsLimit(t *testing.T) {
	store := newMemStore()
	radarr := newFakeDownstream(models.ServiceRadarr)
	radarr.addMovie(1, "Heat", true)
	radarr.addMovie(2, "Ronin", true)
	media := newFakeMedia()
	media.metadata["jf-1"] = models.ItemMetadata{Title: "Heat", Kind: models.MediaKindMovie}
	media.metadata["jf-2"] = models.ItemMetadata{Title: "Ronin", Kind: models.MediaKindMovie}

	e := NewEngine(testEngineConfig(), media, []DownstreamClient{radarr}, nil, store, EngineOptions{})
	defer e.coalescer.Close()
	defer e.resolver.Close()

	first := &models.SyncAction{ItemID: "jf-1", Action: models.ActionUnmonitor, Status: models.StatusFailed}
	second := &models.SyncAction{ItemID: "jf-2", Action: models.ActionUnmonitor, Status: models.StatusFailed}
	for _, a := range []*models.SyncAction{first, second} {
		if err := store.Append(a); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	count, err := e.RetryAllFailed(context.Background(), 24*time.Hour, 1)
	if err != nil {
		t.Fatalf("RetryAllFailed() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	waitForTerminalCount(t, store, models.StatusCompleted, 1, 5*time.Second)
	if a, _ := store.Get(first.ID); a.Status != models.StatusCompleted {
		t.Errorf("oldest action status = %s, want completed", a.Status)
	}
	if a, _ := store.Get(second.ID); a.Status != models.StatusFailed {
		t.Errorf("capped action status = %s, want still failed", a.Status)
	}
}
