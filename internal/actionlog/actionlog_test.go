// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package actionlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newAction(itemID string, status models.SyncStatus) *models.SyncAction {
	return &models.SyncAction{
		ItemID:  itemID,
		Action:  models.ActionMonitor,
		Service: models.ServiceRadarr,
		Status:  status,
		Title:   "Some Movie",
	}
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := openTestStore(t)

	var last uint64
	for i := 0; i < 5; i++ {
		a := newAction("item-1", models.StatusPending)
		if err := s.Append(a); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if a.ID <= last {
			t.Errorf("id %d not greater than previous %d", a.ID, last)
		}
		if a.CreatedAt.IsZero() {
			t.Error("Append should stamp CreatedAt")
		}
		last = a.ID
	}
}

func TestGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	a := newAction("item-2", models.StatusPending)
	a.Season = 2
	a.Episode = 5
	if err := s.Append(a); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := s.Get(a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ItemID != "item-2" || got.Season != 2 || got.Episode != 5 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	s := openTestStore(t)

	a := newAction("item-3", models.StatusPending)
	if err := s.Append(a); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	err := s.Update(a.ID, func(action *models.SyncAction) {
		action.Status = models.StatusFailed
		action.ErrorMessage = "downstream unavailable"
		action.AttemptCount = 3
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := s.Get(a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.StatusFailed || got.AttemptCount != 3 {
		t.Errorf("update not applied: %+v", got)
	}
	if got.ErrorMessage != "downstream unavailable" {
		t.Errorf("ErrorMessage = %q", got.ErrorMessage)
	}
}

func TestUpdateMissing(t *testing.T) {
	s := openTestStore(t)
	err := s.Update(12345, func(*models.SyncAction) {})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
}

func TestListByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Append(newAction("ok", models.StatusCompleted)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := s.Append(newAction("bad", models.StatusFailed)); err != nil {
			t.Fatal(err)
		}
	}

	failed, err := s.ListByStatus(ctx, models.StatusFailed)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(failed) != 2 {
		t.Errorf("len(failed) = %d, want 2", len(failed))
	}
	for _, a := range failed {
		if a.ItemID != "bad" {
			t.Errorf("unexpected item in failed list: %+v", a)
		}
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []uint64
	for i := 0; i < 5; i++ {
		a := newAction("item", models.StatusCompleted)
		if err := s.Append(a); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, a.ID)
	}

	recent, err := s.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	if recent[0].ID != ids[4] || recent[1].ID != ids[3] || recent[2].ID != ids[2] {
		t.Errorf("wrong order: got ids %d,%d,%d", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}

func TestFailedSince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := newAction("old", models.StatusFailed)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := s.Append(old); err != nil {
		t.Fatal(err)
	}
	fresh := newAction("fresh", models.StatusFailed)
	if err := s.Append(fresh); err != nil {
		t.Fatal(err)
	}

	got, err := s.FailedSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FailedSince failed: %v", err)
	}
	if len(got) != 1 || got[0].ItemID != "fresh" {
		t.Errorf("FailedSince = %+v, want only fresh", got)
	}
}

func TestCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	statuses := []models.SyncStatus{
		models.StatusCompleted, models.StatusCompleted,
		models.StatusFailed, models.StatusSkipped,
	}
	for _, st := range statuses {
		if err := s.Append(newAction("x", st)); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts[models.StatusCompleted] != 2 || counts[models.StatusFailed] != 1 || counts[models.StatusSkipped] != 1 {
		t.Errorf("Counts = %v", counts)
	}
}

func TestScanHonorsCancellation(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 10; i++ {
		if err := s.Append(newAction("x", models.StatusCompleted)); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ListByStatus(ctx, models.StatusCompleted); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
