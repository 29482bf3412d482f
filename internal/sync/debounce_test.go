// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"testing"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/models"
)

func collectEvents(t *testing.T, ch <-chan models.WatchEvent, want int, timeout time.Duration) []models.WatchEvent {
	t.Helper()
	var got []models.WatchEvent
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("received %d events before timeout, want %d", len(got), want)
		}
	}
	return got
}

func TestCoalescerDeliversAfterQuietPeriod(t *testing.T) {
	fired := make(chan models.WatchEvent, 8)
	c := NewCoalescer(20*time.Millisecond, func(ev models.WatchEvent) { fired <- ev })
	defer c.Close()

	c.Submit(movieEvent("item-1", "Heat", true))

	got := collectEvents(t, fired, 1, time.Second)
	if got[0].ItemID != "item-1" || !got[0].Watched {
		t.Errorf("delivered event = %+v, want item-1 watched", got[0])
	}
}

func TestCoalescerLastValueWins(t *testing.T) {
	fired := make(chan models.WatchEvent, 8)
	c := NewCoalescer(40*time.Millisecond, func(ev models.WatchEvent) { fired <- ev })
	defer c.Close()

	// Rapid toggle: mark episode watched, then unwatched within the
	// window. Only the final unwatched state may be dispatched.
	c.Submit(movieEvent("ep-42", "The Red Wedding", true))
	time.Sleep(5 * time.Millisecond)
	c.Submit(movieEvent("ep-42", "The Red Wedding", false))

	got := collectEvents(t, fired, 1, time.Second)
	if got[0].Watched {
		t.Error("dispatched the superseded watched=true value")
	}

	// The replaced value must never surface afterwards.
	select {
	case ev := <-fired:
		t.Errorf("unexpected second delivery: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCoalescerItemsAreIndependent(t *testing.T) {
	fired := make(chan models.WatchEvent, 8)
	c := NewCoalescer(20*time.Millisecond, func(ev models.WatchEvent) { fired <- ev })
	defer c.Close()

	c.Submit(movieEvent("item-a", "Alien", true))
	c.Submit(movieEvent("item-b", "Aliens", false))

	got := collectEvents(t, fired, 2, time.Second)
	seen := map[string]bool{}
	for _, ev := range got {
		seen[ev.ItemID] = true
	}
	if !seen["item-a"] || !seen["item-b"] {
		t.Errorf("delivered items = %v, want both item-a and item-b", seen)
	}
}

func TestCoalescerPendingCount(t *testing.T) {
	c := NewCoalescer(time.Hour, func(models.WatchEvent) {})
	defer c.Close()

	c.Submit(movieEvent("item-a", "Alien", true))
	c.Submit(movieEvent("item-a", "Alien", false))
	c.Submit(movieEvent("item-b", "Aliens", true))

	if got := c.PendingCount(); got != 2 {
		t.Errorf("PendingCount() = %d, want 2 (resubmission replaces, not queues)", got)
	}
}

func TestCoalescerCloseDropsPending(t *testing.T) {
	fired := make(chan models.WatchEvent, 8)
	c := NewCoalescer(20*time.Millisecond, func(ev models.WatchEvent) { fired <- ev })

	c.Submit(movieEvent("item-a", "Alien", true))
	c.Close()

	select {
	case ev := <-fired:
		t.Errorf("event delivered after Close: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	// Submissions after Close are discarded.
	c.Submit(movieEvent("item-b", "Aliens", true))
	if got := c.PendingCount(); got != 0 {
		t.Errorf("PendingCount() after Close = %d, want 0", got)
	}
}
