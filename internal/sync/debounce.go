// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"sync"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/metrics"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// Coalescer collapses rapid repeated events for the same item into one
// dispatch. Each submission cancels the item's pending timer and schedules
// a fresh one; only the value present when the quiet period elapses is
// handed on. Pending state is in-memory only: events lost on shutdown are
// acceptable because the upstream webhook source is itself best-effort.
type Coalescer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pendingEvent
	handler func(models.WatchEvent)
	closed  bool
	wg      sync.WaitGroup
}

type pendingEvent struct {
	timer *time.Timer
	event models.WatchEvent
}

// NewCoalescer creates a coalescer that invokes handler with the final
// event after delay of quiet time per item.
func NewCoalescer(delay time.Duration, handler func(models.WatchEvent)) *Coalescer {
	return &Coalescer{
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		handler: handler,
	}
}

// Submit schedules (or reschedules) dispatch of the event. The previous
// pending value for the item, if any, is replaced rather than queued.
func (c *Coalescer) Submit(event models.WatchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if prev, ok := c.pending[event.ItemID]; ok {
		prev.timer.Stop()
		metrics.DebounceCoalesced.Inc()
		logging.Debug().
			Str("item_id", event.ItemID).
			Bool("watched", event.Watched).
			Msg("debounce window reset, previous value replaced")
	}

	p := &pendingEvent{event: event}
	p.timer = time.AfterFunc(c.delay, func() { c.fire(event.ItemID, p) })
	c.pending[event.ItemID] = p
	metrics.DebouncePending.Set(float64(len(c.pending)))
}

// fire delivers a pending event once its quiet period elapsed. A stale
// timer whose entry was replaced is a no-op.
func (c *Coalescer) fire(itemID string, p *pendingEvent) {
	c.mu.Lock()
	if c.closed || c.pending[itemID] != p {
		c.mu.Unlock()
		return
	}
	delete(c.pending, itemID)
	metrics.DebouncePending.Set(float64(len(c.pending)))
	c.wg.Add(1)
	c.mu.Unlock()

	defer c.wg.Done()
	c.handler(p.event)
}

// PendingCount reports how many items are inside their debounce window.
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops all pending timers and waits for in-flight handlers. Events
// still inside their window are dropped.
func (c *Coalescer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, p := range c.pending {
		p.timer.Stop()
	}
	dropped := len(c.pending)
	c.pending = make(map[string]*pendingEvent)
	metrics.DebouncePending.Set(0)
	c.mu.Unlock()

	c.wg.Wait()
	if dropped > 0 {
		logging.Info().Int("dropped", dropped).Msg("coalescer closed with pending events")
	}
}
