// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/metrics"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// DispatchNotifier observes terminal and transitional action states, e.g.
// to push them to WebSocket clients. Must not block.
type DispatchNotifier func(models.SyncAction)

// Dispatcher turns a coalesced watch event into a resolved, rate-limited,
// retried downstream call and records the outcome in the action log.
//
// State machine per action: Pending -> Processing -> Completed | Failed,
// with Skipped as its own terminal state for excluded specials. Per-item
// mutual exclusion is enforced here: a dispatch for an item already
// Processing waits for the in-flight one instead of racing it.
type Dispatcher struct {
	resolver *Resolver
	clients  map[models.Service]DownstreamClient
	retry    *RetryExecutor
	limiter  *RateLimiter
	store    ActionLogStore
	notify   DispatchNotifier

	mu       sync.Mutex
	inflight map[string]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher creates a dispatcher. notify may be nil.
func NewDispatcher(resolver *Resolver, clients []DownstreamClient, retry *RetryExecutor, limiter *RateLimiter, store ActionLogStore, notify DispatchNotifier) *Dispatcher {
	byService := make(map[models.Service]DownstreamClient, len(clients))
	for _, c := range clients {
		byService[c.Service()] = c
	}
	return &Dispatcher{
		resolver: resolver,
		clients:  byService,
		retry:    retry,
		limiter:  limiter,
		store:    store,
		notify:   notify,
		inflight: make(map[string]*itemLock),
	}
}

// Dispatch applies the event's watched state downstream, appending one new
// action record and driving it to a terminal state. The returned action is
// terminal unless the error is a store failure.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.WatchEvent) (*models.SyncAction, error) {
	d.acquireItem(event.ItemID)
	defer d.releaseItem(event.ItemID)

	action := &models.SyncAction{
		ItemID:  event.ItemID,
		Action:  models.ActionForWatched(event.Watched),
		Status:  models.StatusPending,
		Title:   event.Metadata.Title,
		Season:  event.Metadata.Season,
		Episode: event.Metadata.Episode,
	}
	if err := d.store.Append(action); err != nil {
		return nil, err
	}

	if err := d.process(ctx, action, event); err != nil {
		return action, err
	}
	return action, nil
}

// Redispatch re-submits an existing failed action under the same id,
// re-entering Pending -> Processing with the given event.
func (d *Dispatcher) Redispatch(ctx context.Context, action *models.SyncAction, event models.WatchEvent) error {
	d.acquireItem(event.ItemID)
	defer d.releaseItem(event.ItemID)

	action.Status = models.StatusPending
	action.ErrorMessage = ""
	action.AttemptCount = 0
	action.CompletedAt = nil
	if err := d.store.Update(action.ID, func(a *models.SyncAction) { *a = *action }); err != nil {
		return err
	}

	return d.process(ctx, action, event)
}

// process drives one action from Pending to a terminal state. Only store
// failures return an error; downstream and resolution failures terminate
// the action as Failed or Skipped.
func (d *Dispatcher) process(ctx context.Context, action *models.SyncAction, event models.WatchEvent) error {
	start := time.Now()

	if err := d.transition(action, models.StatusProcessing, nil); err != nil {
		return err
	}

	var target models.ResolvedTarget
	_, err := d.retry.Execute(ctx, func(ctx context.Context) error {
		t, resolveErr := d.resolver.Resolve(ctx, event.ItemID, event.Metadata)
		if resolveErr == nil {
			target = t
		}
		return resolveErr
	})
	if err != nil {
		status := models.StatusFailed
		if errors.Is(err, ErrSkippedSpecial) {
			status = models.StatusSkipped
		}
		return d.finish(action, status, err, start)
	}

	action.Service = target.Service
	if target.Title != "" {
		action.Title = target.Title
	}
	desired := action.Action.Desired()
	client := d.clients[target.Service]

	attempts, err := d.retry.Execute(ctx, func(ctx context.Context) error {
		if err := d.limiter.Acquire(ctx, target.Service); err != nil {
			return err
		}
		current, err := client.GetMonitored(ctx, target)
		if err != nil {
			return err
		}
		if current == desired {
			// Already in the desired state: no write, no wasted
			// rate-limited call.
			return nil
		}

		if err := d.limiter.Acquire(ctx, target.Service); err != nil {
			return err
		}
		return client.SetMonitored(ctx, target, desired)
	})
	action.AttemptCount = attempts

	if err != nil {
		return d.finish(action, models.StatusFailed, err, start)
	}
	return d.finish(action, models.StatusCompleted, nil, start)
}

// finish records the terminal state and emits metrics.
func (d *Dispatcher) finish(action *models.SyncAction, status models.SyncStatus, cause error, start time.Time) error {
	err := d.transition(action, status, cause)

	service := string(action.Service)
	if service == "" {
		service = "unresolved"
	}
	metrics.ActionsTotal.WithLabelValues(service, string(action.Action), string(status)).Inc()
	metrics.ObserveDispatch(service, string(status), time.Since(start))

	evt := logging.Info()
	if status == models.StatusFailed {
		evt = logging.Warn().Err(cause)
	}
	evt.Str("item_id", action.ItemID).
		Uint64("action_id", action.ID).
		Str("action", string(action.Action)).
		Str("status", string(status)).
		Int("attempts", action.AttemptCount).
		Msg("dispatch finished")

	// The cause is recorded on the action, not propagated; only a store
	// failure is an error here.
	return err
}

// transition updates the action's status in the store and notifies
// observers. Store unavailability is surfaced, never silently dropped.
func (d *Dispatcher) transition(action *models.SyncAction, status models.SyncStatus, cause error) error {
	action.Status = status
	if cause != nil {
		action.ErrorMessage = cause.Error()
	}
	if status.IsTerminal() {
		now := time.Now().UTC()
		action.CompletedAt = &now
	}

	err := d.store.Update(action.ID, func(a *models.SyncAction) {
		a.Status = action.Status
		a.Service = action.Service
		a.Title = action.Title
		a.AttemptCount = action.AttemptCount
		a.ErrorMessage = action.ErrorMessage
		a.CompletedAt = action.CompletedAt
	})
	if err != nil {
		return err
	}

	if d.notify != nil {
		d.notify(*action)
	}
	return nil
}

// acquireItem blocks until this goroutine owns the item's dispatch slot.
func (d *Dispatcher) acquireItem(itemID string) {
	d.mu.Lock()
	l, ok := d.inflight[itemID]
	if !ok {
		l = &itemLock{}
		d.inflight[itemID] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
}

func (d *Dispatcher) releaseItem(itemID string) {
	d.mu.Lock()
	l := d.inflight[itemID]
	l.refs--
	if l.refs == 0 {
		delete(d.inflight, itemID)
	}
	d.mu.Unlock()

	l.mu.Unlock()
}
