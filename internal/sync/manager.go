// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/cache"
	"github.com/unmonitarr/unmonitarr/internal/config"
	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// Engine wires the reconciliation components together and exposes the
// operations the HTTP front end consumes. It implements suture.Service;
// Serve blocks until the supervisor cancels it, then winds the engine
// down.
type Engine struct {
	media      MediaServerClient
	store      ActionLogStore
	resolver   *Resolver
	dispatcher *Dispatcher
	coalescer  *Coalescer
	bulk       *BulkOrchestrator

	mu     sync.RWMutex
	runCtx context.Context
}

// EngineOptions carries the optional observer hooks.
type EngineOptions struct {
	// OnAction observes action state changes. May be nil.
	OnAction DispatchNotifier
	// OnBulkProgress observes bulk job snapshots. May be nil.
	OnBulkProgress ProgressNotifier
}

// NewEngine builds the engine from configuration. lookup may be nil when
// metadata-assisted disambiguation is disabled.
func NewEngine(cfg *config.Config, media MediaServerClient, clients []DownstreamClient, lookup MetadataLookup, store ActionLogStore, opts EngineOptions) *Engine {
	limiter := NewRateLimiter(cfg.Sync.RequestsPerMinute)
	resolver := NewResolver(clients, lookup, limiter, cfg.Sync.ResolveCacheTTL, cfg.Sync.IgnoreSpecialEpisodes)
	retry := NewRetryExecutor(cfg.Sync.RetryAttempts, cfg.Sync.RetryDelay)
	dispatcher := NewDispatcher(resolver, clients, retry, limiter, store, opts.OnAction)

	e := &Engine{
		media:      media,
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		bulk:       NewBulkOrchestrator(media, dispatcher, opts.OnBulkProgress),
		runCtx:     context.Background(),
	}
	e.coalescer = NewCoalescer(cfg.Sync.DebounceDelay, e.handleCoalesced)
	return e
}

// SubmitWatchEvent feeds a watched-state change into the debounce window.
func (e *Engine) SubmitWatchEvent(event models.WatchEvent) {
	e.coalescer.Submit(event)
}

// StartBulkSync starts the single-flight bulk job, returning its id or
// ErrBulkSyncRunning.
func (e *Engine) StartBulkSync(ctx context.Context, syncType models.BulkSyncType) (string, error) {
	return e.bulk.Start(ctx, syncType)
}

// BulkStatus returns a snapshot of the current or last bulk job.
func (e *Engine) BulkStatus() models.BulkJob {
	return e.bulk.Status()
}

// Retry re-submits a failed action. Returns actionlog's not-found error
// for unknown ids and ErrActionNotFailed for actions in any other state.
func (e *Engine) Retry(ctx context.Context, actionID uint64) error {
	action, err := e.store.Get(actionID)
	if err != nil {
		return err
	}
	if action.Status != models.StatusFailed {
		return fmt.Errorf("action %d is %s: %w", actionID, action.Status, ErrActionNotFailed)
	}

	event, err := e.eventForAction(ctx, action)
	if err != nil {
		return err
	}
	return e.dispatcher.Redispatch(ctx, action, event)
}

// RetryAllFailed re-submits failed actions created within the given
// window, oldest first and capped at limit, and returns how many were
// started. The retries run in the background, sequentially, in id order.
// A limit of zero or less means no cap.
func (e *Engine) RetryAllFailed(ctx context.Context, window time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	failed, err := e.store.FailedSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}

	go func() {
		runCtx := e.currentCtx()
		for i := range failed {
			action := failed[i]
			event, err := e.eventForAction(runCtx, &action)
			if err != nil {
				logging.Warn().Err(err).Uint64("action_id", action.ID).Msg("bulk retry skipped action")
				continue
			}
			if err := e.dispatcher.Redispatch(runCtx, &action, event); err != nil {
				logging.Error().Err(err).Uint64("action_id", action.ID).Msg("bulk retry store failure")
			}
		}
	}()

	return len(failed), nil
}

// ResolverCacheStats exposes the resolution cache counters.
func (e *Engine) ResolverCacheStats() (cache.Stats, float64) {
	return e.resolver.CacheStats()
}

// PendingEvents reports items currently inside the debounce window.
func (e *Engine) PendingEvents() int {
	return e.coalescer.PendingCount()
}

// Serve implements suture.Service. It parks until the supervisor cancels
// the context, then stops the coalescer and any running bulk job.
func (e *Engine) Serve(ctx context.Context) error {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	logging.Info().Str("component", "engine").Msg("reconciliation engine started")
	<-ctx.Done()

	e.bulk.Cancel()
	e.coalescer.Close()
	e.resolver.Close()
	logging.Info().Str("component", "engine").Msg("reconciliation engine stopped")
	return ctx.Err()
}

func (e *Engine) String() string { return "sync-engine" }

// handleCoalesced dispatches an event whose debounce window elapsed. It
// runs on the coalescer's timer goroutine.
func (e *Engine) handleCoalesced(event models.WatchEvent) {
	ctx := e.currentCtx()
	if _, err := e.dispatcher.Dispatch(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Str("item_id", event.ItemID).Msg("dispatch store failure")
	}
}

// eventForAction reconstructs the watch event a failed action encodes:
// the desired monitored direction implies the watched state, and fresh
// metadata comes from the media server.
func (e *Engine) eventForAction(ctx context.Context, action *models.SyncAction) (models.WatchEvent, error) {
	md, err := e.media.GetItemMetadata(ctx, action.ItemID)
	if err != nil {
		return models.WatchEvent{}, fmt.Errorf("failed to refresh metadata for item %s: %w", action.ItemID, err)
	}
	return models.WatchEvent{
		ItemID:     action.ItemID,
		Watched:    action.Action == models.ActionUnmonitor,
		ObservedAt: time.Now().UTC(),
		Metadata:   md,
	}, nil
}

func (e *Engine) currentCtx() context.Context {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runCtx
}
