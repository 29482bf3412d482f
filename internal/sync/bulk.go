// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/metrics"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// ProgressNotifier observes bulk job snapshots as progress advances.
// Must not block.
type ProgressNotifier func(models.BulkJob)

// BulkOrchestrator runs the single-flight full-library reconciliation.
// It enumerates the selected library slice and drives the dispatcher per
// item, bypassing the debounce window. At most one job runs per process,
// enforced by a compare-and-set on the job status under the orchestrator
// mutex.
type BulkOrchestrator struct {
	media      MediaServerClient
	dispatcher *Dispatcher
	notify     ProgressNotifier

	mu     sync.Mutex
	job    *models.BulkJob
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBulkOrchestrator creates the orchestrator. notify may be nil.
func NewBulkOrchestrator(media MediaServerClient, dispatcher *Dispatcher, notify ProgressNotifier) *BulkOrchestrator {
	return &BulkOrchestrator{
		media:      media,
		dispatcher: dispatcher,
		notify:     notify,
	}
}

// Start begins a bulk sync, or returns ErrBulkSyncRunning if one is
// already in flight. The second caller's request has no side effects on
// the running job.
func (b *BulkOrchestrator) Start(ctx context.Context, syncType models.BulkSyncType) (string, error) {
	b.mu.Lock()
	if b.job != nil && b.job.Status == models.BulkRunning {
		b.mu.Unlock()
		return "", ErrBulkSyncRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &models.BulkJob{
		ID:        uuid.New().String(),
		SyncType:  syncType,
		Status:    models.BulkRunning,
		StartedAt: time.Now().UTC(),
	}
	b.job = job
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()

	logging.Info().
		Str("job_id", job.ID).
		Str("sync_type", string(syncType)).
		Msg("bulk sync started")

	go b.run(runCtx, job.ID, syncType)
	return job.ID, nil
}

// run owns all mutation of the job record; status queries read snapshots
// under the mutex.
func (b *BulkOrchestrator) run(ctx context.Context, jobID string, syncType models.BulkSyncType) {
	defer close(b.done)

	items, err := b.media.ListLibrary(ctx, syncType)
	if err != nil {
		// Enumeration failure is the only job-fatal error.
		logging.Error().Err(err).Str("job_id", jobID).Msg("bulk sync enumeration failed")
		b.finish(models.BulkFailed, err)
		return
	}

	b.update(func(job *models.BulkJob) {
		job.Total = len(items)
	})

	for i := range items {
		// Cancellation is checked only at item boundaries so no item is
		// left Processing mid-call.
		select {
		case <-ctx.Done():
			logging.Info().Str("job_id", jobID).Msg("bulk sync cancelled")
			b.finish(models.BulkCompleted, nil)
			return
		default:
		}

		item := &items[i]
		b.update(func(job *models.BulkJob) {
			job.CurrentItem = item.Metadata.Title
		})

		event := models.WatchEvent{
			ItemID:     item.ID,
			Watched:    item.Watched,
			ObservedAt: time.Now().UTC(),
			Metadata:   item.Metadata,
		}
		action, err := b.dispatcher.Dispatch(ctx, event)

		b.update(func(job *models.BulkJob) {
			job.Processed++
			switch {
			case err != nil:
				job.Errors = append(job.Errors, models.BulkError{ItemID: item.ID, Message: err.Error()})
			case action.Status == models.StatusCompleted:
				job.Synced++
			case action.Status == models.StatusFailed:
				job.Errors = append(job.Errors, models.BulkError{ItemID: item.ID, Message: action.ErrorMessage})
			}
			// Skipped items count as processed only.
			metrics.BulkItemsProcessed.Set(float64(job.Processed))
		})
	}

	b.finish(models.BulkCompleted, nil)
}

// update mutates the job under the mutex and notifies observers with a
// snapshot.
func (b *BulkOrchestrator) update(mutate func(*models.BulkJob)) {
	b.mu.Lock()
	mutate(b.job)
	snapshot := snapshotJob(b.job)
	b.mu.Unlock()

	if b.notify != nil {
		b.notify(snapshot)
	}
}

func (b *BulkOrchestrator) finish(status models.BulkStatus, cause error) {
	b.update(func(job *models.BulkJob) {
		job.Status = status
		job.CurrentItem = ""
		now := time.Now().UTC()
		job.FinishedAt = &now
		if cause != nil {
			job.Errors = append(job.Errors, models.BulkError{Message: cause.Error()})
		}
	})
	metrics.BulkJobsTotal.WithLabelValues(string(status)).Inc()

	b.mu.Lock()
	job := snapshotJob(b.job)
	b.mu.Unlock()
	logging.Info().
		Str("job_id", job.ID).
		Str("status", string(status)).
		Int("processed", job.Processed).
		Int("synced", job.Synced).
		Int("errors", len(job.Errors)).
		Msg("bulk sync finished")
}

// Status returns a snapshot of the current or last job. Before any run it
// reports Idle.
func (b *BulkOrchestrator) Status() models.BulkJob {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil {
		return models.BulkJob{Status: models.BulkIdle}
	}
	return snapshotJob(b.job)
}

// Cancel stops a running job at the next item boundary and waits for it
// to wind down. No-op when nothing is running.
func (b *BulkOrchestrator) Cancel() {
	b.mu.Lock()
	if b.job == nil || b.job.Status != models.BulkRunning {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	cancel()
	<-done
}

// snapshotJob deep-copies the job so readers never share the errors slice
// with the running mutator.
func snapshotJob(job *models.BulkJob) models.BulkJob {
	snapshot := *job
	if len(job.Errors) > 0 {
		snapshot.Errors = make([]models.BulkError, len(job.Errors))
		copy(snapshot.Errors, job.Errors)
	}
	return snapshot
}
