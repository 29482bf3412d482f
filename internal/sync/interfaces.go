// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/models"
)

// LibraryItem is one entry of a bulk-sync enumeration: the item plus the
// watched state to apply.
type LibraryItem struct {
	ID       string
	Watched  bool
	Metadata models.ItemMetadata
}

// MediaServerClient is the engine's view of Jellyfin.
type MediaServerClient interface {
	// GetItemMetadata fetches resolution metadata for a single item.
	GetItemMetadata(ctx context.Context, itemID string) (models.ItemMetadata, error)

	// ListLibrary enumerates the library slice selected by syncType.
	ListLibrary(ctx context.Context, syncType models.BulkSyncType) ([]LibraryItem, error)
}

// Candidate is one possible downstream match for an item, carrying the
// provider ids needed to disambiguate equal-confidence candidates.
type Candidate struct {
	Target    models.ResolvedTarget
	Providers models.ProviderIDs
}

// DownstreamClient is the engine's view of one media manager (Sonarr or
// Radarr). Implementations handle wire-level request building; the engine
// composes them with retry and rate limiting.
type DownstreamClient interface {
	Service() models.Service

	// FindCandidates returns every downstream entry matching the metadata
	// with equal confidence: a provider-id match wins outright, otherwise
	// normalized title (plus year within one, when both sides know it).
	FindCandidates(ctx context.Context, md models.ItemMetadata) ([]Candidate, error)

	// GetMonitored reports whether the target is currently monitored. For
	// multi-episode targets it is true only when every covered episode is.
	GetMonitored(ctx context.Context, target models.ResolvedTarget) (bool, error)

	// SetMonitored applies the monitored flag to the target.
	SetMonitored(ctx context.Context, target models.ResolvedTarget, monitored bool) error
}

// MetadataLookup disambiguates identical titles via an external metadata
// source. Optional: a nil lookup disables step 4 of resolution.
type MetadataLookup interface {
	// Lookup returns provider ids for a title (and year when known), or
	// ErrLookupNotFound.
	Lookup(ctx context.Context, title string, year int) (models.ProviderIDs, error)
}

// ActionLogStore is the durable action log the dispatcher records into.
type ActionLogStore interface {
	Append(action *models.SyncAction) error
	Update(id uint64, mutate func(*models.SyncAction)) error
	Get(id uint64) (*models.SyncAction, error)
	ListByStatus(ctx context.Context, status models.SyncStatus) ([]models.SyncAction, error)
	FailedSince(ctx context.Context, cutoff time.Time) ([]models.SyncAction, error)
}
