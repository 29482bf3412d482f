// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/cache"
	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/metrics"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// Resolver maps a Jellyfin item to its entry in the owning downstream
// service. Resolution order: cached mapping, direct provider-id match,
// normalized title (plus year), then optional metadata lookup to break
// ties. Ambiguity is surfaced, never guessed away.
type Resolver struct {
	clients        map[models.Service]DownstreamClient
	lookup         MetadataLookup // nil disables tie-breaking
	limiter        *RateLimiter   // nil disables limiting
	cache          *cache.Cache[models.ResolvedTarget]
	ignoreSpecials bool
}

// NewResolver creates a resolver over the given downstream clients.
// lookup and limiter may be nil. Candidate queries count against the
// same per-service budget as the dispatcher's monitored-flag calls.
func NewResolver(clients []DownstreamClient, lookup MetadataLookup, limiter *RateLimiter, cacheTTL time.Duration, ignoreSpecials bool) *Resolver {
	byService := make(map[models.Service]DownstreamClient, len(clients))
	for _, c := range clients {
		byService[c.Service()] = c
	}
	return &Resolver{
		clients:        byService,
		lookup:         lookup,
		limiter:        limiter,
		cache:          cache.New[models.ResolvedTarget](cacheTTL),
		ignoreSpecials: ignoreSpecials,
	}
}

// Close releases the resolver's cache resources.
func (r *Resolver) Close() {
	r.cache.Close()
}

// CacheStats exposes resolver cache counters for the stats endpoint.
func (r *Resolver) CacheStats() (cache.Stats, float64) {
	return r.cache.GetStats(), r.cache.HitRate()
}

// Resolve maps an item to a downstream target. Returns ErrSkippedSpecial,
// ErrNotFoundInLibrary, ErrAmbiguous, or ErrServiceDisabled as permanent
// outcomes; transient downstream failures pass through for the caller's
// retry policy.
func (r *Resolver) Resolve(ctx context.Context, itemID string, md models.ItemMetadata) (models.ResolvedTarget, error) {
	var zero models.ResolvedTarget

	if r.ignoreSpecials && md.Season == 0 &&
		(md.Kind == models.MediaKindEpisode || md.Kind == models.MediaKindSeason) {
		return zero, fmt.Errorf("%q: %w", md.Title, ErrSkippedSpecial)
	}

	if target, ok := r.cache.Get(itemID); ok {
		metrics.ResolveCacheHits.Inc()
		return target, nil
	}
	metrics.ResolveCacheMisses.Inc()

	client := r.clientFor(md.Kind)
	if client == nil {
		return zero, fmt.Errorf("%s items: %w", md.Kind, ErrServiceDisabled)
	}

	if r.limiter != nil {
		if err := r.limiter.Acquire(ctx, client.Service()); err != nil {
			return zero, err
		}
	}
	candidates, err := client.FindCandidates(ctx, md)
	if err != nil {
		return zero, err
	}

	target, err := r.pick(ctx, md, candidates)
	if err != nil {
		// A failed resolution invalidates any stale cached mapping.
		r.cache.Delete(itemID)
		return zero, err
	}

	r.cache.Set(itemID, target)
	return target, nil
}

// pick narrows candidates to exactly one target.
func (r *Resolver) pick(ctx context.Context, md models.ItemMetadata, candidates []Candidate) (models.ResolvedTarget, error) {
	var zero models.ResolvedTarget
	title := md.Title
	if md.SeriesTitle != "" {
		title = md.SeriesTitle
	}

	switch len(candidates) {
	case 0:
		return zero, fmt.Errorf("%q: %w", title, ErrNotFoundInLibrary)
	case 1:
		return candidates[0].Target, nil
	}

	if r.lookup != nil {
		if target, ok := r.disambiguate(ctx, title, md.Year, candidates); ok {
			return target, nil
		}
	}
	return zero, fmt.Errorf("%q matches %d entries: %w", title, len(candidates), ErrAmbiguous)
}

// disambiguate asks the metadata lookup for the title's IMDB id and keeps
// the single candidate carrying it, if any.
func (r *Resolver) disambiguate(ctx context.Context, title string, year int, candidates []Candidate) (models.ResolvedTarget, bool) {
	ids, err := r.lookup.Lookup(ctx, title, year)
	if err != nil {
		if !errors.Is(err, ErrLookupNotFound) {
			logging.Warn().Err(err).Str("title", title).Msg("metadata lookup failed during disambiguation")
		}
		return models.ResolvedTarget{}, false
	}
	if ids.IMDB == "" {
		return models.ResolvedTarget{}, false
	}

	var matched []Candidate
	for _, c := range candidates {
		if c.Providers.IMDB == ids.IMDB {
			matched = append(matched, c)
		}
	}
	if len(matched) == 1 {
		return matched[0].Target, true
	}
	return models.ResolvedTarget{}, false
}

func (r *Resolver) clientFor(kind models.MediaKind) DownstreamClient {
	if kind == models.MediaKindMovie {
		return r.clients[models.ServiceRadarr]
	}
	return r.clients[models.ServiceSonarr]
}
