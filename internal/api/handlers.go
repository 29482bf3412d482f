// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/unmonitarr/unmonitarr/internal/cache"
	"github.com/unmonitarr/unmonitarr/internal/config"
	"github.com/unmonitarr/unmonitarr/internal/models"
	"github.com/unmonitarr/unmonitarr/internal/websocket"
)

// SyncEngine is the slice of the reconciliation engine the API drives.
type SyncEngine interface {
	StartBulkSync(ctx context.Context, syncType models.BulkSyncType) (string, error)
	BulkStatus() models.BulkJob
	Retry(ctx context.Context, actionID uint64) error
	RetryAllFailed(ctx context.Context, window time.Duration, limit int) (int, error)
	ResolverCacheStats() (cache.Stats, float64)
	PendingEvents() int
}

// EventPublisher accepts watch events from the webhook for asynchronous
// processing.
type EventPublisher interface {
	PublishWatchEvent(event models.WatchEvent) error
}

// ActionStore is the read side of the durable action log.
type ActionStore interface {
	Get(id uint64) (*models.SyncAction, error)
	ListRecent(ctx context.Context, limit int) ([]models.SyncAction, error)
	ListByStatus(ctx context.Context, status models.SyncStatus) ([]models.SyncAction, error)
	Counts(ctx context.Context) (map[models.SyncStatus]int, error)
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	cfg    *config.Config
	engine SyncEngine
	events EventPublisher
	store  ActionStore
	hub    *websocket.Hub

	startedAt time.Time
}

// NewHandler creates the handler set.
func NewHandler(cfg *config.Config, engine SyncEngine, events EventPublisher, store ActionStore, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:       cfg,
		engine:    engine,
		events:    events,
		store:     store,
		hub:       hub,
		startedAt: time.Now().UTC(),
	}
}

// HealthLive reports process liveness. Always succeeds while the server
// is able to serve requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]any{"status": "alive"})
}

// HealthReady reports readiness: the action log must be reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Counts(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, codeInternalError, "action log unavailable", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"status": "ready"})
}

// Health reports overall service health with component detail.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"jellyfin": "configured",
		"sonarr":   serviceState(h.cfg.Sonarr.Enabled),
		"radarr":   serviceState(h.cfg.Radarr.Enabled),
		"omdb":     serviceState(h.cfg.OMDB.Enabled),
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    version,
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"components": components,
	})
}

// version is reported by /api/v1/info and the health endpoint.
const version = "1.0.0"

// Info returns static service metadata and the effective sync settings.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]any{
		"name":    "unmonitarr",
		"version": version,
		"services": map[string]string{
			"sonarr": serviceState(h.cfg.Sonarr.Enabled),
			"radarr": serviceState(h.cfg.Radarr.Enabled),
			"omdb":   serviceState(h.cfg.OMDB.Enabled),
		},
		"settings": map[string]any{
			"debounce_delay":          h.cfg.Sync.DebounceDelay.String(),
			"requests_per_minute":     h.cfg.Sync.RequestsPerMinute,
			"retry_attempts":          h.cfg.Sync.RetryAttempts,
			"ignore_special_episodes": h.cfg.Sync.IgnoreSpecialEpisodes,
		},
	})
}

func serviceState(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// StatsResponse is the payload of GET /api/v1/stats.
type StatsResponse struct {
	Actions          map[models.SyncStatus]int `json:"actions"`
	PendingEvents    int                       `json:"pending_events"`
	CacheHits        int64                     `json:"cache_hits"`
	CacheMisses      int64                     `json:"cache_misses"`
	CacheHitRate     float64                   `json:"cache_hit_rate"`
	WebSocketClients int                       `json:"websocket_clients"`
	Bulk             models.BulkJob            `json:"bulk"`
}

// Stats returns operational counters for the dashboard.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Counts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to read action counts", err)
		return
	}

	cacheStats, hitRate := h.engine.ResolverCacheStats()
	respondSuccess(w, http.StatusOK, StatsResponse{
		Actions:          counts,
		PendingEvents:    h.engine.PendingEvents(),
		CacheHits:        cacheStats.Hits,
		CacheMisses:      cacheStats.Misses,
		CacheHitRate:     hitRate,
		WebSocketClients: h.hub.GetClientCount(),
		Bulk:             h.engine.BulkStatus(),
	})
}
