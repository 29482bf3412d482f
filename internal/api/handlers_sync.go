// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/unmonitarr/unmonitarr/internal/actionlog"
	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/models"
	"github.com/unmonitarr/unmonitarr/internal/sync"
	"github.com/unmonitarr/unmonitarr/internal/validation"
)

// defaultRetryWindow and defaultRetryLimit bound RetryAllFailed when
// the request does not name them.
const (
	defaultRetryWindow = 24 * time.Hour
	defaultRetryLimit  = 50
)

// BulkSyncRequest is the optional body of POST /api/v1/sync/bulk.
type BulkSyncRequest struct {
	Type string `json:"type" validate:"omitempty,oneof=all series movies"`
}

// RetryFailedRequest is the optional body of POST /api/v1/sync/retry-failed.
type RetryFailedRequest struct {
	Within string `json:"within" validate:"omitempty"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=500"`
}

// StartBulkSync triggers a library-wide reconciliation.
// POST /api/v1/sync/bulk
//
// Responds 202 with the job id, or 409 when a bulk sync is already
// running.
func (h *Handler) StartBulkSync(w http.ResponseWriter, r *http.Request) {
	var req BulkSyncRequest
	if !h.decodeOptionalBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	syncType, _ := models.ParseBulkSyncType(req.Type)
	jobID, err := h.engine.StartBulkSync(r.Context(), syncType)
	if err != nil {
		if errors.Is(err, sync.ErrBulkSyncRunning) {
			respondError(w, http.StatusConflict, codeConflict, "a bulk sync is already running", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to start bulk sync", err)
		return
	}

	logging.Info().Str("job_id", jobID).Str("sync_type", string(syncType)).Msg("bulk sync started")
	respondSuccess(w, http.StatusAccepted, map[string]any{
		"job_id":    jobID,
		"sync_type": syncType,
	})
}

// BulkSyncStatus returns the current or last bulk job snapshot.
// GET /api/v1/sync/bulk
func (h *Handler) BulkSyncStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.engine.BulkStatus())
}

// RetryAction re-dispatches one failed action.
// POST /api/v1/sync/actions/{id}/retry
func (h *Handler) RetryAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "action id must be a positive integer", nil)
		return
	}

	switch err := h.engine.Retry(r.Context(), id); {
	case err == nil:
		respondSuccess(w, http.StatusAccepted, map[string]any{"action_id": id, "state": "retrying"})
	case errors.Is(err, actionlog.ErrNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, "action not found", nil)
	case errors.Is(err, sync.ErrActionNotFailed):
		respondError(w, http.StatusConflict, codeConflict, "only failed actions can be retried", nil)
	default:
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to retry action", err)
	}
}

// RetryAllFailed re-dispatches every failed action inside a time window.
// POST /api/v1/sync/retry-failed
func (h *Handler) RetryAllFailed(w http.ResponseWriter, r *http.Request) {
	var req RetryFailedRequest
	if !h.decodeOptionalBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	window := defaultRetryWindow
	if req.Within != "" {
		parsed, err := time.ParseDuration(req.Within)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, codeInvalidRequest, "within must be a positive duration like 24h", err)
			return
		}
		window = parsed
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultRetryLimit
	}

	count, err := h.engine.RetryAllFailed(r.Context(), window, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to queue retries", err)
		return
	}

	logging.Info().Int("count", count).Dur("window", window).Msg("failed actions queued for retry")
	respondSuccess(w, http.StatusAccepted, map[string]any{
		"queued": count,
		"within": window.String(),
		"limit":  limit,
	})
}

// ListActions returns recent sync actions, optionally filtered by
// status.
// GET /api/v1/sync/actions?status=failed&limit=50
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", 100)
	if limit < 1 || limit > 1000 {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "limit must be between 1 and 1000", nil)
		return
	}

	var (
		actions []models.SyncAction
		err     error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		s := models.SyncStatus(status)
		switch s {
		case models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed, models.StatusSkipped:
		default:
			respondError(w, http.StatusBadRequest, codeInvalidRequest, "unknown status filter", nil)
			return
		}
		actions, err = h.store.ListByStatus(r.Context(), s)
		if err == nil && len(actions) > limit {
			actions = actions[len(actions)-limit:]
		}
	} else {
		actions, err = h.store.ListRecent(r.Context(), limit)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to list actions", err)
		return
	}

	respondList(w, actions, len(actions))
}

// GetAction returns one sync action by id.
// GET /api/v1/sync/actions/{id}
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "action id must be a positive integer", nil)
		return
	}

	action, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, actionlog.ErrNotFound) {
			respondError(w, http.StatusNotFound, codeNotFound, "action not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to load action", err)
		return
	}

	respondSuccess(w, http.StatusOK, action)
}

// decodeOptionalBody decodes a JSON body into dst when one is present.
// An empty body leaves dst zero-valued. Returns false after writing an
// error response.
func (h *Handler) decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "failed to read request body", err)
		return false
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "failed to parse request JSON", err)
		return false
	}
	return true
}
