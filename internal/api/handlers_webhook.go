// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package api

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/metrics"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// maxWebhookBody bounds the inbound payload size. The flattened
// Jellyfin webhook template is a few KB at most.
const maxWebhookBody = 1 << 20

// JellyfinWebhook handles incoming Jellyfin Webhook plugin notifications.
// POST /webhook
//
// Only UserDataSaved notifications with a TogglePlayed or
// PlaybackFinished save reason represent a deliberate watched-state
// change; everything else (resume position noise, other notification
// types) is acknowledged and ignored so the plugin does not retry.
//
// When JELLYFIN_WEBHOOK_TOKEN is configured the request must carry it
// as a bearer token.
func (h *Handler) JellyfinWebhook(w http.ResponseWriter, r *http.Request) {
	if token := h.cfg.Jellyfin.WebhookToken; token != "" {
		if !bearerTokenMatches(r, token) {
			metrics.WebhookEventsReceived.WithLabelValues("invalid").Inc()
			respondError(w, http.StatusUnauthorized, codeUnauthorized, "invalid webhook token", nil)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEventsReceived.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "failed to read request body", err)
		return
	}
	defer r.Body.Close()

	var payload models.JellyfinWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookEventsReceived.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "failed to parse webhook JSON", err)
		return
	}

	if !payload.IsWatchedStateChange() {
		metrics.WebhookEventsReceived.WithLabelValues("ignored").Inc()
		respondSuccess(w, http.StatusOK, map[string]any{"disposition": "ignored"})
		return
	}

	kind, ok := payload.Kind()
	if !ok {
		metrics.WebhookEventsReceived.WithLabelValues("ignored").Inc()
		logging.Debug().
			Str("item_type", payload.ItemType).
			Msg("webhook item type not handled")
		respondSuccess(w, http.StatusOK, map[string]any{"disposition": "ignored"})
		return
	}

	if payload.ItemID == "" {
		metrics.WebhookEventsReceived.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "webhook payload missing ItemId", nil)
		return
	}

	event := payload.ToWatchEvent(time.Now().UTC())
	if err := h.events.PublishWatchEvent(event); err != nil {
		metrics.WebhookEventsReceived.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to queue watch event", err)
		return
	}

	metrics.WebhookEventsReceived.WithLabelValues("accepted").Inc()
	logging.Info().
		Str("item_id", payload.ItemID).
		Str("kind", string(kind)).
		Str("title", payload.Name).
		Bool("watched", payload.Played).
		Str("user", payload.Username).
		Msg("watch event accepted")

	respondSuccess(w, http.StatusAccepted, map[string]any{
		"disposition": "accepted",
		"item_id":     payload.ItemID,
	})
}

func bearerTokenMatches(r *http.Request, token string) bool {
	auth := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
