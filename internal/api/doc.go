// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

// Package api is the HTTP front end: the Jellyfin webhook intake, the
// sync management API under /api/v1, the WebSocket live feed, health
// probes, and the Prometheus scrape endpoint.
//
// Routing uses chi with the ecosystem middleware stack (go-chi/cors for
// CORS preflight, go-chi/httprate for per-IP rate limiting). Every JSON
// endpoint responds with the models.APIResponse envelope.
package api
