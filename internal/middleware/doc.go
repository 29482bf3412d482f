// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

/*
Package middleware provides the cross-cutting HTTP middleware the API
router composes: request id propagation for log correlation and
Prometheus instrumentation of every served request.

CORS, rate limiting, and panic recovery come from the chi ecosystem
(go-chi/cors, go-chi/httprate, chi middleware) and are wired directly in
the router rather than wrapped here.
*/
package middleware
