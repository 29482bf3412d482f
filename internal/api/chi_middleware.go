// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/unmonitarr/unmonitarr/internal/config"
)

// ChiMiddleware provides the chi-compatible middleware factories built
// from server configuration: CORS via go-chi/cors and per-IP rate
// limiting via go-chi/httprate.
type ChiMiddleware struct {
	cors      func(http.Handler) http.Handler
	reqs      int
	window    time.Duration
	unlimited bool
}

// NewChiMiddleware builds the factories from the server section of the
// configuration. A rate limit of zero requests disables limiting.
func NewChiMiddleware(cfg config.ServerConfig) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})

	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	return &ChiMiddleware{
		cors:      corsHandler,
		reqs:      cfg.RateLimitReqs,
		window:    window,
		unlimited: cfg.RateLimitReqs <= 0,
	}
}

// CORS returns the CORS middleware. Applied globally so OPTIONS
// preflight requests are handled on every route.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiter.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.limit(m.reqs, m.window)
}

// RateLimitSync returns a stricter limiter for bulk sync and retry
// triggers, which fan out into downstream API traffic.
func (m *ChiMiddleware) RateLimitSync() func(http.Handler) http.Handler {
	return m.limit(10, time.Minute)
}

// RateLimitHealth returns a permissive limiter for health probes so
// monitoring can poll frequently without exhausting the API budget.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.limit(1000, time.Minute)
}

func (m *ChiMiddleware) limit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if m.unlimited {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}
