// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unmonitarr/unmonitarr/internal/middleware"
)

// Router wires handlers and middleware into the HTTP route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for the given handler set.
func NewRouter(handler *Handler) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(handler.cfg.Server),
	}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	// Webhook intake. Authenticated by bearer token inside the handler;
	// rate limited like the rest of the API so a misconfigured plugin
	// cannot flood the coalescer.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Post("/webhook", router.handler.JellyfinWebhook)
	})

	// Health probes get a permissive limit so monitoring can poll.
	r.Route("/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/info", router.handler.Info)
		r.Get("/stats", router.handler.Stats)

		r.Route("/sync", func(r chi.Router) {
			r.Get("/bulk", router.handler.BulkSyncStatus)
			r.Get("/actions", router.handler.ListActions)
			r.Get("/actions/{id}", router.handler.GetAction)

			// Mutation endpoints fan out into downstream API calls and
			// carry a stricter budget.
			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitSync())
				r.Post("/bulk", router.handler.StartBulkSync)
				r.Post("/actions/{id}/retry", router.handler.RetryAction)
				r.Post("/retry-failed", router.handler.RetryAllFailed)
			})
		})
	})

	// Live feed and observability.
	r.Get("/ws", router.handler.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
