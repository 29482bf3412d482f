// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

// Package metrics defines the Prometheus instrumentation for Unmonitarr:
// webhook intake, dispatch outcomes and latency, bulk sync progress,
// downstream circuit breaker state, and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook intake
	WebhookEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_webhook_events_total",
			Help: "Total webhook events received, by disposition",
		},
		[]string{"disposition"}, // "accepted", "ignored", "invalid"
	)

	// Debounce coalescer
	DebouncePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmonitarr_debounce_pending",
			Help: "Number of items currently inside the debounce window",
		},
	)

	DebounceCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unmonitarr_debounce_coalesced_total",
			Help: "Events absorbed by an already-pending debounce window",
		},
	)

	// Dispatch
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unmonitarr_dispatch_duration_seconds",
			Help:    "Duration of sync dispatches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)

	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_actions_total",
			Help: "Terminal sync actions, by service, action, and status",
		},
		[]string{"service", "action", "status"},
	)

	// Resolver cache
	ResolveCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unmonitarr_resolve_cache_hits_total",
			Help: "Resolutions served from the target cache",
		},
	)

	ResolveCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unmonitarr_resolve_cache_misses_total",
			Help: "Resolutions that had to query the downstream library",
		},
	)

	// Bulk sync
	BulkJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmonitarr_bulk_jobs_total",
			Help: "Bulk sync jobs, by terminal status",
		},
		[]string{"status"},
	)

	BulkItemsProcessed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmonitarr_bulk_items_processed",
			Help: "Items processed by the current or last bulk job",
		},
	)

	// Rate limiting
	RateLimitWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unmonitarr_rate_limit_wait_seconds",
			Help:    "Time spent waiting for a downstream call slot",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "unmonitarr_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	// HTTP server
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unmonitarr_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmonitarr_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// WebSocket hub
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmonitarr_websocket_clients",
			Help: "Number of connected WebSocket clients",
		},
	)
)

// SetCircuitBreakerState records a breaker state transition.
func SetCircuitBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveDispatch records one finished dispatch.
func ObserveDispatch(service, status string, duration time.Duration) {
	DispatchDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}
