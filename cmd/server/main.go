// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

// Package main is the Unmonitarr server entry point.
//
// Unmonitarr keeps Sonarr and Radarr monitoring aligned with Jellyfin
// watched state: an item is monitored exactly when it has not been
// watched. Watched-state changes arrive over the Jellyfin Webhook
// plugin; a bulk sync reconciles the whole library on demand.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Logging (zerolog)
//  3. Action log (BadgerDB)
//  4. Downstream clients (Sonarr, Radarr, optional OMDb lookup)
//  5. WebSocket hub, sync engine, event bus, HTTP server
//  6. Supervisor tree (suture) runs everything until SIGINT/SIGTERM
//
// Minimal configuration:
//
//	export JELLYFIN_URL=http://jellyfin:8096
//	export JELLYFIN_API_KEY=...
//	export SONARR_URL=http://sonarr:8989
//	export SONARR_API_KEY=...
//	export RADARR_URL=http://radarr:7878
//	export RADARR_API_KEY=...
//	./unmonitarr
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/unmonitarr/unmonitarr/internal/actionlog"
	"github.com/unmonitarr/unmonitarr/internal/api"
	"github.com/unmonitarr/unmonitarr/internal/config"
	"github.com/unmonitarr/unmonitarr/internal/events"
	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/models"
	"github.com/unmonitarr/unmonitarr/internal/supervisor"
	"github.com/unmonitarr/unmonitarr/internal/supervisor/services"
	"github.com/unmonitarr/unmonitarr/internal/sync"
	ws "github.com/unmonitarr/unmonitarr/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("jellyfin_url", cfg.Jellyfin.URL).
		Bool("sonarr", cfg.Sonarr.Enabled).
		Bool("radarr", cfg.Radarr.Enabled).
		Bool("omdb", cfg.OMDB.Enabled).
		Str("store_path", cfg.Store.Path).
		Msg("starting unmonitarr")

	store, err := actionlog.Open(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open action log")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing action log")
		}
	}()

	media := sync.NewJellyfinClient(
		cfg.Jellyfin.URL,
		cfg.Jellyfin.APIKey,
		cfg.Jellyfin.UserID,
		cfg.Sync.BulkPageSize,
		cfg.Sync.RequestTimeout,
	)

	var clients []sync.DownstreamClient
	if cfg.Sonarr.Enabled {
		clients = append(clients, sync.NewSonarrClient(cfg.Sonarr.URL, cfg.Sonarr.APIKey, cfg.Sync.RequestTimeout))
		logging.Info().Str("url", cfg.Sonarr.URL).Msg("sonarr integration enabled")
	}
	if cfg.Radarr.Enabled {
		clients = append(clients, sync.NewRadarrClient(cfg.Radarr.URL, cfg.Radarr.APIKey, cfg.Sync.RequestTimeout))
		logging.Info().Str("url", cfg.Radarr.URL).Msg("radarr integration enabled")
	}

	var lookup sync.MetadataLookup
	if cfg.OMDB.Enabled {
		lookup = sync.NewOMDBClient(cfg.OMDB.URL, cfg.OMDB.APIKey, cfg.Sync.RequestTimeout)
		logging.Info().Msg("omdb title disambiguation enabled")
	}

	hub := ws.NewHub()

	engine := sync.NewEngine(cfg, media, clients, lookup, store, sync.EngineOptions{
		OnAction: func(action models.SyncAction) {
			hub.BroadcastSyncAction(action)
		},
		OnBulkProgress: func(job models.BulkJob) {
			hub.BroadcastBulkProgress(job)
		},
	})

	bus, err := events.NewBus(engine)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create event bus")
	}

	handler := api.NewHandler(cfg, engine, bus, store, hub)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler).Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(engine)
	tree.AddSyncService(bus)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("addr", httpServer.Addr).
		Msg("unmonitarr running")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree exited")
		os.Exit(1)
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop before timeout")
		}
	}

	logging.Info().Msg("unmonitarr stopped")
}
