// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

/*
Package websocket pushes live sync activity to connected frontends.

The package implements a hub-and-spoke pattern over gorilla/websocket.
The hub owns the client set and fans messages out; each client runs a
read pump (handles pings) and a write pump (delivers messages, sends
keepalives).

Message types:

  - sync_action: a sync action changed state (processing, completed,
    failed, skipped)
  - bulk_progress: a bulk job snapshot (totals, synced count, current
    item)
  - ping / pong: client-driven keepalive

Broadcasts are best-effort. A slow client whose send buffer fills up is
disconnected rather than allowed to stall the hub, and a full broadcast
queue drops the update; clients recover state from the REST API on
reconnect.
*/
package websocket
