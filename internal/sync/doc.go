// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

/*
Package sync implements the reconciliation engine that keeps Sonarr and
Radarr monitoring flags consistent with Jellyfin watched state.

The flow is: webhook event -> Coalescer (per-item debounce) -> Dispatcher
-> {Resolver, RetryExecutor -> RateLimiter -> downstream client} -> action
log. The BulkOrchestrator enumerates the full library and drives the same
Dispatcher per item, bypassing the debounce window.

The rule applied throughout: an item is monitored iff it has not been
watched.
*/
package sync
