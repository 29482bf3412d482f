// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

// Package models defines the data structures shared across Unmonitarr:
// watch events produced by webhook intake, resolved downstream targets,
// durable sync actions, bulk job state, and the Jellyfin wire payloads
// they are derived from.
package models
