// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package models

import "time"

// MediaKind identifies the unit of media an event or target refers to.
type MediaKind string

const (
	MediaKindMovie   MediaKind = "movie"
	MediaKindEpisode MediaKind = "episode"
	MediaKindSeason  MediaKind = "season"
	MediaKindSeries  MediaKind = "series"
)

// Service identifies a downstream media manager.
type Service string

const (
	ServiceSonarr Service = "sonarr"
	ServiceRadarr Service = "radarr"
)

// ActionType is the direction of a monitored-flag change.
type ActionType string

const (
	ActionMonitor   ActionType = "monitor"
	ActionUnmonitor ActionType = "unmonitor"
)

// ActionForWatched returns the monitored-flag direction implied by a watched
// state. An item is monitored iff it has not been watched.
func ActionForWatched(watched bool) ActionType {
	if watched {
		return ActionUnmonitor
	}
	return ActionMonitor
}

// Desired reports the monitored flag value this action drives toward.
func (a ActionType) Desired() bool {
	return a == ActionMonitor
}

// SyncStatus is the lifecycle state of a SyncAction.
// Pending -> Processing -> Completed | Failed; a Failed action may be
// re-submitted. Skipped is a terminal state of its own for items excluded
// from resolution (special episodes).
type SyncStatus string

const (
	StatusPending    SyncStatus = "pending"
	StatusProcessing SyncStatus = "processing"
	StatusCompleted  SyncStatus = "completed"
	StatusFailed     SyncStatus = "failed"
	StatusSkipped    SyncStatus = "skipped"
)

// IsTerminal reports whether the status admits no further transitions
// short of an explicit retry.
func (s SyncStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// ProviderIDs carries the external identifiers Jellyfin knows for an item.
type ProviderIDs struct {
	IMDB string `json:"imdb,omitempty"`
	TVDB string `json:"tvdb,omitempty"`
	TMDB string `json:"tmdb,omitempty"`
}

// Empty reports whether no provider identifier is present.
func (p ProviderIDs) Empty() bool {
	return p.IMDB == "" && p.TVDB == "" && p.TMDB == ""
}

// ItemMetadata describes a media-server item well enough to resolve it
// against a downstream library. Season and Episode are meaningful only
// when Kind is MediaKindEpisode; season 0 denotes specials.
type ItemMetadata struct {
	Title       string      `json:"title"`
	Year        int         `json:"year,omitempty"`
	Kind        MediaKind   `json:"kind"`
	SeriesTitle string      `json:"series_title,omitempty"`
	Season      int         `json:"season,omitempty"`
	Episode     int         `json:"episode,omitempty"`
	Providers   ProviderIDs `json:"providers,omitempty"`
}

// WatchEvent is a watched-state change reported by the media server.
// Ephemeral: it lives only inside the coalescing window and is never
// persisted.
type WatchEvent struct {
	ItemID     string       `json:"item_id"`
	Watched    bool         `json:"watched"`
	User       string       `json:"user,omitempty"`
	ObservedAt time.Time    `json:"observed_at"`
	Metadata   ItemMetadata `json:"metadata"`
}

// ResolvedTarget is a media-server item mapped to its counterpart entry in
// a downstream service. EpisodeIDs carries the downstream episode record
// ids covered by the target when Kind is episode, season, or series.
type ResolvedTarget struct {
	Service      Service   `json:"service"`
	DownstreamID int64     `json:"downstream_id"`
	Kind         MediaKind `json:"kind"`
	Title        string    `json:"title"`
	Season       int       `json:"season,omitempty"`
	Episode      int       `json:"episode,omitempty"`
	EpisodeIDs   []int64   `json:"episode_ids,omitempty"`
}

// SyncAction is the durable record of one dispatch attempt sequence.
// Owned exclusively by the dispatcher; mutated only through its state
// machine; never deleted.
type SyncAction struct {
	ID           uint64     `json:"id"`
	ItemID       string     `json:"item_id"`
	Action       ActionType `json:"action"`
	Service      Service    `json:"service,omitempty"`
	Status       SyncStatus `json:"status"`
	Title        string     `json:"title,omitempty"`
	Season       int        `json:"season,omitempty"`
	Episode      int        `json:"episode,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// BulkSyncType selects which library slice a bulk sync covers.
type BulkSyncType string

const (
	BulkAll    BulkSyncType = "all"
	BulkSeries BulkSyncType = "series"
	BulkMovies BulkSyncType = "movies"
)

// ParseBulkSyncType validates a sync type string. An empty string defaults
// to BulkAll.
func ParseBulkSyncType(s string) (BulkSyncType, bool) {
	switch BulkSyncType(s) {
	case "":
		return BulkAll, true
	case BulkAll, BulkSeries, BulkMovies:
		return BulkSyncType(s), true
	default:
		return "", false
	}
}

// BulkStatus is the lifecycle state of the process-wide bulk job.
type BulkStatus string

const (
	BulkIdle      BulkStatus = "idle"
	BulkRunning   BulkStatus = "running"
	BulkCompleted BulkStatus = "completed"
	BulkFailed    BulkStatus = "failed"
)

// BulkError records one per-item failure inside a bulk job.
type BulkError struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// BulkJob is a snapshot of the single-flight bulk sync job. At most one
// non-terminal BulkJob exists per process.
type BulkJob struct {
	ID          string       `json:"id"`
	SyncType    BulkSyncType `json:"sync_type"`
	Status      BulkStatus   `json:"status"`
	Total       int          `json:"total"`
	Processed   int          `json:"processed"`
	Synced      int          `json:"synced"`
	CurrentItem string       `json:"current_item,omitempty"`
	Errors      []BulkError  `json:"errors,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}
