// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package models

import (
	"strings"
	"time"
)

// ============================================================================
// Jellyfin Webhook Plugin Payloads
// ============================================================================
// These structures match the flattened "Send All Properties" template of the
// Jellyfin Webhook plugin. Provider identifiers arrive as Provider_* fields,
// lowercased by the plugin.

// Webhook save reasons that represent a deliberate watched-state change.
// Other UserDataSaved reasons (resume position updates and the like) are
// noise and must be ignored.
const (
	SaveReasonTogglePlayed     = "TogglePlayed"
	SaveReasonPlaybackFinished = "PlaybackFinished"
)

// NotificationUserDataSaved is the NotificationType carrying watched-state
// changes.
const NotificationUserDataSaved = "UserDataSaved"

// JellyfinWebhookPayload is the inbound webhook body.
type JellyfinWebhookPayload struct {
	NotificationType string `json:"NotificationType"`
	SaveReason       string `json:"SaveReason,omitempty"`

	ItemID   string `json:"ItemId"`
	ItemType string `json:"ItemType"` // "Movie", "Episode", "Season", "Series"
	Name     string `json:"Name"`
	Year     int    `json:"Year,omitempty"`

	// Episode context
	SeriesName    string `json:"SeriesName,omitempty"`
	SeasonNumber  int    `json:"SeasonNumber,omitempty"`
	EpisodeNumber int    `json:"EpisodeNumber,omitempty"`

	Played bool `json:"Played"`

	UserID   string `json:"UserId,omitempty"`
	Username string `json:"NotificationUsername,omitempty"`

	ServerID   string `json:"ServerId,omitempty"`
	ServerName string `json:"ServerName,omitempty"`

	ProviderIMDB string `json:"Provider_imdb,omitempty"`
	ProviderTVDB string `json:"Provider_tvdb,omitempty"`
	ProviderTMDB string `json:"Provider_tmdb,omitempty"`
}

// IsWatchedStateChange reports whether the payload represents a deliberate
// watched/unwatched toggle rather than playback-progress noise.
func (p *JellyfinWebhookPayload) IsWatchedStateChange() bool {
	if p.NotificationType != NotificationUserDataSaved {
		return false
	}
	return p.SaveReason == SaveReasonTogglePlayed || p.SaveReason == SaveReasonPlaybackFinished
}

// Kind maps the Jellyfin ItemType to a MediaKind. The second return is
// false for item types the sync does not handle (audio, collections).
func (p *JellyfinWebhookPayload) Kind() (MediaKind, bool) {
	switch strings.ToLower(p.ItemType) {
	case "movie":
		return MediaKindMovie, true
	case "episode":
		return MediaKindEpisode, true
	case "season":
		return MediaKindSeason, true
	case "series":
		return MediaKindSeries, true
	default:
		return "", false
	}
}

// ToWatchEvent converts a webhook payload into the internal event form.
// Callers must check IsWatchedStateChange and Kind first.
func (p *JellyfinWebhookPayload) ToWatchEvent(now time.Time) WatchEvent {
	kind, _ := p.Kind()
	return WatchEvent{
		ItemID:     p.ItemID,
		Watched:    p.Played,
		User:       p.Username,
		ObservedAt: now,
		Metadata: ItemMetadata{
			Title:       p.Name,
			Year:        p.Year,
			Kind:        kind,
			SeriesTitle: p.SeriesName,
			Season:      p.SeasonNumber,
			Episode:     p.EpisodeNumber,
			Providers: ProviderIDs{
				IMDB: p.ProviderIMDB,
				TVDB: p.ProviderTVDB,
				TMDB: p.ProviderTMDB,
			},
		},
	}
}

// ============================================================================
// Jellyfin REST API Models
// ============================================================================
// Minimal slices of the /Users/{id}/Items responses used by bulk sync.

// JellyfinUser is one entry of the /Users response.
type JellyfinUser struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// JellyfinUserData carries the per-user playback state of an item.
type JellyfinUserData struct {
	Played    bool `json:"Played"`
	PlayCount int  `json:"PlayCount,omitempty"`
}

// JellyfinItem is one library entry from an Items query.
type JellyfinItem struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	ProductionYear    int               `json:"ProductionYear,omitempty"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	ParentIndexNumber *int              `json:"ParentIndexNumber,omitempty"`
	IndexNumber       *int              `json:"IndexNumber,omitempty"`
	ProviderIDs       map[string]string `json:"ProviderIds,omitempty"`
	UserData          *JellyfinUserData `json:"UserData,omitempty"`
}

// Metadata converts a library item into the resolver's metadata form.
func (it *JellyfinItem) Metadata() ItemMetadata {
	md := ItemMetadata{
		Title: it.Name,
		Year:  it.ProductionYear,
	}
	switch strings.ToLower(it.Type) {
	case "movie":
		md.Kind = MediaKindMovie
	case "episode":
		md.Kind = MediaKindEpisode
		md.SeriesTitle = it.SeriesName
		if it.ParentIndexNumber != nil {
			md.Season = *it.ParentIndexNumber
		}
		if it.IndexNumber != nil {
			md.Episode = *it.IndexNumber
		}
	case "series":
		md.Kind = MediaKindSeries
	case "season":
		md.Kind = MediaKindSeason
		md.SeriesTitle = it.SeriesName
		if it.IndexNumber != nil {
			md.Season = *it.IndexNumber
		}
	}
	for k, v := range it.ProviderIDs {
		switch strings.ToLower(k) {
		case "imdb":
			md.Providers.IMDB = v
		case "tvdb":
			md.Providers.TVDB = v
		case "tmdb":
			md.Providers.TMDB = v
		}
	}
	return md
}

// JellyfinItemsResponse is the paged wrapper of an Items query.
type JellyfinItemsResponse struct {
	Items            []JellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
}
