// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

/*
sonarr_client.go - Sonarr v3 API client

Implements the DownstreamClient side of the engine for TV. Episode-level
monitoring goes through PUT /api/v3/episode/monitor; series-level through
the series editor endpoint.

API Reference: https://sonarr.tv/docs/api/
*/

package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

var _ DownstreamClient = (*SonarrClient)(nil)

type sonarrSeries struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	TVDBID    int64  `json:"tvdbId"`
	IMDBID    string `json:"imdbId,omitempty"`
	Monitored bool   `json:"monitored"`
}

type sonarrEpisode struct {
	ID            int64 `json:"id"`
	SeriesID      int64 `json:"seriesId"`
	SeasonNumber  int   `json:"seasonNumber"`
	EpisodeNumber int   `json:"episodeNumber"`
	Monitored     bool  `json:"monitored"`
}

// SonarrClient provides access to the Sonarr v3 API.
type SonarrClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[any]
}

// NewSonarrClient creates a Sonarr API client.
func NewSonarrClient(baseURL, apiKey string, timeout time.Duration) *SonarrClient {
	return &SonarrClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newServiceBreaker("sonarr"),
	}
}

// Service identifies this client as the series manager.
func (c *SonarrClient) Service() models.Service {
	return models.ServiceSonarr
}

// FindCandidates matches the metadata against the Sonarr library. A TVDB
// id match wins outright; otherwise series are matched by normalized
// title. Episode and season targets carry the covered episode record ids.
func (c *SonarrClient) FindCandidates(ctx context.Context, md models.ItemMetadata) ([]Candidate, error) {
	all, err := c.listSeries(ctx)
	if err != nil {
		return nil, err
	}

	matched := matchSeries(all, md)

	var candidates []Candidate
	for i := range matched {
		s := &matched[i]
		target := models.ResolvedTarget{
			Service:      models.ServiceSonarr,
			DownstreamID: s.ID,
			Kind:         md.Kind,
			Title:        s.Title,
			Season:       md.Season,
			Episode:      md.Episode,
		}

		if md.Kind != models.MediaKindSeries {
			episodes, err := c.listEpisodes(ctx, s.ID)
			if err != nil {
				return nil, err
			}
			target.EpisodeIDs = selectEpisodeIDs(episodes, md)
			if len(target.EpisodeIDs) == 0 {
				// Series matched by title but lacks the episode; not a
				// real candidate.
				continue
			}
		}

		candidates = append(candidates, Candidate{
			Target: target,
			Providers: models.ProviderIDs{
				TVDB: strconv.FormatInt(s.TVDBID, 10),
				IMDB: s.IMDBID,
			},
		})
	}
	return candidates, nil
}

// matchSeries returns the series matching the metadata. TVDB id matches
// are exact and exclusive; title matches may return several.
func matchSeries(all []sonarrSeries, md models.ItemMetadata) []sonarrSeries {
	if md.Providers.TVDB != "" {
		if tvdbID, err := strconv.ParseInt(md.Providers.TVDB, 10, 64); err == nil {
			for i := range all {
				if all[i].TVDBID == tvdbID {
					return all[i : i+1]
				}
			}
		}
	}

	title := md.SeriesTitle
	if title == "" {
		title = md.Title
	}

	var matched []sonarrSeries
	for i := range all {
		if !titlesMatch(all[i].Title, title) {
			continue
		}
		// Episode items carry the episode's year, not the show's; the
		// year filter only applies to series-level matches.
		if md.Kind == models.MediaKindSeries && !yearsClose(all[i].Year, md.Year) {
			continue
		}
		matched = append(matched, all[i])
	}
	return matched
}

// selectEpisodeIDs picks the episode records a target covers: one for an
// episode item, a season's worth for a season, everything for a series.
func selectEpisodeIDs(episodes []sonarrEpisode, md models.ItemMetadata) []int64 {
	var ids []int64
	for i := range episodes {
		ep := &episodes[i]
		switch md.Kind {
		case models.MediaKindEpisode:
			if ep.SeasonNumber == md.Season && ep.EpisodeNumber == md.Episode {
				ids = append(ids, ep.ID)
			}
		case models.MediaKindSeason:
			if ep.SeasonNumber == md.Season {
				ids = append(ids, ep.ID)
			}
		default:
			ids = append(ids, ep.ID)
		}
	}
	return ids
}

// GetMonitored reports the target's current monitored state. Episode and
// season targets are monitored only when every covered episode is.
func (c *SonarrClient) GetMonitored(ctx context.Context, target models.ResolvedTarget) (bool, error) {
	if target.Kind == models.MediaKindSeries {
		s, err := c.getSeries(ctx, target.DownstreamID)
		if err != nil {
			return false, err
		}
		return s.Monitored, nil
	}

	episodes, err := c.listEpisodes(ctx, target.DownstreamID)
	if err != nil {
		return false, err
	}
	byID := make(map[int64]bool, len(episodes))
	for i := range episodes {
		byID[episodes[i].ID] = episodes[i].Monitored
	}
	for _, id := range target.EpisodeIDs {
		monitored, ok := byID[id]
		if !ok {
			return false, fmt.Errorf("sonarr episode %d no longer exists in series %d", id, target.DownstreamID)
		}
		if !monitored {
			return false, nil
		}
	}
	return true, nil
}

// SetMonitored applies the monitored flag.
func (c *SonarrClient) SetMonitored(ctx context.Context, target models.ResolvedTarget, monitored bool) error {
	if target.Kind == models.MediaKindSeries {
		body := map[string]any{
			"seriesIds": []int64{target.DownstreamID},
			"monitored": monitored,
		}
		return c.send(ctx, http.MethodPut, "/api/v3/series/editor", body)
	}

	body := map[string]any{
		"episodeIds": target.EpisodeIDs,
		"monitored":  monitored,
	}
	err := c.send(ctx, http.MethodPut, "/api/v3/episode/monitor", body)
	if err == nil || IsTransient(err) {
		return err
	}
	// Older Sonarr builds lack the bulk endpoint. Update each episode
	// record instead.
	logging.Debug().Err(err).Msg("sonarr bulk episode monitor failed, updating episodes individually")
	return c.setEpisodesIndividually(ctx, target.EpisodeIDs, monitored)
}

func (c *SonarrClient) setEpisodesIndividually(ctx context.Context, episodeIDs []int64, monitored bool) error {
	for _, id := range episodeIDs {
		var episode map[string]any
		endpoint := fmt.Sprintf("/api/v3/episode/%d", id)
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &episode); err != nil {
			return err
		}
		episode["monitored"] = monitored
		if err := c.send(ctx, http.MethodPut, endpoint, episode); err != nil {
			return err
		}
	}
	return nil
}

func (c *SonarrClient) listSeries(ctx context.Context) ([]sonarrSeries, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var series []sonarrSeries
		if err := c.do(ctx, http.MethodGet, "/api/v3/series", nil, &series); err != nil {
			return nil, err
		}
		return &series, nil
	})
	typed, err := castResult[[]sonarrSeries](result, err)
	if err != nil {
		return nil, err
	}
	return *typed, nil
}

func (c *SonarrClient) getSeries(ctx context.Context, id int64) (*sonarrSeries, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var s sonarrSeries
		if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v3/series/%d", id), nil, &s); err != nil {
			return nil, err
		}
		return &s, nil
	})
	return castResult[sonarrSeries](result, err)
}

func (c *SonarrClient) listEpisodes(ctx context.Context, seriesID int64) ([]sonarrEpisode, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var episodes []sonarrEpisode
		endpoint := fmt.Sprintf("/api/v3/episode?seriesId=%d", seriesID)
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &episodes); err != nil {
			return nil, err
		}
		return &episodes, nil
	})
	typed, err := castResult[[]sonarrEpisode](result, err)
	if err != nil {
		return nil, err
	}
	return *typed, nil
}

func (c *SonarrClient) send(ctx context.Context, method, endpoint string, body any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, method, endpoint, body, nil)
	})
	return err
}

// do performs one HTTP exchange. Network failures are transient; response
// status classification is handled by statusError.
func (c *SonarrClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal sonarr request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("sonarr request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError("sonarr", endpoint, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode sonarr response: %w", err)
		}
	}
	return nil
}
