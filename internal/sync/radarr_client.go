// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

/*
radarr_client.go - Radarr v3 API client

Implements the DownstreamClient side of the engine for movies. Monitored
flags are applied through the movie editor endpoint so no full movie
resource round-trips.

API Reference: https://radarr.video/docs/api/
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

	"github.com/unmonitarr/unmonitarr/internal/models"
)

var _ DownstreamClient = (*RadarrClient)(nil)

type radarrMovie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	TMDBID    int64  `json:"tmdbId"`
	IMDBID    string `json:"imdbId,omitempty"`
	Monitored bool   `json:"monitored"`
}

// RadarrClient provides access to the Radarr v3 API.
type RadarrClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[any]
}

// NewRadarrClient creates a Radarr API client.
func NewRadarrClient(baseURL, apiKey string, timeout time.Duration) *RadarrClient {
	return &RadarrClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newServiceBreaker("radarr"),
	}
}

// Service identifies this client as the movie manager.
func (c *RadarrClient) Service() models.Service {
	return models.ServiceRadarr
}

// FindCandidates matches the metadata against the Radarr library. A TMDB
// or IMDB id match wins outright; otherwise movies are matched by
// normalized title with the year filter applied when both sides know it.
func (c *RadarrClient) FindCandidates(ctx context.Context, md models.ItemMetadata) ([]Candidate, error) {
	movies, err := c.listMovies(ctx)
	if err != nil {
		return nil, err
	}

	matched := matchMovies(movies, md)

	candidates := make([]Candidate, 0, len(matched))
	for i := range matched {
		m := &matched[i]
		candidates = append(candidates, Candidate{
			Target: models.ResolvedTarget{
				Service:      models.ServiceRadarr,
				DownstreamID: m.ID,
				Kind:         models.MediaKindMovie,
				Title:        m.Title,
			},
			Providers: models.ProviderIDs{
				TMDB: strconv.FormatInt(m.TMDBID, 10),
				IMDB: m.IMDBID,
			},
		})
	}
	return candidates, nil
}

func matchMovies(movies []radarrMovie, md models.ItemMetadata) []radarrMovie {
	if md.Providers.TMDB != "" {
		if tmdbID, err := strconv.ParseInt(md.Providers.TMDB, 10, 64); err == nil {
			for i := range movies {
				if movies[i].TMDBID == tmdbID {
					return movies[i : i+1]
				}
			}
		}
	}
	if md.Providers.IMDB != "" {
		for i := range movies {
			if movies[i].IMDBID != "" && movies[i].IMDBID == md.Providers.IMDB {
				return movies[i : i+1]
			}
		}
	}

	var matched []radarrMovie
	for i := range movies {
		if titlesMatch(movies[i].Title, md.Title) && yearsClose(movies[i].Year, md.Year) {
			matched = append(matched, movies[i])
		}
	}
	return matched
}

// GetMonitored reports the movie's current monitored state.
func (c *RadarrClient) GetMonitored(ctx context.Context, target models.ResolvedTarget) (bool, error) {
	m, err := c.getMovie(ctx, target.DownstreamID)
	if err != nil {
		return false, err
	}
	return m.Monitored, nil
}

// SetMonitored applies the monitored flag through the movie editor.
func (c *RadarrClient) SetMonitored(ctx context.Context, target models.ResolvedTarget, monitored bool) error {
	body := map[string]any{
		"movieIds":  []int64{target.DownstreamID},
		"monitored": monitored,
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, http.MethodPut, "/api/v3/movie/editor", body, nil)
	})
	return err
}

func (c *RadarrClient) listMovies(ctx context.Context) ([]radarrMovie, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var movies []radarrMovie
		if err := c.do(ctx, http.MethodGet, "/api/v3/movie", nil, &movies); err != nil {
			return nil, err
		}
		return &movies, nil
	})
	typed, err := castResult[[]radarrMovie](result, err)
	if err != nil {
		return nil, err
	}
	return *typed, nil
}

func (c *RadarrClient) getMovie(ctx context.Context, id int64) (*radarrMovie, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var m radarrMovie
		if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v3/movie/%d", id), nil, &m); err != nil {
			return nil, err
		}
		return &m, nil
	})
	return castResult[radarrMovie](result, err)
}

func (c *RadarrClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal radarr request: %w", err)
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
		return Transient(fmt.Errorf("radarr request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError("radarr", endpoint, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode radarr response: %w", err)
		}
	}
	return nil
}
