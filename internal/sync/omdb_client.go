// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/unmonitarr/unmonitarr/internal/models"
)

var _ MetadataLookup = (*OMDBClient)(nil)

// OMDBClient queries the OMDb API for external identifiers. The resolver
// uses it only to break ties between identically titled candidates.
type OMDBClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOMDBClient creates an OMDb lookup client.
func NewOMDBClient(baseURL, apiKey string, timeout time.Duration) *OMDBClient {
	return &OMDBClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Lookup returns the IMDB id for a title, or ErrLookupNotFound.
func (c *OMDBClient) Lookup(ctx context.Context, title string, year int) (models.ProviderIDs, error) {
	query := url.Values{
		"apikey": {c.apiKey},
		"t":      {title},
	}
	if year > 0 {
		query.Set("y", strconv.Itoa(year))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+query.Encode(), http.NoBody)
	if err != nil {
		return models.ProviderIDs{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ProviderIDs{}, Transient(fmt.Errorf("omdb request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return models.ProviderIDs{}, statusError("omdb", "lookup", resp.StatusCode, "")
	}

	var body struct {
		Response string `json:"Response"`
		Error    string `json:"Error,omitempty"`
		IMDBID   string `json:"imdbID,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.ProviderIDs{}, fmt.Errorf("failed to decode omdb response: %w", err)
	}

	if body.Response != "True" || body.IMDBID == "" {
		return models.ProviderIDs{}, fmt.Errorf("omdb: %s: %w", body.Error, ErrLookupNotFound)
	}
	return models.ProviderIDs{IMDB: body.IMDBID}, nil
}
