// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

/*
jellyfin_client.go - Jellyfin REST API client

Implements the MediaServerClient side of the engine: item metadata for
resolution and library enumeration for bulk sync.

API Reference: https://api.jellyfin.org/
*/

package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// Ensure JellyfinClient implements MediaServerClient.
var _ MediaServerClient = (*JellyfinClient)(nil)

// JellyfinClient provides access to the Jellyfin REST API.
type JellyfinClient struct {
	baseURL    string
	apiKey     string
	userID     string // resolved lazily when empty
	pageSize   int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[any]
}

// NewJellyfinClient creates a Jellyfin API client.
//
// Parameters:
//   - baseURL: Jellyfin server URL (e.g., http://localhost:8096)
//   - apiKey: API key from Admin Dashboard > API Keys
//   - userID: optional user whose watched state bulk sync reads; when
//     empty the first user on the server is used
func NewJellyfinClient(baseURL, apiKey, userID string, pageSize int, timeout time.Duration) *JellyfinClient {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &JellyfinClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		userID:     userID,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newServiceBreaker("jellyfin"),
	}
}

// Ping verifies the server is reachable.
func (c *JellyfinClient) Ping(ctx context.Context) error {
	var info struct {
		Version string `json:"Version"`
	}
	return c.getJSON(ctx, "/System/Info/Public", nil, &info)
}

// GetItemMetadata fetches resolution metadata for one item.
func (c *JellyfinClient) GetItemMetadata(ctx context.Context, itemID string) (models.ItemMetadata, error) {
	userID, err := c.resolveUserID(ctx)
	if err != nil {
		return models.ItemMetadata{}, err
	}

	var item models.JellyfinItem
	endpoint := fmt.Sprintf("/Users/%s/Items/%s", url.PathEscape(userID), url.PathEscape(itemID))
	if err := c.getJSON(ctx, endpoint, nil, &item); err != nil {
		return models.ItemMetadata{}, fmt.Errorf("jellyfin item %s: %w", itemID, err)
	}
	return item.Metadata(), nil
}

// ListLibrary enumerates the library slice for bulk sync, paging through
// the Items endpoint.
func (c *JellyfinClient) ListLibrary(ctx context.Context, syncType models.BulkSyncType) ([]LibraryItem, error) {
	userID, err := c.resolveUserID(ctx)
	if err != nil {
		return nil, err
	}

	var itemTypes string
	switch syncType {
	case models.BulkSeries:
		itemTypes = "Episode"
	case models.BulkMovies:
		itemTypes = "Movie"
	default:
		itemTypes = "Movie,Episode"
	}

	var items []LibraryItem
	start := 0
	for {
		query := url.Values{
			"Recursive":        {"true"},
			"IncludeItemTypes": {itemTypes},
			"Fields":           {"ProviderIds,ProductionYear"},
			"StartIndex":       {strconv.Itoa(start)},
			"Limit":            {strconv.Itoa(c.pageSize)},
		}

		var page models.JellyfinItemsResponse
		endpoint := fmt.Sprintf("/Users/%s/Items", url.PathEscape(userID))
		if err := c.getJSON(ctx, endpoint, query, &page); err != nil {
			return nil, fmt.Errorf("jellyfin library page at %d: %w", start, err)
		}

		for i := range page.Items {
			it := &page.Items[i]
			watched := it.UserData != nil && it.UserData.Played
			items = append(items, LibraryItem{
				ID:       it.ID,
				Watched:  watched,
				Metadata: it.Metadata(),
			})
		}

		start += len(page.Items)
		if len(page.Items) == 0 || start >= page.TotalRecordCount {
			break
		}
	}

	logging.Debug().
		Str("component", "jellyfin").
		Str("sync_type", string(syncType)).
		Int("items", len(items)).
		Msg("library enumerated")
	return items, nil
}

// resolveUserID returns the configured user id, falling back to the first
// user on the server. The fallback is cached for the client's lifetime.
func (c *JellyfinClient) resolveUserID(ctx context.Context) (string, error) {
	if c.userID != "" {
		return c.userID, nil
	}

	var users []models.JellyfinUser
	if err := c.getJSON(ctx, "/Users", nil, &users); err != nil {
		return "", fmt.Errorf("jellyfin users: %w", err)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("jellyfin reported no users")
	}

	c.userID = users[0].ID
	logging.Info().
		Str("component", "jellyfin").
		Str("user", users[0].Name).
		Msg("no user configured, using first server user")
	return c.userID, nil
}

// getJSON performs a GET through the circuit breaker and decodes the
// response into out.
func (c *JellyfinClient) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		fullURL := c.baseURL + endpoint
		if len(query) > 0 {
			fullURL += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Emby-Token", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, Transient(fmt.Errorf("jellyfin request failed: %w", err))
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, statusError("jellyfin", endpoint, resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode jellyfin response: %w", err)
		}
		return nil, nil
	})
	return err
}
