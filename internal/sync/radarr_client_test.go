// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/unmonitarr/unmonitarr/internal/models"
)

func TestMatchMovies(t *testing.T) {
	library := []radarrMovie{
		{ID: 1, Title: "Dune", Year: 1984, TMDBID: 841, IMDBID: "tt0087182"},
		{ID: 2, Title: "Dune", Year: 2021, TMDBID: 438631, IMDBID: "tt1160419"},
		{ID: 3, Title: "Heat", Year: 1995, TMDBID: 949, IMDBID: "tt0113277"},
	}

	tests := []struct {
		name    string
		md      models.ItemMetadata
		wantIDs []int64
	}{
		{
			name:    "tmdb id wins outright",
			md:      models.ItemMetadata{Title: "Dune", Providers: models.ProviderIDs{TMDB: "438631"}},
			wantIDs: []int64{2},
		},
		{
			name:    "imdb id second",
			md:      models.ItemMetadata{Title: "Dune", Providers: models.ProviderIDs{IMDB: "tt0087182"}},
			wantIDs: []int64{1},
		},
		{
			name:    "title plus year",
			md:      models.ItemMetadata{Title: "Dune", Year: 2021},
			wantIDs: []int64{2},
		},
		{
			name:    "year within one",
			md:      models.ItemMetadata{Title: "Heat", Year: 1996},
			wantIDs: []int64{3},
		},
		{
			name:    "year too far off",
			md:      models.ItemMetadata{Title: "Heat", Year: 2001},
			wantIDs: nil,
		},
		{
			name:    "no year matches all namesakes",
			md:      models.ItemMetadata{Title: "Dune"},
			wantIDs: []int64{1, 2},
		},
		{
			name:    "unknown provider id falls back to title",
			md:      models.ItemMetadata{Title: "Heat", Year: 1995, Providers: models.ProviderIDs{TMDB: "999999"}},
			wantIDs: []int64{3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched := matchMovies(library, tt.md)
			var ids []int64
			for i := range matched {
				ids = append(ids, matched[i].ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("matched ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func newRadarrTestServer(t *testing.T) (*httptest.Server, *struct{ body map[string]any }) {
	t.Helper()
	captured := &struct{ body map[string]any }{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/movie", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]radarrMovie{
			{ID: 10, Title: "Heat", Year: 1995, TMDBID: 949, IMDBID: "tt0113277", Monitored: true},
		})
	})
	mux.HandleFunc("/api/v3/movie/10", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(radarrMovie{ID: 10, Title: "Heat", Monitored: true})
	})
	mux.HandleFunc("/api/v3/movie/editor", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured.body)
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestRadarrFindCandidates(t *testing.T) {
	srv, _ := newRadarrTestServer(t)
	c := NewRadarrClient(srv.URL, "test-key", 5*time.Second)

	candidates, err := c.FindCandidates(context.Background(), models.ItemMetadata{
		Title: "Heat",
		Year:  1995,
		Kind:  models.MediaKindMovie,
	})
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].Target.DownstreamID != 10 {
		t.Errorf("movie id = %d, want 10", candidates[0].Target.DownstreamID)
	}
	if candidates[0].Providers.IMDB != "tt0113277" {
		t.Errorf("imdb id = %q, want tt0113277", candidates[0].Providers.IMDB)
	}
}

func TestRadarrGetMonitored(t *testing.T) {
	srv, _ := newRadarrTestServer(t)
	c := NewRadarrClient(srv.URL, "test-key", 5*time.Second)

	monitored, err := c.GetMonitored(context.Background(), models.ResolvedTarget{
		Service:      models.ServiceRadarr,
		DownstreamID: 10,
		Kind:         models.MediaKindMovie,
	})
	if err != nil {
		t.Fatalf("GetMonitored() error = %v", err)
	}
	if !monitored {
		t.Error("GetMonitored() = false, want true")
	}
}

func TestRadarrSetMonitoredUsesEditor(t *testing.T) {
	srv, captured := newRadarrTestServer(t)
	c := NewRadarrClient(srv.URL, "test-key", 5*time.Second)

	err := c.SetMonitored(context.Background(), models.ResolvedTarget{
		Service:      models.ServiceRadarr,
		DownstreamID: 10,
		Kind:         models.MediaKindMovie,
	}, false)
	if err != nil {
		t.Fatalf("SetMonitored() error = %v", err)
	}

	if got := captured.body["monitored"]; got != false {
		t.Errorf("monitored = %v, want false", got)
	}
	ids, ok := captured.body["movieIds"].([]any)
	if !ok || len(ids) != 1 {
		t.Fatalf("movieIds = %v, want one id", captured.body["movieIds"])
	}
}

func TestRadarrServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewRadarrClient(srv.URL, "test-key", 5*time.Second)

	_, err := c.FindCandidates(context.Background(), models.ItemMetadata{Title: "Heat", Kind: models.MediaKindMovie})
	if err == nil {
		t.Fatal("FindCandidates() = nil on 502")
	}
	if !IsTransient(err) {
		t.Error("502 not classified as transient")
	}
}
