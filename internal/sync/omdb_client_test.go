// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOMDBLookup(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"apikey": r.URL.Query().Get("apikey"),
			"t":      r.URL.Query().Get("t"),
			"y":      r.URL.Query().Get("y"),
		}
		_, _ = w.Write([]byte(`{"Response":"True","imdbID":"tt1160419","Title":"Dune"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewOMDBClient(srv.URL, "omdb-key", 5*time.Second)
	ids, err := c.Lookup(context.Background(), "Dune", 2021)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if ids.IMDB != "tt1160419" {
		t.Errorf("imdb = %q, want tt1160419", ids.IMDB)
	}
	if gotQuery["apikey"] != "omdb-key" || gotQuery["t"] != "Dune" || gotQuery["y"] != "2021" {
		t.Errorf("query = %v", gotQuery)
	}
}

func TestOMDBLookupOmitsZeroYear(t *testing.T) {
	var hadYear bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hadYear = r.URL.Query().Has("y")
		_, _ = w.Write([]byte(`{"Response":"True","imdbID":"tt0113277"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewOMDBClient(srv.URL, "omdb-key", 5*time.Second)
	if _, err := c.Lookup(context.Background(), "Heat", 0); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if hadYear {
		t.Error("year parameter sent for an unknown year")
	}
}

func TestOMDBLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewOMDBClient(srv.URL, "omdb-key", 5*time.Second)
	_, err := c.Lookup(context.Background(), "Nonexistent", 0)
	if !errors.Is(err, ErrLookupNotFound) {
		t.Fatalf("Lookup() error = %v, want ErrLookupNotFound", err)
	}
}
