// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package api

import (
	"net/http"
	"strings"
	"testing"

	gorilla "github.com/gorilla/websocket"

	"github.com/unmonitarr/unmonitarr/internal/config"
)

func wsURL(base string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/ws"
}

func TestWebSocketUpgrade(t *testing.T) {
	a := newTestAPI(t, nil)

	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL(a.srv.URL), nil)
	if err != nil {
		t.Fatalf("dial /ws: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want 101", resp.StatusCode)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	a := newTestAPI(t, func(cfg *config.Config) {
		cfg.Server.CORSOrigins = []string{"https://dashboard.example.com"}
	})

	headers := http.Header{"Origin": []string{"https://evil.example.com"}}
	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL(a.srv.URL), headers)
	if err == nil {
		conn.Close()
		t.Fatal("expected dial to fail for foreign origin")
	}
	if resp != nil && resp.StatusCode == http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want non-101", resp.StatusCode)
	}
}

func TestWebSocketAllowsConfiguredOrigin(t *testing.T) {
	a := newTestAPI(t, func(cfg *config.Config) {
		cfg.Server.CORSOrigins = []string{"https://dashboard.example.com"}
	})

	headers := http.Header{"Origin": []string{"https://dashboard.example.com"}}
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL(a.srv.URL), headers)
	if err != nil {
		t.Fatalf("dial /ws with allowed origin: %v", err)
	}
	conn.Close()
}
