// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package validation

import (
	"strings"
	"testing"
)

type bulkRequest struct {
	Type string `validate:"omitempty,oneof=all series movies"`
}

type retryRequest struct {
	Within string `validate:"required"`
	Limit  int    `validate:"min=1,max=100"`
}

func TestValidateStructPasses(t *testing.T) {
	cases := []bulkRequest{
		{Type: ""},
		{Type: "all"},
		{Type: "series"},
		{Type: "movies"},
	}
	for _, c := range cases {
		if err := ValidateStruct(&c); err != nil {
			t.Errorf("ValidateStruct(%+v) = %v, want nil", c, err)
		}
	}
}

func TestValidateStructOneOf(t *testing.T) {
	err := ValidateStruct(&bulkRequest{Type: "everything"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Fields) != 1 {
		t.Fatalf("Fields = %d, want 1", len(err.Fields))
	}
	f := err.Fields[0]
	if f.Field != "Type" || f.Tag != "oneof" {
		t.Errorf("field = %+v, want Type/oneof", f)
	}
	if !strings.Contains(f.Message, "must be one of") {
		t.Errorf("message = %q", f.Message)
	}
}

func TestValidateStructMultipleFailures(t *testing.T) {
	err := ValidateStruct(&retryRequest{Within: "", Limit: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Fields) != 2 {
		t.Fatalf("Fields = %d, want 2", len(err.Fields))
	}
	if !strings.Contains(err.Error(), "Within is required") {
		t.Errorf("Error() = %q, missing required message", err.Error())
	}

	details := err.Details()
	if _, ok := details["fields"]; !ok {
		t.Errorf("Details() = %v, want multi-field form", details)
	}
}

func TestDetailsSingleField(t *testing.T) {
	err := ValidateStruct(&retryRequest{Within: "24h", Limit: 500})
	if err == nil {
		t.Fatal("expected validation error")
	}
	details := err.Details()
	if details["field"] != "Limit" || details["tag"] != "max" {
		t.Errorf("Details() = %v", details)
	}
}
