// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package sync

import "strings"

// normalizeTitle reduces a title to lowercase letters and digits so that
// punctuation, spacing, and case differences between Jellyfin and the
// downstream library do not break matching ("Spider-Man" == "spider man").
func normalizeTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// titlesMatch compares two titles after normalization.
func titlesMatch(a, b string) bool {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	return na != "" && na == nb
}

// yearsClose accepts a one-year difference to absorb regional release-date
// disagreements between metadata sources. Unknown years match anything.
func yearsClose(a, b int) bool {
	if a == 0 || b == 0 {
		return true
	}
	diff := a - b
	return diff >= -1 && diff <= 1
}
