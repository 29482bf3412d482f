// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// publishRaw injects an arbitrary payload onto the intake topic,
// bypassing marshalling.
func publishRaw(b *Bus, payload []byte) error {
	return b.pubsub.Publish(TopicWatchEvents, message.NewMessage(watermill.NewUUID(), payload))
}
