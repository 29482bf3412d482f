// Unmonitarr - Jellyfin Watched-State to Sonarr/Radarr Monitoring Sync
// Copyright 2026 Unmonitarr contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmonitarr/unmonitarr

// Package events carries watched-state changes from the webhook handler
// to the reconciliation engine over an in-process watermill pub/sub. The
// router decouples HTTP request handling from event processing: the
// webhook returns immediately while delivery, panic recovery, and retry
// happen on the consumer side.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/unmonitarr/unmonitarr/internal/logging"
	"github.com/unmonitarr/unmonitarr/internal/models"
)

// TopicWatchEvents is the intake topic for watched-state changes.
const TopicWatchEvents = "watch.events"

// EventSink consumes decoded watch events. Implemented by the sync
// engine.
type EventSink interface {
	SubmitWatchEvent(event models.WatchEvent)
}

// Bus is the in-process event pipeline: a gochannel pub/sub plus a
// watermill router delivering watch events into the sink.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewBus builds the pipeline. The handler stack is Recoverer then
// exponential-backoff Retry; a message that keeps failing is dropped
// with an error log, since the upstream webhook is itself best-effort.
func NewBus(sink EventSink) (*Bus, error) {
	logger := NewLoggerAdapter()

	// Publishing blocks until the subscriber acks. Without it the
	// gochannel may deliver two events for the same item out of order,
	// letting a stale watched value win the debounce window. The handler
	// only hands the event to the debounce window, so the wait is a
	// channel handoff.
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 10 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	b := &Bus{
		pubsub: pubsub,
		router: router,
		logger: logger,
	}
	router.AddNoPublisherHandler(
		"watch-event-sink",
		TopicWatchEvents,
		pubsub,
		func(msg *message.Message) error {
			var event models.WatchEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				// Undecodable payloads can never succeed; ack and log
				// instead of retrying forever.
				logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable watch event")
				return nil
			}
			sink.SubmitWatchEvent(event)
			return nil
		},
	)

	return b, nil
}

// publishStartTimeout bounds how long a publish waits for the router to
// come up. The gochannel drops messages published before the subscriber
// exists, so an early webhook must not publish into the void.
const publishStartTimeout = 10 * time.Second

// PublishWatchEvent enqueues an event for the engine. Blocks until the
// router is consuming when called during startup.
func (b *Bus) PublishWatchEvent(event models.WatchEvent) error {
	select {
	case <-b.router.Running():
	case <-time.After(publishStartTimeout):
		return fmt.Errorf("event bus is not running")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal watch event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicWatchEvents, msg); err != nil {
		return fmt.Errorf("failed to publish watch event: %w", err)
	}
	return nil
}

// Serve implements suture.Service: it runs the router until the context
// is canceled, then closes the pub/sub.
func (b *Bus) Serve(ctx context.Context) error {
	defer func() {
		if err := b.pubsub.Close(); err != nil {
			logging.Warn().Err(err).Msg("event pubsub close failed")
		}
	}()

	if err := b.router.Run(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

func (b *Bus) String() string { return "event-bus" }

// Running returns a channel closed once the router is consuming.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}
