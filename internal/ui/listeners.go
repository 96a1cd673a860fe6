package ui

import (
	"context"
	"log/slog"

	"github.com/skobkin/macsniff/internal/bus"
	"github.com/skobkin/macsniff/internal/events"
)

var appLogger = slog.With("component", "ui")

var logTopics = []string{
	events.TopicPhase,
	events.TopicButton,
	events.TopicScanStatus,
	events.TopicScanFinished,
	events.TopicStorageSaved,
	events.TopicStorageSpace,
	events.TopicDumpLine,
	events.TopicDumpFinished,
	events.TopicDeviceFailure,
}

// listenBus forwards device events to onEvent until ctx ends or the bus closes.
func listenBus(ctx context.Context, messageBus bus.MessageBus, onEvent func(any)) error {
	if messageBus == nil {
		appLogger.Debug("skipping UI event listener: message bus is nil")
		return nil
	}

	sub := messageBus.Subscribe(logTopics...)
	appLogger.Debug("subscribed to UI bus topics", "topics", logTopics)

	for {
		select {
		case <-ctx.Done():
			// Drain so the publisher is never stuck on a full subscription
			// while the unsubscribe command is queued. The bus must still be open.
			go func() {
				for range sub {
				}
			}()
			messageBus.Unsubscribe(sub)
			return nil
		case raw, ok := <-sub:
			if !ok {
				appLogger.Debug("UI bus subscription closed")
				return nil
			}
			if onEvent != nil {
				onEvent(raw)
			}
		}
	}
}
