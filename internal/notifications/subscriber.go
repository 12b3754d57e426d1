package notifications

import (
	"context"
	"log/slog"
	"time"

	"berth/internal/events"
	"berth/internal/logging"
	"berth/internal/queue"
)

const sendTimeout = 15 * time.Second

// Attach subscribes the service to the event bus so queue lifecycle events
// turn into push notifications. Send failures are logged, never propagated;
// the queue must keep moving when ntfy is down.
func Attach(bus *events.Bus, service Service, logger *slog.Logger) func() {
	log := logging.NewComponentLogger(logger, "notifications")
	return bus.Subscribe(func(event events.Event) {
		if event.Item == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		var err error
		switch event.Type {
		case events.TypeAdded:
			err = service.NotifyGrabbed(ctx, event.Item.Title, event.Item.ClientID)
		case events.TypeImported:
			err = service.NotifyImported(ctx, event.Item.Title, event.Item.ImportedPath, event.Item.SizeBytes)
			if err == nil && queueDrained(event.Stats) {
				err = service.NotifyQueueDrained(ctx)
			}
		case events.TypeFailed:
			err = service.NotifyImportFailed(ctx, event.Item.Title, event.Message)
		case events.TypeRemoved:
			err = service.NotifyDownloadRemoved(ctx, event.Item.Title, event.Message)
		default:
			return
		}
		if err != nil {
			log.Warn("send notification",
				logging.String(logging.FieldEventType, string(event.Type)),
				logging.Error(err))
		}
	})
}

// queueDrained reports whether the snapshot leaves no work in flight:
// every remaining row is imported, removed, failed, or merely held for
// seeding retention.
func queueDrained(stats queue.Stats) bool {
	for status, count := range stats.ByStatus {
		if count == 0 {
			continue
		}
		switch status {
		case queue.StatusImported, queue.StatusRemoved, queue.StatusFailed, queue.StatusSeedingImported:
			continue
		default:
			return false
		}
	}
	return true
}
