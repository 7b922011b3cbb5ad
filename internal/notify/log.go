package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/events"
)

// LogNotifier writes every domain event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements events.Notifier.
func (n LogNotifier) Notify(_ context.Context, event events.Event) error {
	n.Logger.Info().
		Str("event_id", event.ID).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID).
		Time("occurred_at", event.OccurredAt).
		Msg("domain_event")
	return nil
}
