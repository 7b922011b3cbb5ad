package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event emitted after a ledger change commits.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Recorder durably records emitted events (e.g. a redis stream).
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Notifier reacts to emitted events (e.g. email, logging, etc.).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Emitter is implemented by Bus; services depend on it.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error)
}

// Bus records domain events and fans them out to downstream handlers.
type Bus struct {
	Recorder  Recorder
	Notifiers []Notifier
	Now       func() time.Time
}

var _ Emitter = (*Bus)(nil)

// Emit records the event, then hands it to every notifier in order. Failures
// are joined into the returned error and never stop the fan-out; callers get
// the event either way since the ledger change has already committed.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if b == nil {
		return Event{}, errors.New("events: bus not configured")
	}
	ev, err := b.build(topic, aggregateID, payload)
	if err != nil {
		return Event{}, err
	}

	var errs []error
	if b.Recorder != nil {
		if err := b.Recorder.Record(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("events: record %s: %w", ev.Topic, err))
		}
	}
	for _, n := range b.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("events: notify %s: %w", ev.Topic, err))
		}
	}
	return ev, errors.Join(errs...)
}

func (b *Bus) build(topic, aggregateID string, payload any) (Event, error) {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return Event{}, errors.New("events: topic is required")
	case strings.TrimSpace(aggregateID) == "":
		return Event{}, errors.New("events: aggregate id is required")
	}
	body, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     body,
		OccurredAt:  now().UTC(),
	}, nil
}

// encodePayload accepts pre-encoded JSON ([]byte, json.RawMessage, string) or
// any value json.Marshal can handle. Empty input becomes {}.
func encodePayload(payload any) (json.RawMessage, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(strings.TrimSpace(v))
	default:
		return json.Marshal(v)
	}
	if len(raw) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid json")
	}
	return slices.Clone(raw), nil
}
