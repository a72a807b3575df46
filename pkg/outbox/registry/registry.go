// Package registry decodes outbox rows into typed order events and decides
// which Pub/Sub topic each one goes to.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/freshmarket/storefront-backend/pkg/config"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	"github.com/freshmarket/storefront-backend/pkg/outbox"
	"github.com/freshmarket/storefront-backend/pkg/outbox/payloads"
)

// ErrUnknownEvent marks rows whose event_type has no descriptor.
var ErrUnknownEvent = errors.New("unsupported event type")

// NonRetryableError tells the relay to dead-letter a row instead of retrying it.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

func orderEvent[T any](eventType enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		Topic:         topic,
		newPayload:    func() any { return new(T) },
	}
}

// ResolvedEvent is a validated outbox row with its decoded payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.Envelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every order event to the orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.OrdersTopic
	if topic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, desc := range []EventDescriptor{
		orderEvent[payloads.OrderCreatedEvent](enums.EventOrderCreated, topic),
		orderEvent[payloads.OrderCanceledEvent](enums.EventOrderCanceled, topic),
		orderEvent[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, topic),
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve validates the row against its descriptor and decodes the payload.
// Every failure is non-retryable: a bad row does not get better on retry.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[row.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("%w %s", ErrUnknownEvent, row.EventType))
	}
	if desc.AggregateType != row.AggregateType {
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, row.AggregateType)
	}
	if row.AggregateID == uuid.Nil {
		return nil, permanent("missing aggregate_id")
	}

	var env outbox.Envelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	switch {
	case env.Version > outbox.EnvelopeVersion:
		return nil, permanent("envelope version %d is newer than %d", env.Version, outbox.EnvelopeVersion)
	case env.EventType != "" && env.EventType != row.EventType:
		return nil, permanent("envelope type %s does not match row type %s", env.EventType, row.EventType)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", row.EventType)
	}
	payload := desc.newPayload()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", row.EventType, err)
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
