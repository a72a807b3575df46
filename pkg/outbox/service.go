// Package outbox records domain events in the same transaction as the writes
// that caused them. cmd/outbox-publisher relays the rows to Pub/Sub.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	"github.com/freshmarket/storefront-backend/pkg/logger"
)

// EnvelopeVersion is the newest envelope layout this build writes and can decode.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event. Nil for system transitions.
type ActorRef struct {
	CustomerID uuid.UUID `json:"customerId"`
	Role       string    `json:"role,omitempty"`
}

// Envelope is the JSON stored in outbox_events.payload and published as the
// message body.
type Envelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"eventId"`
	EventType  enums.OutboxEventType `json:"eventType"`
	OccurredAt time.Time             `json:"occurredAt"`
	Actor      *ActorRef             `json:"actor,omitempty"`
	Data       json.RawMessage       `json:"data"`
}

type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit records event inside tx so it commits or rolls back with the caller's writes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	row, envelope, err := event.toRow()
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx.WithContext(ctx), row); err != nil {
		return err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":     envelope.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox.queued")
	}
	return nil
}

func (e DomainEvent) toRow() (models.OutboxEvent, Envelope, error) {
	if !e.EventType.IsValid() {
		return models.OutboxEvent{}, Envelope{}, fmt.Errorf("unknown outbox event type %q", e.EventType)
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return models.OutboxEvent{}, Envelope{}, fmt.Errorf("encode %s data: %w", e.EventType, err)
	}

	// the row id doubles as the public event id so subscribers can dedupe on it
	id := uuid.New()
	envelope := Envelope{
		Version:    EnvelopeVersion,
		EventID:    id.String(),
		EventType:  e.EventType,
		OccurredAt: e.OccurredAt,
		Actor:      e.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, Envelope{}, err
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
		CreatedAt:     e.OccurredAt,
	}, envelope, nil
}
