package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/freshmarket/storefront-backend/pkg/config"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	"github.com/freshmarket/storefront-backend/pkg/outbox"
	"github.com/freshmarket/storefront-backend/pkg/outbox/payloads"
)

func TestResolveOrderCreated(t *testing.T) {
	reg := newTestRegistry(t)
	orderID, productID := uuid.New(), uuid.New()

	resolved, err := reg.Resolve(orderRow(t, enums.EventOrderCreated, orderID, envelope(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{
		OrderID:     orderID,
		Phone:       "0812345678",
		Subtotal:    decimal.NewFromInt(600),
		TotalAmount: decimal.NewFromInt(580),
		Items:       []payloads.OrderLine{{ProductID: productID, Name: "Tomato", Quantity: 3, Price: decimal.NewFromInt(200)}},
	})))
	require.NoError(t, err)
	require.Equal(t, "orders-topic", resolved.Descriptor.Topic)

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	require.Equal(t, orderID, payload.OrderID)
	require.Len(t, payload.Items, 1)
	require.Equal(t, productID, payload.Items[0].ProductID)
	require.True(t, payload.TotalAmount.Equal(decimal.NewFromInt(580)))
	require.NotEmpty(t, resolved.Envelope.EventID)
}

func TestResolveEveryOrderEvent(t *testing.T) {
	reg := newTestRegistry(t)
	cases := map[enums.OutboxEventType]any{
		enums.EventOrderCanceled: payloads.OrderCanceledEvent{OrderID: uuid.New(), CanceledAt: time.Now().UTC()},
		enums.EventOrderStatusChanged: payloads.OrderStatusChangedEvent{
			OrderID: uuid.New(),
			From:    enums.OrderStatusPending,
			To:      enums.OrderStatusProcessing,
		},
	}
	for eventType, payload := range cases {
		resolved, err := reg.Resolve(orderRow(t, eventType, uuid.New(), envelope(t, eventType, payload)))
		require.NoError(t, err, eventType)
		require.Equal(t, eventType, resolved.Descriptor.EventType)
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestRegistry(t)
	good := envelope(t, enums.EventOrderCreated, map[string]any{"orderId": uuid.NewString()})

	unknown := orderRow(t, "order_refunded", uuid.New(), good)
	wrongAggregate := orderRow(t, enums.EventOrderCreated, uuid.New(), good)
	wrongAggregate.AggregateType = "cart"
	noAggregate := orderRow(t, enums.EventOrderCreated, uuid.Nil, good)
	nullData := orderRow(t, enums.EventOrderCreated, uuid.New(), rawEnvelope(t, outbox.Envelope{Version: 1, Data: json.RawMessage("null")}))
	future := orderRow(t, enums.EventOrderCreated, uuid.New(), rawEnvelope(t, outbox.Envelope{Version: outbox.EnvelopeVersion + 1, Data: json.RawMessage(`{}`)}))
	mislabelled := orderRow(t, enums.EventOrderCreated, uuid.New(), envelope(t, enums.EventOrderCanceled, map[string]any{}))
	garbage := orderRow(t, enums.EventOrderCreated, uuid.New(), json.RawMessage(`{"version":`))

	for name, row := range map[string]models.OutboxEvent{
		"unknown":         unknown,
		"wrong aggregate": wrongAggregate,
		"no aggregate id": noAggregate,
		"null data":       nullData,
		"future version":  future,
		"mislabelled":     mislabelled,
		"garbage":         garbage,
	} {
		_, err := reg.Resolve(row)
		var nonRetry NonRetryableError
		require.True(t, errors.As(err, &nonRetry), "%s: expected non-retryable, got %v", name, err)
	}

	_, err := reg.Resolve(unknown)
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestNewEventRegistryRequiresOrdersTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	require.NoError(t, err)
	return reg
}

func orderRow(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID, payload json.RawMessage) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   aggregateID,
		Payload:       payload,
	}
}

func envelope(t *testing.T, eventType enums.OutboxEventType, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return rawEnvelope(t, outbox.Envelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
}

func rawEnvelope(t *testing.T, env outbox.Envelope) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}
