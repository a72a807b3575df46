package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/pkg/config"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	"github.com/freshmarket/storefront-backend/pkg/logger"
	"github.com/freshmarket/storefront-backend/pkg/metrics"
	"github.com/freshmarket/storefront-backend/pkg/outbox"
	"github.com/freshmarket/storefront-backend/pkg/outbox/registry"
)

func TestDrainOnceRetriesFailureAndPublishesRest(t *testing.T) {
	store := &fakeEventStore{rows: []models.OutboxEvent{
		orderRow(t, 0),
		orderRow(t, 0),
	}}
	topic := &fakeTopic{results: []publishResult{
		fakeResult{err: errors.New("transient")},
		fakeResult{},
	}}
	relay, _ := newTestRelay(t, store, topic, &fakeResolver{topic: "orders"}, &fakeDeadLetters{}, config.OutboxConfig{BatchSize: 2, MaxAttempts: 5})

	touched, err := relay.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if touched != 2 {
		t.Fatalf("expected 2 rows touched, got %d", touched)
	}
	if len(store.failed) != 1 || store.failed[0] != store.rows[0].ID {
		t.Fatalf("expected first row marked failed, got %v", store.failed)
	}
	if len(store.published) != 1 || store.published[0] != store.rows[1].ID {
		t.Fatalf("expected second row published, got %v", store.published)
	}
	if len(store.terminal) != 0 {
		t.Fatalf("expected no terminal rows")
	}
}

func TestDrainOnceSetsMessageAttributes(t *testing.T) {
	row := orderRow(t, 0)
	topic := &fakeTopic{results: []publishResult{fakeResult{}}}
	relay, _ := newTestRelay(t, &fakeEventStore{rows: []models.OutboxEvent{row}}, topic, &fakeResolver{topic: "orders"}, &fakeDeadLetters{}, config.OutboxConfig{})

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(topic.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(topic.messages))
	}
	msg := topic.messages[0]
	if !bytes.Equal(msg.Data, row.Payload) {
		t.Fatalf("payload mismatch")
	}
	if msg.Attributes["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["aggregate_id"] != row.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id %q", msg.Attributes["aggregate_id"])
	}
}

func TestDrainOnceDeadLettersNonRetryable(t *testing.T) {
	row := orderRow(t, 0)
	store := &fakeEventStore{rows: []models.OutboxEvent{row}}
	dlq := &fakeDeadLetters{}
	resolver := &fakeResolver{err: registry.NewNonRetryableError(errors.New("bad payload"))}
	relay, reg := newTestRelay(t, store, &fakeTopic{}, resolver, dlq, config.OutboxConfig{})

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != row.ID || !bytes.Equal(entry.Payload, row.Payload) {
		t.Fatalf("dlq entry does not match row")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected reason %s", entry.ErrorReason)
	}
	if len(store.terminal) != 1 {
		t.Fatalf("expected row marked terminal")
	}
	if got := deadLettered(t, reg, string(enums.OutboxDLQReasonNonRetryable)); got != 1 {
		t.Fatalf("expected dead letter metric 1, got %v", got)
	}
}

func TestDrainOnceDeadLettersUnknownEvent(t *testing.T) {
	row := orderRow(t, 0)
	dlq := &fakeDeadLetters{}
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	row.EventType = "inventory_adjusted"
	relay, _ := newTestRelay(t, &fakeEventStore{rows: []models.OutboxEvent{row}}, &fakeTopic{}, reg, dlq, config.OutboxConfig{})

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonUnknownEvent {
		t.Fatalf("expected unknown_event dlq entry, got %+v", dlq.entries)
	}
}

func TestDrainOnceDeadLettersAtMaxAttempts(t *testing.T) {
	row := orderRow(t, 1)
	store := &fakeEventStore{rows: []models.OutboxEvent{row}}
	topic := &fakeTopic{results: []publishResult{fakeResult{err: errors.New("transient")}}}
	dlq := &fakeDeadLetters{}
	relay, _ := newTestRelay(t, store, topic, &fakeResolver{topic: "orders"}, dlq, config.OutboxConfig{MaxAttempts: 2})

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts dlq entry, got %+v", dlq.entries)
	}
	if len(store.failed) != 0 {
		t.Fatalf("terminal row should not be marked failed")
	}
}

func TestDrainOnceMissingPublisherIsTerminal(t *testing.T) {
	dlq := &fakeDeadLetters{}
	relay, _ := newTestRelay(t, &fakeEventStore{rows: []models.OutboxEvent{orderRow(t, 0)}}, nil, &fakeResolver{topic: "orders"}, dlq, config.OutboxConfig{})

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non_retryable dlq entry, got %+v", dlq.entries)
	}
}

func TestDrainOnceFetchErrorPropagates(t *testing.T) {
	store := &fakeEventStore{fetchErr: errors.New("db down")}
	relay, _ := newTestRelay(t, store, &fakeTopic{}, &fakeResolver{topic: "orders"}, &fakeDeadLetters{}, config.OutboxConfig{})

	if _, err := relay.drainOnce(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestNewRelayDefaults(t *testing.T) {
	relay, _ := newTestRelay(t, &fakeEventStore{}, &fakeTopic{}, &fakeResolver{}, &fakeDeadLetters{}, config.OutboxConfig{})
	if relay.batchSize != defaultBatchSize || relay.maxAttempts != defaultMaxAttempts {
		t.Fatalf("unexpected defaults batch=%d attempts=%d", relay.batchSize, relay.maxAttempts)
	}
	if relay.interval != time.Duration(defaultPollMs)*time.Millisecond {
		t.Fatalf("unexpected interval %s", relay.interval)
	}

	if _, err := NewRelay(RelayParams{}); err == nil {
		t.Fatalf("expected error for empty params")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	relay, _ := newTestRelay(t, &fakeEventStore{}, &fakeTopic{}, &fakeResolver{}, &fakeDeadLetters{}, config.OutboxConfig{PollIntervalMS: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := relay.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func newTestRelay(t *testing.T, store eventStore, topic *fakeTopic, resolver eventResolver, dlq deadLetterStore, cfg config.OutboxConfig) (*Relay, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewOutboxMetrics(reg)
	relay, err := NewRelay(RelayParams{
		Outbox:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakePubSub{},
		Events:     store,
		DeadLetter: dlq,
		Registry:   resolver,
		Metrics:    m,
		Lookup: func(string) topicPublisher {
			if topic == nil {
				return nil
			}
			return topic
		},
		Instance: "test",
	})
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	return relay, reg
}

func deadLettered(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "outbox_dead_lettered_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m, "reason", reason) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func orderRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	data, err := json.Marshal(outbox.Envelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"orderId":"x"}`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       data,
		AttemptCount:  attempts,
	}
}

type fakeEventStore struct {
	rows      []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeEventStore) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.rows, f.fetchErr
}

func (f *fakeEventStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeEventStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeEventStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDeadLetters struct {
	entries []models.OutboxDLQ
}

func (f *fakeDeadLetters) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeResolver struct {
	topic string
	err   error
}

func (f *fakeResolver) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			Topic:         f.topic,
		},
		Envelope: outbox.Envelope{EventID: row.ID.String(), OccurredAt: time.Now()},
	}, nil
}

type fakeTopic struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakeTopic) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return fakeResult{}
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	return "msg-id", f.err
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error { return nil }

func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }
