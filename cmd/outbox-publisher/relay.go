package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/pkg/config"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	"github.com/freshmarket/storefront-backend/pkg/logger"
	"github.com/freshmarket/storefront-backend/pkg/metrics"
	"github.com/freshmarket/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// RelayParams wires the order event relay.
type RelayParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	PubSub     pubsubHandles
	Events     eventStore
	DeadLetter deadLetterStore
	Registry   eventResolver
	Metrics    *metrics.OutboxMetrics
	// Lookup overrides publisher resolution; defaults to the pubsub client.
	Lookup   publisherLookup
	Instance string
}

// Relay drains outbox_events to Pub/Sub. Each batch runs in one transaction
// holding row locks so concurrent relays never publish the same row.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      pubsubHandles
	events      eventStore
	dlq         deadLetterStore
	registry    eventResolver
	metrics     *metrics.OutboxMetrics
	lookup      publisherLookup
	instance    string
	batchSize   int
	maxAttempts int
	interval    time.Duration
	jitter      *rand.Rand
	now         func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Events == nil:
		return nil, errors.New("outbox repository is required")
	case p.DeadLetter == nil:
		return nil, errors.New("dlq repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	lookup := p.Lookup
	if lookup == nil {
		lookup = lookupFromClient(p.PubSub)
	}
	batch := positiveOr(p.Outbox.BatchSize, defaultBatchSize)
	pollMs := positiveOr(p.Outbox.PollIntervalMS, defaultPollMs)

	return &Relay{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		events:      p.Events,
		dlq:         p.DeadLetter,
		registry:    p.Registry,
		metrics:     p.Metrics,
		lookup:      lookup,
		instance:    p.Instance,
		batchSize:   batch,
		maxAttempts: positiveOr(p.Outbox.MaxAttempts, defaultMaxAttempts),
		interval:    time.Duration(pollMs) * time.Millisecond,
		jitter:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is cancelled. Batch errors back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := r.interval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		drained, err := r.drainOnce(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case drained > 0:
			wait = r.interval
			continue
		default:
			wait = r.interval
		}

		if err := r.pause(ctx, wait); err != nil {
			return err
		}
	}
}

// drainOnce handles one locked batch and returns how many rows it touched.
func (r *Relay) drainOnce(ctx context.Context) (int, error) {
	touched := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		touched = len(rows)
		for _, row := range rows {
			if err := r.relayRow(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return touched, err
}

func (r *Relay) relayRow(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
		"relay_instance": r.instance,
	}

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return r.deadLetter(ctx, tx, row, resolveReason(err), err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	pubErr := r.publish(ctx, row, resolved)
	if pubErr == nil {
		if err := r.events.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.IncPublished(string(row.EventType))
		r.logg.Info(r.logg.WithFields(ctx, fields), "order event published")
		return nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, pubErr, fields)
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", pubErr), fields)
	}

	r.metrics.IncFailed(string(row.EventType))
	logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", pubErr.Error())
	r.logg.Warn(logCtx, "order event publish failed, will retry")
	if err := r.events.MarkFailedTx(tx, row.ID, pubErr); err != nil {
		return fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	return nil
}

func resolveReason(err error) enums.OutboxDLQErrorReason {
	if errors.Is(err, registry.ErrUnknownEvent) {
		return enums.OutboxDLQReasonUnknownEvent
	}
	return enums.OutboxDLQReasonNonRetryable
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", cause.Error())
	r.logg.Warn(logCtx, "order event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      r.now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.events.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.IncDeadLettered(string(reason))
	return nil
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.lookup(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (r *Relay) pause(ctx context.Context, d time.Duration) error {
	d += time.Duration(r.jitter.Int63n(int64(jitterWindow)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
