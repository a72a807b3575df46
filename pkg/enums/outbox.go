package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

// OutboxEventType is the event_type column of outbox_events. Values double as
// the event_type message attribute seen by subscribers.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderCanceled      OutboxEventType = "order_canceled"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
)

var outboxEventTypes = values[OutboxEventType]{
	EventOrderCreated,
	EventOrderCanceled,
	EventOrderStatusChanged,
}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.contains(e) }

// OutboxDLQErrorReason records why the relay gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnknownEvent OutboxDLQErrorReason = "unknown_event"
)

var dlqReasons = values[OutboxDLQErrorReason]{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUnknownEvent,
}

// ParseOutboxDLQErrorReason is used by the dead-letter listing filter.
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return dlqReasons.parse("dead-letter reason", value, true)
}
