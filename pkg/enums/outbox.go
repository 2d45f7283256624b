package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateStore         OutboxAggregateType = "store"
	AggregateStoreTable    OutboxAggregateType = "store_table"
	AggregateOrder         OutboxAggregateType = "order"
	AggregatePayment       OutboxAggregateType = "payment"
	AggregatePaymentMethod OutboxAggregateType = "payment_method"
)

var aggregateTypes = set[OutboxAggregateType]{
	AggregateStore,
	AggregateStoreTable,
	AggregateOrder,
	AggregatePayment,
	AggregatePaymentMethod,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return aggregateTypes.has(a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated      OutboxEventType = "order_created"
	EventOrderDeleted      OutboxEventType = "order_deleted"
	EventOrderItemChanged  OutboxEventType = "order_item_changed"
	EventPaymentStarted    OutboxEventType = "payment_started"
	EventPaymentAborted    OutboxEventType = "payment_aborted"
	EventPaymentMethodPaid OutboxEventType = "payment_method_paid"
	EventPaymentSettled    OutboxEventType = "payment_settled"
	EventOrderPaid         OutboxEventType = "order_paid"
	EventStoreStatusChange OutboxEventType = "store_status_changed"
)

var outboxEventTypes = set[OutboxEventType]{
	EventOrderCreated,
	EventOrderDeleted,
	EventOrderItemChanged,
	EventPaymentStarted,
	EventPaymentAborted,
	EventPaymentMethodPaid,
	EventPaymentSettled,
	EventOrderPaid,
	EventStoreStatusChange,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return outboxEventTypes.has(e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse("event type", value)
}
