package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
)

// ErrUnknownEvent marks rows whose event type has no route.
var ErrUnknownEvent = errors.New("unknown outbox event type")

// Route says where an event type is published and how its payload decodes.
// Analytics routes are also copied to the analytics topic.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	Analytics     bool
	newPayload    func() any
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, analytics bool) Route {
	return Route{
		EventType:     eventType,
		AggregateType: aggregate,
		Analytics:     analytics,
		newPayload:    func() any { return new(T) },
	}
}

// ResolvedEvent is an outbox row checked against its route, with the
// envelope and typed payload decoded.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// EventRegistry routes every event type the services emit.
type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// NonRetryableError marks a row that can never be published as stored.
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

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry routes every event to the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, errors.New("domain topic is required")
	}

	routes := []Route{
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, false),
		route[payloads.OrderDeletedEvent](enums.EventOrderDeleted, enums.AggregateOrder, false),
		route[payloads.OrderItemChangedEvent](enums.EventOrderItemChanged, enums.AggregateOrder, false),
		route[payloads.PaymentStartedEvent](enums.EventPaymentStarted, enums.AggregatePayment, false),
		route[payloads.PaymentAbortedEvent](enums.EventPaymentAborted, enums.AggregatePayment, false),
		route[payloads.PaymentMethodPaidEvent](enums.EventPaymentMethodPaid, enums.AggregatePaymentMethod, false),
		route[payloads.PaymentSettledEvent](enums.EventPaymentSettled, enums.AggregatePayment, true),
		route[payloads.OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder, true),
		route[payloads.StoreStatusChangedEvent](enums.EventStoreStatusChange, enums.AggregateStore, false),
	}

	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, r := range routes {
		r.Topic = cfg.DomainTopic
		reg.routes[r.EventType] = r
	}
	return reg, nil
}

func (r *EventRegistry) Route(eventType enums.OutboxEventType) (Route, bool) {
	rt, ok := r.routes[eventType]
	return rt, ok
}

// Resolve checks event against its route and decodes the payload. Every
// error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("%w: %s", ErrUnknownEvent, event.EventType))
	case rt.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s belongs to %s aggregates, row says %s", event.EventType, rt.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("%s has no payload", event.EventType))
	}

	payload := rt.newPayload()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Route: rt, Envelope: envelope, Payload: payload}, nil
}
