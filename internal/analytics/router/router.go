package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/mylittlestore/pos-backend/internal/analytics/types"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/money"
	"github.com/mylittlestore/pos-backend/pkg/outbox/payloads"
	"github.com/mylittlestore/pos-backend/pkg/outbox/registry"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrMalformedPayload marks events whose body will never decode.
	ErrMalformedPayload = errors.New("malformed analytics payload")
)

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertSales(ctx context.Context, rows ...types.SalesEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router turns settlement events into sales rows.
type Router struct {
	handlers map[enums.OutboxEventType]Handler
	decoders *registry.Decoders
}

// NewRouter registers the order_paid and payment_settled handlers. overrides
// replaces the handler of an already routed event type and is ignored for
// anything else.
func NewRouter(writer Writer, formatter money.Formatter, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	decoders := registry.NewDecoders()
	registry.Register[payloads.OrderPaidEvent](decoders, enums.EventOrderPaid, 1)
	registry.Register[payloads.PaymentSettledEvent](decoders, enums.EventPaymentSettled, 1)

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventOrderPaid:      newOrderPaidHandler(writer, formatter, logg),
		enums.EventPaymentSettled: newPaymentSettledHandler(writer, formatter, logg),
	}
	for eventType, custom := range overrides {
		if _, ok := handlers[eventType]; ok && custom != nil {
			handlers[eventType] = custom
		}
	}
	return &Router{handlers: handlers, decoders: decoders}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%w: empty %s payload", ErrMalformedPayload, envelope.EventType)
	}
	payload, err := r.decoders.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	switch {
	case errors.Is(err, registry.ErrNoDecoder):
		return fmt.Errorf("%w: %v", ErrUnsupportedEventType, err)
	case err != nil:
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, envelope.EventType, err)
	}
	return handler.Handle(ctx, envelope, payload)
}
