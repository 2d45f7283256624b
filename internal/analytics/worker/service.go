package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/internal/analytics/router"
	"github.com/mylittlestore/pos-backend/internal/analytics/types"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
)

const defaultConsumerName = "analytics"

// Handler consumes one decoded settlement event.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// ledger remembers which events this consumer has already applied.
type ledger interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// ConsumerParams wires a Consumer.
type ConsumerParams struct {
	Subscription receiver
	Handler      Handler
	Processed    ledger
	Metrics      *metrics.ConsumerMetrics
	Logger       *logger.Logger
	// Name labels logs and metrics. Defaults to "analytics".
	Name string
}

// Consumer drains the analytics subscription into the sales warehouse.
// Each event is applied at most once per consumer name; failed deliveries
// release their idempotency mark and are redelivered.
type Consumer struct {
	sub       receiver
	handler   Handler
	processed ledger
	metrics   *metrics.ConsumerMetrics
	logg      *logger.Logger
	name      string
}

func NewConsumer(p ConsumerParams) (*Consumer, error) {
	if p.Subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if p.Handler == nil {
		return nil, errors.New("analytics handler is required")
	}
	if p.Processed == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = defaultConsumerName
	}
	return &Consumer{
		sub:       p.Subscription,
		handler:   p.Handler,
		processed: p.Processed,
		metrics:   p.Metrics,
		logg:      p.Logger,
		name:      name,
	}, nil
}

// Run blocks until ctx is cancelled or the subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if c.process(msgCtx, msg) == outcomeRetry {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type outcome string

const (
	outcomeHandled     outcome = metrics.ConsumerHandled
	outcomeDuplicate   outcome = metrics.ConsumerDuplicate
	outcomeUnsupported outcome = metrics.ConsumerUnsupported
	outcomeMalformed   outcome = metrics.ConsumerMalformed
	outcomeRetry       outcome = metrics.ConsumerRetry
)

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) (result outcome) {
	started := time.Now()
	eventType := msg.Attributes["event_type"]
	defer func() { c.metrics.Observe(c.name, eventType, string(result), started) }()

	ctx = c.logg.WithFields(ctx, map[string]any{
		"message_id":   msg.ID,
		"ordering_key": msg.OrderingKey,
		"consumer":     c.name,
	})

	envelope, err := decode(msg)
	if err != nil {
		// Redelivery cannot repair a malformed message.
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		return outcomeMalformed
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
	})

	claimed, err := c.processed.Claim(ctx, envelope.EventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return outcomeRetry
	}
	if !claimed {
		c.logg.Debug(ctx, "duplicate delivery skipped")
		return outcomeDuplicate
	}

	if err := c.handler.Handle(ctx, envelope); err != nil {
		switch {
		case errors.Is(err, router.ErrUnsupportedEventType):
			c.logg.Warn(ctx, "no analytics handler for event")
			return outcomeUnsupported
		case errors.Is(err, router.ErrMalformedPayload):
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping undecodable analytics payload")
			return outcomeMalformed
		}
		c.logg.Error(ctx, "analytics handler failed", err)
		if relErr := c.processed.Release(ctx, envelope.EventID); relErr != nil {
			c.logg.Error(ctx, "failed to release idempotency mark", relErr)
		}
		return outcomeRetry
	}

	c.logg.Info(ctx, "analytics event applied")
	return outcomeHandled
}

// decode reads the stored outbox envelope from the message body and the
// routing metadata from its attributes. The ordering key stands in for a
// missing aggregate_id since the relay keys messages by aggregate.
func decode(msg *gcppubsub.Message) (types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return types.Envelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}

	attr := func(key string) string { return strings.TrimSpace(msg.Attributes[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}

	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		aggregateID = strings.TrimSpace(msg.OrderingKey)
	}
	if aggregateID == "" {
		return types.Envelope{}, errors.New("aggregate_id missing")
	}

	rawID := strings.TrimSpace(stored.EventID)
	if rawID == "" {
		rawID = attr("event_id")
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return types.Envelope{}, fmt.Errorf("event_id %q: %w", rawID, err)
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			occurredAt = parsed
		}
	}

	return types.Envelope{
		EventID:       eventID.String(),
		Version:       stored.Version,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}
