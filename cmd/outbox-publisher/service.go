package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txDB interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	OrderedPublisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	Park(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher sends one message and blocks until the broker answers.
type topicPublisher interface {
	Send(ctx context.Context, msg *gcppubsub.Message) error
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

func (o outcome) label() string {
	switch o {
	case outcomePublished:
		return metrics.RelayPublished
	case outcomeRetry:
		return metrics.RelayRetry
	default:
		return metrics.RelayDeadLettered
	}
}

type RelayParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         txDB
	Topics     topicSource
	Repository outboxRepository
	Registry   registryResolver
	DLQ        dlqRepository
	Metrics    *metrics.OutboxMetrics
	// Publishers overrides how a topic name becomes a publisher. Tests use it.
	Publishers func(topic string) topicPublisher
}

// Relay moves committed outbox rows to Pub/Sub. Rows of one aggregate are
// published with the aggregate id as ordering key, so consumers see
// order_created before order_paid for the same order.
type Relay struct {
	logg           *logger.Logger
	db             txDB
	topics         topicSource
	repo           outboxRepository
	registry       registryResolver
	dlq            dlqRepository
	metrics        *metrics.OutboxMetrics
	analyticsTopic string
	batchSize      int
	maxAttempts    int
	poll           time.Duration
	now            func() time.Time

	mu         sync.Mutex
	publishers map[string]topicPublisher
	newPub     func(topic string) topicPublisher
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Topics == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Config.Outbox
	r := &Relay{
		logg:           params.Logger,
		db:             params.DB,
		topics:         params.Topics,
		repo:           params.Repository,
		registry:       params.Registry,
		dlq:            params.DLQ,
		metrics:        params.Metrics,
		analyticsTopic: params.Config.PubSub.AnalyticsTopic,
		batchSize:      positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:    positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		poll:           defaultPoll,
		now:            time.Now,
		publishers:     map[string]topicPublisher{},
		newPub:         params.Publishers,
	}
	if cfg.PollIntervalMS > 0 {
		r.poll = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	if r.newPub == nil {
		r.newPub = r.gcpPublisher
	}
	return r, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is canceled. Empty polls and failed polls back off with
// jitter; a full poll is followed immediately by the next one.
func (r *Relay) Run(ctx context.Context) error {
	defer r.stopPublishers()

	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{{"database", r.db.Ping}, {"pubsub", r.topics.Ping}} {
		if err := dep.ping(ctx); err != nil {
			r.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		handled, err := r.pollOnce(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox poll failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case handled == r.batchSize:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		timer := time.NewTimer(wait + time.Duration(rand.Int63n(int64(jitterWindow))))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// pollOnce claims up to batchSize rows and relays each of them inside one
// transaction. It returns how many rows were claimed.
func (r *Relay) pollOnce(ctx context.Context) (int, error) {
	defer r.metrics.Poll(time.Now())

	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		for _, event := range events {
			result, err := r.relay(ctx, tx, event)
			if err != nil {
				return err
			}
			r.metrics.Event(string(event.EventType), result.label())
		}
		return nil
	})
	return claimed, err
}

// relay publishes one row and records what happened to it. The returned
// error is reserved for bookkeeping failures, which abort the poll.
func (r *Relay) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	})

	resolved, err := r.registry.Resolve(event)
	if err != nil {
		reason := enums.OutboxDLQReasonNonRetryable
		if errors.Is(err, registry.ErrUnknownEvent) {
			reason = enums.OutboxDLQReasonUnknownEvent
		}
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, reason, err)
	}

	pubErr := r.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := r.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.logg.Debug(ctx, "outbox event published")
		return outcomePublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	if event.AttemptCount+1 >= r.maxAttempts {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr))
	}

	r.logg.Warn(r.logg.WithField(ctx, "error", pubErr.Error()), "outbox publish failed, will retry")
	if err := r.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event moved to dlq")

	if err := r.dlq.Park(tx, outbox.ParkedEntry(event, reason, cause, r.now())); err != nil {
		return fmt.Errorf("park %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

// publish sends the row to its domain topic and, for settlement events, to
// the analytics topic too. Failing either topic fails the row; consumers
// dedupe on event_id so a partial success is safe to repeat.
func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topics := []string{resolved.Route.Topic}
	if resolved.Route.Analytics && r.analyticsTopic != "" {
		topics = append(topics, r.analyticsTopic)
	}

	msg := &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	for _, topic := range topics {
		pub := r.publisherFor(topic)
		if pub == nil {
			return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
		}
		if err := pub.Send(ctx, msg); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}
	}
	return nil
}

func (r *Relay) publisherFor(topic string) topicPublisher {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pub, ok := r.publishers[topic]; ok {
		return pub
	}
	pub := r.newPub(topic)
	if pub != nil {
		r.publishers[topic] = pub
	}
	return pub
}

func (r *Relay) stopPublishers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, pub := range r.publishers {
		if p, ok := pub.(*gcpPublisher); ok {
			p.pub.Stop()
		}
		delete(r.publishers, topic)
	}
}

func (r *Relay) gcpPublisher(topic string) topicPublisher {
	p := r.topics.OrderedPublisher(topic)
	if p == nil {
		return nil
	}
	return &gcpPublisher{pub: p}
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

// Send publishes msg. A failed ordered publish pauses its ordering key, so
// the key is resumed before the row is retried on a later poll.
func (p *gcpPublisher) Send(ctx context.Context, msg *gcppubsub.Message) error {
	_, err := p.pub.Publish(ctx, msg).Get(ctx)
	if err != nil && msg.OrderingKey != "" {
		p.pub.ResumePublish(msg.OrderingKey)
	}
	return err
}
