package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/db/models"
	"github.com/mylittlestore/pos-backend/pkg/enums"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
	"github.com/mylittlestore/pos-backend/pkg/outbox"
	"github.com/mylittlestore/pos-backend/pkg/outbox/registry"
)

type relayFixture struct {
	relay *Relay
	repo  *fakeRepo
	dlq   *fakeDLQ
	sent  map[string][]*gcppubsub.Message
	fail  map[string][]error
}

func newRelayFixture(t *testing.T, events []models.OutboxEvent, resolver registryResolver, maxAttempts int) *relayFixture {
	t.Helper()
	f := &relayFixture{
		repo: &fakeRepo{events: events},
		dlq:  &fakeDLQ{},
		sent: map[string][]*gcppubsub.Message{},
		fail: map[string][]error{},
	}
	cfg := &config.Config{
		Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		PubSub: config.PubSubConfig{AnalyticsTopic: "sales"},
	}
	relay, err := NewRelay(RelayParams{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		DB:         fakeDB{},
		Topics:     fakeTopics{},
		Repository: f.repo,
		Registry:   resolver,
		DLQ:        f.dlq,
		Metrics:    metrics.NewOutboxMetrics(prometheus.NewRegistry()),
		Publishers: func(topic string) topicPublisher {
			if topic == "missing" {
				return nil
			}
			return &recordingPublisher{topic: topic, fixture: f}
		},
	})
	require.NoError(t, err)
	f.relay = relay
	return f
}

func orderEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now(), Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func TestRelayPublishesWithOrderingKey(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	f := newRelayFixture(t, []models.OutboxEvent{event}, topicResolver{topic: "domain"}, 5)

	claimed, err := f.relay.pollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, claimed)
	require.Equal(t, []uuid.UUID{event.ID}, f.repo.published)

	require.Len(t, f.sent["domain"], 1)
	msg := f.sent["domain"][0]
	require.Equal(t, event.AggregateID.String(), msg.OrderingKey)
	require.Equal(t, string(enums.EventOrderCreated), msg.Attributes["event_type"])
	require.Empty(t, f.sent["sales"])
}

func TestRelayCopiesAnalyticsEvents(t *testing.T) {
	event := orderEvent(t, enums.EventOrderPaid, 0)
	f := newRelayFixture(t, []models.OutboxEvent{event}, topicResolver{topic: "domain", analytics: true}, 5)

	_, err := f.relay.pollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, f.sent["domain"], 1)
	require.Len(t, f.sent["sales"], 1)
	require.Len(t, f.repo.published, 1)
}

func TestRelayRetriesTransientFailureAndContinues(t *testing.T) {
	first := orderEvent(t, enums.EventOrderCreated, 0)
	second := orderEvent(t, enums.EventOrderCreated, 0)
	f := newRelayFixture(t, []models.OutboxEvent{first, second}, topicResolver{topic: "domain"}, 5)
	f.fail["domain"] = []error{errors.New("unavailable")}

	_, err := f.relay.pollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{first.ID}, f.repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, f.repo.published)
	require.Empty(t, f.dlq.entries)
}

func TestRelayDeadLettersAtMaxAttempts(t *testing.T) {
	event := orderEvent(t, enums.EventPaymentSettled, 1)
	f := newRelayFixture(t, []models.OutboxEvent{event}, topicResolver{topic: "domain"}, 2)
	f.fail["domain"] = []error{errors.New("unavailable")}

	_, err := f.relay.pollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, f.dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, f.dlq.entries[0].ErrorReason)
	require.Equal(t, []uuid.UUID{event.ID}, f.repo.terminal)
}

func TestRelayDeadLettersUndecodableRows(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	f := newRelayFixture(t, []models.OutboxEvent{event}, topicResolver{err: registry.NewNonRetryableError(errors.New("bad payload"))}, 5)

	_, err := f.relay.pollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, f.dlq.entries, 1)
	entry := f.dlq.entries[0]
	require.Equal(t, event.ID, entry.EventID)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.JSONEq(t, string(event.Payload), string(entry.Payload))
	require.Empty(t, f.sent)
}

func TestRelayParksUnroutedEventsAsUnknown(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	cause := registry.NewNonRetryableError(fmt.Errorf("%w: table_cleaned", registry.ErrUnknownEvent))
	f := newRelayFixture(t, []models.OutboxEvent{event}, topicResolver{err: cause}, 5)

	_, err := f.relay.pollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, f.dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonUnknownEvent, f.dlq.entries[0].ErrorReason)
}

func TestRelayDeadLettersUnknownTopic(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	f := newRelayFixture(t, []models.OutboxEvent{event}, topicResolver{topic: "missing"}, 5)

	_, err := f.relay.pollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, f.dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, f.dlq.entries[0].ErrorReason)
}

func TestRelayAbortsPollWhenBookkeepingFails(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	f := newRelayFixture(t, []models.OutboxEvent{event}, topicResolver{topic: "domain"}, 5)
	f.repo.markErr = errors.New("db gone")

	_, err := f.relay.pollOnce(context.Background())
	require.ErrorContains(t, err, "db gone")
}

type topicResolver struct {
	topic     string
	analytics bool
	err       error
}

func (r topicResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &registry.ResolvedEvent{
		Route: registry.Route{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         r.topic,
			Analytics:     r.analytics,
		},
		Envelope: outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()},
	}, nil
}

type recordingPublisher struct {
	topic   string
	fixture *relayFixture
}

func (p *recordingPublisher) Send(_ context.Context, msg *gcppubsub.Message) error {
	if queued := p.fixture.fail[p.topic]; len(queued) > 0 {
		p.fixture.fail[p.topic] = queued[1:]
		return queued[0]
	}
	p.fixture.sent[p.topic] = append(p.fixture.sent[p.topic], msg)
	return nil
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQ) Park(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeTopics struct{}

func (fakeTopics) Ping(context.Context) error { return nil }

func (fakeTopics) OrderedPublisher(string) *gcppubsub.Publisher { return nil }
