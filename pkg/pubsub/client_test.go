package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mylittlestore/pos-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "pos-dev"}

	require.Equal(t, "projects/pos-dev/topics/mls-domain-events", c.resource(kindTopic, "mls-domain-events"))
	require.Equal(t, "projects/other/topics/x", c.resource(kindTopic, "projects/other/topics/x"))
	require.Equal(t, "projects/pos-dev/subscriptions/sales", c.resource(kindSubscription, " sales "))
	require.Empty(t, c.resource(kindSubscription, ""))
	require.Empty(t, c.resource(kindSubscription, "projects/other/topics/x"), "topic name used as subscription")
	require.Empty(t, (&Client{}).resource(kindTopic, "x"), "no project")
}

func TestConfiguredNamesSkipBlank(t *testing.T) {
	c := &Client{cfg: config.PubSubConfig{DomainTopic: "domain", AnalyticsTopic: " "}}
	require.Equal(t, []string{"domain"}, c.topics())
	require.Empty(t, c.subscriptions())

	c.cfg.AnalyticsSubscription = "sales"
	require.Equal(t, []string{"sales"}, c.subscriptions())
}

func TestDescribe(t *testing.T) {
	require.NoError(t, describe(nil, "topic", "x"))
	require.EqualError(t, describe(status.Error(codes.NotFound, "gone"), "topic", "x"), `topic "x" does not exist`)

	cause := status.Error(codes.PermissionDenied, "nope")
	err := describe(cause, "subscription", "sales")
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), `checking subscription "sales"`)
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	require.Nil(t, c.Publisher("x"))
	require.Nil(t, c.OrderedPublisher("x"))
	require.Nil(t, c.Subscription("x"))
	require.NoError(t, c.Close())
	require.True(t, errors.Is(c.Ping(context.Background()), errNotInitialized))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: " "}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}
