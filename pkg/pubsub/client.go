package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client wraps a Pub/Sub v2 client bound to one project. Topic and
// subscription names may be short ids or full resource names.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects to Pub/Sub and fails when a configured topic or
// subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	raw, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: raw, projectID: projectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		return nil, errors.Join(err, raw.Close())
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":       projectID,
			"topics":        c.topics(),
			"subscriptions": c.subscriptions(),
		}), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks every configured topic and subscription concurrently.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range c.topics() {
		g.Go(func() error {
			_, err := c.client.TopicAdminClient.GetTopic(gctx, &pubsubpb.GetTopicRequest{
				Topic: c.resource(kindTopic, name),
			})
			return describe(err, "topic", name)
		})
	}
	for _, name := range c.subscriptions() {
		g.Go(func() error {
			_, err := c.client.SubscriptionAdminClient.GetSubscription(gctx, &pubsubpb.GetSubscriptionRequest{
				Subscription: c.resource(kindSubscription, name),
			})
			return describe(err, "subscription", name)
		})
	}
	return g.Wait()
}

func describe(err error, kind, name string) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Subscription returns a receiver for name, or nil when it cannot be resolved.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.resource(kindSubscription, name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

// AnalyticsSubscription returns the subscriber feeding the sales warehouse.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publish handle for name, or nil when it cannot be
// resolved. Callers Stop the handle when done.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.resource(kindTopic, name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

// OrderedPublisher is Publisher with message ordering on. Events of one
// order share its id as ordering key.
func (c *Client) OrderedPublisher(name string) *pubsub.Publisher {
	p := c.Publisher(name)
	if p != nil {
		p.EnableMessageOrdering = true
	}
	return p
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topics() []string {
	return nonBlank(c.cfg.DomainTopic, c.cfg.DLQTopic, c.cfg.AnalyticsTopic)
}

func (c *Client) subscriptions() []string {
	return nonBlank(c.cfg.AnalyticsSubscription)
}

// resource expands a short id into projects/<project>/<kind>/<id>. Full
// resource names of the same kind pass through.
func (c *Client) resource(kind, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/"+kind+"/") {
			return name
		}
		return ""
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + kind + "/" + name
}

func nonBlank(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
