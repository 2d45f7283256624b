package square

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired   = errors.New("square access token is required")
	errWebhookSecretRequired = errors.New("square webhook secret is required")
	errWebhookURLRequired    = errors.New("square webhook url is required")
	errInvalidSquareEnv      = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client charges card tenders through Square and verifies its webhooks.
type Client struct {
	sdk         *sqclient.Client
	environment string
	webhook     webhookKey
	logger      *logger.Logger
}

type webhookKey struct {
	secret string
	url    string
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env := cfg.Environment()
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, errInvalidSquareEnv
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	key := webhookKey{secret: strings.TrimSpace(cfg.WebhookSecret), url: strings.TrimSpace(cfg.WebhookURL)}
	if key.secret == "" {
		return nil, errWebhookSecretRequired
	}
	if key.url == "" {
		return nil, errWebhookURLRequired
	}

	c := &Client{
		sdk:         sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token)),
		environment: env,
		webhook:     key,
		logger:      logg,
	}
	logg.Info(logg.WithField(ctx, "square_env", env), "square client initialized")
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// VerifyWebhook checks a notification body against the configured signature
// key and notification URL.
func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	if c == nil {
		return false
	}
	return VerifySignature(body, signature, c.webhook.secret, c.webhook.url)
}

var sensitiveKeys = []string{"card", "nonce", "token", "source", "cvv", "cvc", "secret", "email", "phone"}

// trace logs one SDK call at debug level, or at error level with err set.
func (c *Client) trace(ctx context.Context, op string, err error, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	safe := make(map[string]any, len(fields)+1)
	safe["operation"] = op
	for k, v := range fields {
		safe[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, safe)
	if err != nil {
		c.logger.Error(ctx, "square "+op+" failed", err)
		return
	}
	c.logger.Debug(ctx, "square "+op)
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return "[REDACTED]"
		}
	}
	return value
}
