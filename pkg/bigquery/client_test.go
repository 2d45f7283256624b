package bigquery

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/mylittlestore/pos-backend/pkg/config"
)

func TestNewClientValidatesSettings(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", SalesTable: "t"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{SalesTable: "t"}, nil)
	require.ErrorIs(t, err, errDatasetRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d", SalesTable: "  "}, nil)
	require.ErrorIs(t, err, errTableNameRequired)
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	require.ErrorIs(t, c.InsertRows(context.Background(), "sales_events", []any{1}), errClientNotInitialized)
	require.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
	require.Empty(t, c.SalesTable())
	require.NoError(t, c.Close())
}

func TestClientOptions(t *testing.T) {
	require.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"dummy": "value"}`, ApplicationCredentials: "/tmp/creds"}), 1)
	require.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 1)
	require.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestDescribe(t *testing.T) {
	err := describe("table", "sales_events", &googleapi.Error{Code: http.StatusNotFound})
	require.EqualError(t, err, `table "sales_events" does not exist`)

	cause := errors.New("permission denied")
	err = describe("dataset", "mylittlestore", cause)
	require.ErrorIs(t, err, cause)
}
