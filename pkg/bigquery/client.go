package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

const verifyTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client streams rows into the warehouse dataset. Inserters are built once
// per table and shared.
type Client struct {
	bq         *bigquery.Client
	dataset    *bigquery.Dataset
	salesTable string

	mu        sync.Mutex
	inserters map[string]*bigquery.Inserter
}

// NewClient connects to BigQuery and fails unless the dataset and the sales
// table already exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	salesTable := strings.TrimSpace(cfg.SalesTable)
	if salesTable == "" {
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		bq:         bq,
		dataset:    bq.Dataset(datasetID),
		salesTable: salesTable,
		inserters:  map[string]*bigquery.Inserter{},
	}
	if err := c.Ping(ctx); err != nil {
		return nil, multierr.Append(err, bq.Close())
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset":     datasetID,
			"sales_table": salesTable,
		}), "bigquery client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// SalesTable returns the table sales rows are streamed into.
func (c *Client) SalesTable() string {
	if c == nil {
		return ""
	}
	return c.salesTable
}

// Ping checks that the dataset and the sales table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset", c.dataset.DatasetID, err)
	}
	if _, err := c.dataset.Table(c.salesTable).Metadata(ctx); err != nil {
		return describe("table", c.salesTable, err)
	}
	return nil
}

// InsertRows streams rows into table. Rows may be ValueSavers carrying an
// insert id.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	if err := c.inserter(table).Put(ctx, rows); err != nil {
		return fmt.Errorf("insert into %q: %w", table, err)
	}
	return nil
}

func (c *Client) inserter(table string) *bigquery.Inserter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ins, ok := c.inserters[table]; ok {
		return ins
	}
	ins := c.dataset.Table(table).Inserter()
	c.inserters[table] = ins
	return ins
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func describe(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
