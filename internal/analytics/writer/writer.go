package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mylittlestore/pos-backend/internal/analytics/types"
	pkgbigquery "github.com/mylittlestore/pos-backend/pkg/bigquery"
)

const (
	// streaming inserts above this size are split into several requests
	defaultChunkSize   = 500
	defaultMaxAttempts = 4
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 3 * time.Second
)

type Config struct {
	SalesTable  string
	ChunkSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type rowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// SalesWriter streams sales rows into BigQuery. Every row is sent with its
// RowID as insert id, so resending a whole chunk after a partial failure does
// not double count.
type SalesWriter struct {
	client      rowInserter
	table       string
	chunkSize   int
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(context.Context, time.Duration) error
}

func New(client *pkgbigquery.Client, cfg Config) (*SalesWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.SalesTable)
	if table == "" {
		return nil, errors.New("sales table is required")
	}

	w := &SalesWriter{
		client:      client,
		table:       table,
		chunkSize:   cfg.ChunkSize,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		sleep:       sleepCtx,
	}
	if w.chunkSize <= 0 {
		w.chunkSize = defaultChunkSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.baseDelay <= 0 {
		w.baseDelay = defaultBaseDelay
	}
	if w.maxDelay < w.baseDelay {
		w.maxDelay = max(defaultMaxDelay, w.baseDelay)
	}
	return w, nil
}

// InsertSales writes the rows of one event before returning, so the caller
// may ack the message once it sees a nil error.
func (w *SalesWriter) InsertSales(ctx context.Context, rows ...types.SalesEventRow) error {
	for start := 0; start < len(rows); start += w.chunkSize {
		end := min(start+w.chunkSize, len(rows))
		chunk := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			chunk = append(chunk, &cbigquery.StructSaver{Struct: &rows[i], InsertID: rows[i].RowID})
		}
		if err := w.put(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (w *SalesWriter) put(ctx context.Context, chunk []any) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.client.InsertRows(ctx, w.table, chunk); err == nil {
			return nil
		}
		if attempt >= w.maxAttempts || !Retryable(err) {
			return fmt.Errorf("insert %d rows into %s after %d attempt(s): %w", len(chunk), w.table, attempt, err)
		}
		if serr := w.sleep(ctx, w.delay(attempt)); serr != nil {
			return serr
		}
	}
}

// delay is full jitter over an exponential ceiling.
func (w *SalesWriter) delay(attempt int) time.Duration {
	ceiling := w.baseDelay << (attempt - 1)
	if ceiling <= 0 || ceiling > w.maxDelay {
		ceiling = w.maxDelay
	}
	return time.Duration(rand.Int64N(int64(ceiling)) + 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retryable reports whether every failure wrapped in err is transient.
// Row level errors count as permanent unless all of them are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var putErr cbigquery.PutMultiError
	if errors.As(err, &putErr) {
		if len(putErr) == 0 {
			return false
		}
		for _, row := range putErr {
			if !Retryable(row.Errors) {
				return false
			}
		}
		return true
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !Retryable(inner) {
				return false
			}
		}
		return true
	}

	var bqErr *cbigquery.Error
	if errors.As(err, &bqErr) {
		switch bqErr.Reason {
		case "backendError", "rateLimitExceeded", "internalError", "timeout":
			return true
		}
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// EncodeJSON renders payload for a BigQuery JSON column. Empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
