package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mylittlestore/pos-backend/internal/analytics/types"
	pkgbigquery "github.com/mylittlestore/pos-backend/pkg/bigquery"
)

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{})
	require.Error(t, err)
	_, err = New(&pkgbigquery.Client{}, Config{SalesTable: " "})
	require.Error(t, err)

	w, err := New(&pkgbigquery.Client{}, Config{SalesTable: "sales_events", BaseDelay: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, defaultChunkSize, w.chunkSize)
	require.Equal(t, 5*time.Second, w.maxDelay)
}

func TestInsertSalesRetriesTransientFailure(t *testing.T) {
	w, fake, slept := newTestWriter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusServiceUnavailable}, nil}

	require.NoError(t, w.InsertSales(context.Background(), types.SalesEventRow{RowID: "evt-1:tender:0"}))
	require.Len(t, fake.calls, 2)
	require.Equal(t, "sales_events", fake.calls[1].table)
	require.Len(t, *slept, 1)
}

func TestInsertSalesStopsOnPermanentFailure(t *testing.T) {
	w, fake, _ := newTestWriter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	err := w.InsertSales(context.Background(), types.SalesEventRow{RowID: "1"}, types.SalesEventRow{RowID: "2"})
	require.Error(t, err)
	require.Len(t, fake.calls, 1)
}

func TestInsertSalesGivesUpAfterMaxAttempts(t *testing.T) {
	w, fake, _ := newTestWriter(t)
	unavailable := status.Error(codes.Unavailable, "try later")
	fake.responses = []error{unavailable, unavailable, unavailable, unavailable, nil}

	err := w.InsertSales(context.Background(), types.SalesEventRow{RowID: "1"})
	require.ErrorContains(t, err, "after 4 attempt(s)")
	require.Len(t, fake.calls, defaultMaxAttempts)
}

func TestInsertSalesChunksAndSetsInsertIDs(t *testing.T) {
	w, fake, _ := newTestWriter(t)
	w.chunkSize = 2
	rows := make([]types.SalesEventRow, 5)
	for i := range rows {
		rows[i].RowID = fmt.Sprintf("evt-1:sale_line:%d", i)
	}

	require.NoError(t, w.InsertSales(context.Background(), rows...))
	require.Len(t, fake.calls, 3)
	require.Equal(t, []int{2, 2, 1}, []int{fake.calls[0].rowCount, fake.calls[1].rowCount, fake.calls[2].rowCount})

	saver, ok := fake.rows[4].(*cbigquery.StructSaver)
	require.True(t, ok)
	require.Equal(t, "evt-1:sale_line:4", saver.InsertID)
}

func TestInsertSalesHonoursCancellationWhileWaiting(t *testing.T) {
	w, fake, _ := newTestWriter(t)
	w.sleep = sleepCtx
	fake.responses = []error{&googleapi.Error{Code: http.StatusTooManyRequests}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, w.InsertSales(ctx, types.SalesEventRow{RowID: "1"}), context.Canceled)
}

func TestRetryable(t *testing.T) {
	transient := &cbigquery.Error{Reason: "backendError"}
	invalid := &cbigquery.Error{Reason: "invalid"}

	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":               {nil, false},
		"http 503":          {&googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		"http 400":          {&googleapi.Error{Code: http.StatusBadRequest}, false},
		"grpc unavailable":  {status.Error(codes.Unavailable, "x"), true},
		"grpc invalid":      {status.Error(codes.InvalidArgument, "x"), false},
		"row backend error": {cbigquery.PutMultiError{{RowIndex: 0, Errors: cbigquery.MultiError{transient}}}, true},
		"row invalid":       {cbigquery.PutMultiError{{RowIndex: 0, Errors: cbigquery.MultiError{transient, invalid}}}, false},
		"wrapped":           {fmt.Errorf("insert: %w", &googleapi.Error{Code: http.StatusBadGateway}), true},
		"plain":             {errors.New("boom"), false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	require.NoError(t, err)
	require.True(t, nj.Valid)
	require.JSONEq(t, `{"foo":"bar"}`, nj.JSONVal)

	nj, err = EncodeJSON(nil)
	require.NoError(t, err)
	require.False(t, nj.Valid)

	nj, err = EncodeJSON(json.RawMessage(`{"foo":"baz"}`))
	require.NoError(t, err)
	require.Equal(t, `{"foo":"baz"}`, nj.JSONVal)

	nj, err = EncodeJSON([]byte{})
	require.NoError(t, err)
	require.False(t, nj.Valid)
}

type insertCall struct {
	table    string
	rowCount int
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
	rows      []any
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	var err error
	if n := len(f.calls); n < len(f.responses) {
		err = f.responses[n]
	}
	f.calls = append(f.calls, insertCall{table: table, rowCount: len(rows)})
	if err == nil {
		f.rows = append(f.rows, rows...)
	}
	return err
}

func newTestWriter(t *testing.T) (*SalesWriter, *fakeInserter, *[]time.Duration) {
	t.Helper()
	w, err := New(&pkgbigquery.Client{}, Config{SalesTable: "sales_events"})
	require.NoError(t, err)

	fake := &fakeInserter{}
	var slept []time.Duration
	w.client = fake
	w.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return w, fake, &slept
}
