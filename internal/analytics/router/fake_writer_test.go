package router

import (
	"context"

	"github.com/mylittlestore/pos-backend/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.SalesEventRow
	err      error
}

func (f *fakeWriter) InsertSales(_ context.Context, rows ...types.SalesEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}
