package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mylittlestore/pos-backend/internal/orders"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

const (
	defaultAbandonedAfter = 12 * time.Hour
	abandonedBatchSize    = 200
)

type orderDeleter interface {
	Delete(ctx context.Context, id, storeID, memberID uuid.UUID) error
}

// AbandonedOrderJobParams configure the sweep of seated orders that never
// got a line. Orders is the regular order service so stock, lines and the
// table are released the same way an operator delete does.
type AbandonedOrderJobParams struct {
	Logger *logger.Logger
	Finder orders.AbandonedFinder
	Orders orderDeleter
	After  time.Duration
}

func NewAbandonedOrderJob(params AbandonedOrderJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Finder == nil:
		return nil, fmt.Errorf("abandoned order finder required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order service required")
	}
	after := params.After
	if after <= 0 {
		after = defaultAbandonedAfter
	}
	return &abandonedOrderJob{
		logg:   params.Logger,
		finder: params.Finder,
		orders: params.Orders,
		after:  after,
		now:    time.Now,
	}, nil
}

type abandonedOrderJob struct {
	logg   *logger.Logger
	finder orders.AbandonedFinder
	orders orderDeleter
	after  time.Duration
	now    func() time.Time
}

func (j *abandonedOrderJob) Name() string { return "abandoned-orders" }

// Run deletes every abandoned order seated before the cutoff. Orders that
// changed since they were listed are skipped.
func (j *abandonedOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	rows, err := j.finder.ListAbandoned(ctx, cutoff, abandonedBatchSize)
	if err != nil {
		return fmt.Errorf("list abandoned orders: %w", err)
	}

	var errs error
	released := 0
	for _, row := range rows {
		err := j.orders.Delete(ctx, row.ID, row.StoreID, uuid.Nil)
		switch {
		case err == nil:
			released++
		case skippable(err):
			j.logg.Warn(j.logg.WithOrderID(ctx, row.ID.String()), "abandoned order changed, skipping")
		default:
			errs = multierr.Append(errs, fmt.Errorf("delete order %s: %w", row.ID, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"found":    len(rows),
		"released": released,
	}), "abandoned order sweep complete")
	return errs
}

func skippable(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeConflict, pkgerrors.CodeStateConflict, pkgerrors.CodeNotFound:
		return true
	}
	return false
}
