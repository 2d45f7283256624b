package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mylittlestore/pos-backend/pkg/logger"
)

const (
	defaultOutboxRetention  = 14 * 24 * time.Hour
	defaultTerminalAttempts = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

// OutboxRetentionJobParams configure the outbox cleanup. TerminalAttempts
// should match the publisher's max attempts so parked rows age out too.
type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Repository       outboxRetentionRepo
	Retention        time.Duration
	TerminalAttempts int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	attempts := params.TerminalAttempts
	if attempts <= 0 {
		attempts = defaultTerminalAttempts
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		attempts:  attempts,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	retention time.Duration
	attempts  int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.attempts)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":            cutoff,
		"terminal_attempts": j.attempts,
		"rows_deleted":      deleted,
	}), "outbox retention cleanup complete")
	return nil
}
