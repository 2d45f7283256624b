package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/metrics"
)

// ServiceParams configure the maintenance loop.
type ServiceParams struct {
	Logger   *logger.Logger
	Schedule *Schedule
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Now      func() time.Time
}

// Service runs due maintenance jobs, one instance at a time across the
// fleet.
type Service struct {
	logg     *logger.Logger
	schedule *Schedule
	lock     Lock
	metrics  *metrics.CronJobMetrics
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Schedule == nil || params.Schedule.Tick() == 0 {
		return nil, fmt.Errorf("at least one scheduled job required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		schedule: params.Schedule,
		lock:     params.Lock,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// Run executes due jobs immediately, then on every schedule tick until ctx
// ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.schedule.Tick())
	defer ticker.Stop()

	for {
		if err := s.runDue(ctx); err != nil {
			s.logg.Error(ctx, "maintenance cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "maintenance loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runDue(ctx context.Context) error {
	now := s.now()
	due := s.schedule.Due(now)
	if len(due) == 0 {
		return nil
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	// Due jobs count as run whether this instance or the lock holder runs them.
	s.schedule.Mark(now, due...)
	if !locked {
		s.logg.Debug(ctx, "maintenance lock held elsewhere")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release maintenance lock", relErr)
		}
	}()

	var errs error
	for _, job := range due {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "maintenance.job"})
	started := time.Now()
	err := job.Run(ctx)
	s.metrics.Observe(job.Name(), started, err)

	ctx = s.logg.WithField(ctx, "duration_ms", time.Since(started).Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Info(ctx, "job completed")
	return nil
}
