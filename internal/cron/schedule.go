package cron

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Job is one maintenance task. Run must be safe to repeat.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Schedule tracks when each job last ran and which are due.
type Schedule struct {
	mu      sync.Mutex
	entries []*entry
}

func NewSchedule() *Schedule {
	return &Schedule{}
}

// Add registers job to run once per every. Job names are unique.
func (s *Schedule) Add(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if every <= 0 {
		return fmt.Errorf("%s: cadence must be positive", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name() == name {
			return fmt.Errorf("%s: already scheduled", name)
		}
	}
	s.entries = append(s.entries, &entry{job: job, every: every})
	return nil
}

// Due returns jobs whose cadence has elapsed at now, in the order they were
// added. A job that never ran is always due.
func (s *Schedule) Due(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Job
	for _, e := range s.entries {
		if e.lastRun.IsZero() || !now.Before(e.lastRun.Add(e.every)) {
			due = append(due, e.job)
		}
	}
	return due
}

// Mark records that the named jobs ran (or were run elsewhere) at now.
func (s *Schedule) Mark(now time.Time, jobs ...Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		for _, e := range s.entries {
			if e.job == job {
				e.lastRun = now
			}
		}
	}
}

// Tick is the shortest cadence, zero when nothing is scheduled.
func (s *Schedule) Tick() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tick time.Duration
	for _, e := range s.entries {
		if tick == 0 || e.every < tick {
			tick = e.every
		}
	}
	return tick
}
