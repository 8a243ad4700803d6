// Package maintenance runs periodic database housekeeping.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/okgrp/groupwatch/internal/logger"
)

// DefaultInterval is how often housekeeping runs.
const DefaultInterval = 24 * time.Hour

// Store is the maintenance side of the record store.
type Store interface {
	Maintenance(ctx context.Context) error
}

// Job owns the recurring housekeeping task.
type Job struct {
	scheduler gocron.Scheduler
	log       *logger.Logger
}

// New creates the housekeeping job. A non-positive interval picks the
// default of one day.
func New(store Store, log *logger.Logger, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if err := store.Maintenance(ctx); err != nil {
				log.Warn().Err(err).Msg("database maintenance failed")
				return
			}
			log.Info().Msg("database maintenance completed")
		}),
		gocron.WithName("db-maintenance"),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule maintenance job: %w", err)
	}

	return &Job{scheduler: s, log: log}, nil
}

// Start begins running the job on its interval.
func (j *Job) Start() {
	j.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running pass to finish.
func (j *Job) Stop() error {
	return j.scheduler.Shutdown()
}
