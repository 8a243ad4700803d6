package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okgrp/groupwatch/internal/logger"
)

// defaults for the recurring delivery task
const (
	defaultBackoff     = 60 * time.Second
	defaultWindowHours = 1
)

// DeliveryTarget is the configured endpoint and cadence the scheduler
// pushes summaries to.
type DeliveryTarget struct {
	URL      string
	Interval time.Duration
}

// DeliveryTask is an active recurring delivery task.
type DeliveryTask struct {
	ID        uuid.UUID
	Target    DeliveryTarget
	StartedAt time.Time
}

// SummarySource produces the report for one tick.
type SummarySource interface {
	WindowSummary(ctx context.Context, windowHours int) (*SummaryReport, error)
}

// Deliverer pushes a report to an endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, url string, report *SummaryReport) error
}

// Notifier receives delivery outcomes, e.g. for broadcasting to UI clients.
type Notifier interface {
	SummaryDelivered(report *SummaryReport, target DeliveryTarget)
	DeliveryFailed(target DeliveryTarget, err error)
}

// SchedulerOptions tune the delivery scheduler. Zero values pick the
// defaults (1h window, 60s failure backoff, no notifier).
type SchedulerOptions struct {
	WindowHours int
	Backoff     time.Duration
	Notifier    Notifier
}

// DeliveryScheduler owns the single recurring summary task of a pipeline.
// Configure atomically replaces the running task: the old task is cancelled
// and fully drained before the new one starts, so ticks from old and new
// configurations never interleave.
type DeliveryScheduler struct {
	source    SummarySource
	deliverer Deliverer
	notifier  Notifier
	log       *logger.Logger

	windowHours int
	backoff     time.Duration

	// configMu serializes Configure/Stop, mu guards the task handle
	configMu sync.Mutex
	mu       sync.Mutex
	current  *DeliveryTask
	cancelFn context.CancelFunc
	done     chan struct{}
}

// NewDeliveryScheduler creates an idle scheduler.
func NewDeliveryScheduler(source SummarySource, deliverer Deliverer, log *logger.Logger, opts SchedulerOptions) *DeliveryScheduler {
	if opts.WindowHours <= 0 {
		opts.WindowHours = defaultWindowHours
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	return &DeliveryScheduler{
		source:      source,
		deliverer:   deliverer,
		notifier:    opts.Notifier,
		log:         log,
		windowHours: opts.WindowHours,
		backoff:     opts.Backoff,
	}
}

// Configure validates the target, cancels any running task and starts a new
// recurring one. Validation failure leaves the current task untouched.
func (s *DeliveryScheduler) Configure(target DeliveryTarget) (*DeliveryTask, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	s.stopCurrent()

	// Run from a background context: the task must outlive whatever
	// request triggered the reconfiguration.
	ctx, cancel := context.WithCancel(context.Background())
	task := &DeliveryTask{
		ID:        uuid.New(),
		Target:    target,
		StartedAt: time.Now(),
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.current = task
	s.cancelFn = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		s.run(ctx, task)
		close(done)

		s.mu.Lock()
		if s.current != nil && s.current.ID == task.ID {
			s.current = nil
			s.cancelFn = nil
			s.done = nil
		}
		s.mu.Unlock()
	}()

	s.log.Info().
		Str("task_id", task.ID.String()).
		Str("endpoint", target.URL).
		Dur("interval", target.Interval).
		Msg("delivery task scheduled")

	return task, nil
}

// Stop cancels the current task. Safe to call when idle.
func (s *DeliveryScheduler) Stop() {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.stopCurrent()
}

// Current returns the active task, or nil when idle.
func (s *DeliveryScheduler) Current() *DeliveryTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// stopCurrent cancels the running task and waits for it to exit.
// Callers must hold configMu.
func (s *DeliveryScheduler) stopCurrent() {
	s.mu.Lock()
	cancel := s.cancelFn
	done := s.done
	s.cancelFn = nil
	s.current = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// run is the recurring task body: sleep, summarize, deliver, repeat.
// Delivery failures back off briefly and the loop continues; only
// cancellation ends it.
func (s *DeliveryScheduler) run(ctx context.Context, task *DeliveryTask) {
	for {
		if !sleep(ctx, task.Target.Interval) {
			return
		}

		report, err := s.source.WindowSummary(ctx, s.windowHours)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error().Err(err).Msg("failed to build summary")
			if !sleep(ctx, s.backoff) {
				return
			}
			continue
		}

		if ctx.Err() != nil {
			return
		}

		if err := s.deliverer.Deliver(ctx, task.Target.URL, report); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error().
				Err(err).
				Str("endpoint", task.Target.URL).
				Msg("summary delivery failed")
			if s.notifier != nil {
				s.notifier.DeliveryFailed(task.Target, err)
			}
			if !sleep(ctx, s.backoff) {
				return
			}
			continue
		}

		s.log.Info().
			Str("endpoint", task.Target.URL).
			Int("total_messages", report.TotalMessages).
			Msg("summary delivered")
		if s.notifier != nil {
			s.notifier.SummaryDelivered(report, task.Target)
		}
	}
}

// sleep waits for d or cancellation. Returns false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
