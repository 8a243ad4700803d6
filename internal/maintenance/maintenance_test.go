package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okgrp/groupwatch/internal/logger"
)

type countingStore struct {
	calls atomic.Int32
}

func (s *countingStore) Maintenance(_ context.Context) error {
	s.calls.Add(1)
	return nil
}

func TestJob_RunsOnInterval(t *testing.T) {
	store := &countingStore{}

	job, err := New(store, logger.Nop(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	job.Start()
	defer job.Stop()

	deadline := time.After(2 * time.Second)
	for store.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("maintenance never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestJob_DefaultInterval(t *testing.T) {
	job, err := New(&countingStore{}, logger.Nop(), 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := job.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
