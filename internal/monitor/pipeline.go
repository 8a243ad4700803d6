package monitor

import (
	"context"
	"sync"

	"github.com/okgrp/groupwatch/internal/logger"
	"github.com/okgrp/groupwatch/internal/repository"
)

// PipelineStatus describes one pipeline instance for the control surface.
type PipelineStatus struct {
	Running    bool   `json:"running"`
	Name       string `json:"name"`
	GroupCount int    `json:"group_count"`
}

// Pipeline owns one ingestion-persistence-aggregation instance: the sink,
// the summarizer and the delivery scheduler over a shared record store.
// Instances are independent, nothing here is process-global.
type Pipeline struct {
	name   string
	groups []string

	store      MessageStore
	sink       *Sink
	summarizer *Summarizer
	scheduler  *DeliveryScheduler
	log        *logger.Logger

	mu      sync.Mutex
	running bool
}

// NewPipeline assembles a pipeline from its components.
func NewPipeline(name string, groups []string, store MessageStore, sink *Sink, summarizer *Summarizer, scheduler *DeliveryScheduler, log *logger.Logger) *Pipeline {
	return &Pipeline{
		name:       name,
		groups:     groups,
		store:      store,
		sink:       sink,
		summarizer: summarizer,
		scheduler:  scheduler,
		log:        log,
	}
}

// Start marks the pipeline running. The sink worker is already draining at
// this point, Start exists so Status reflects the lifecycle.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.log.Info().Str("name", p.name).Msg("pipeline already running")
		return
	}
	p.running = true
	p.log.Info().
		Str("name", p.name).
		Int("groups", len(p.groups)).
		Msg("pipeline started")
}

// Stop cancels the delivery task and drains the sink.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.scheduler.Stop()
	p.sink.Close()
	p.log.Info().Str("name", p.name).Msg("pipeline stopped")
}

// Ingest is the producer-facing entry point, one call per inbound event.
func (p *Pipeline) Ingest(in IncomingMessage) {
	p.sink.Ingest(in)
}

// Configure replaces the delivery target, restarting the recurring task.
func (p *Pipeline) Configure(target DeliveryTarget) (*DeliveryTask, error) {
	return p.scheduler.Configure(target)
}

// CurrentDelivery returns the active delivery task, nil when idle.
func (p *Pipeline) CurrentDelivery() *DeliveryTask {
	return p.scheduler.Current()
}

// Stats passes through to the record store.
func (p *Pipeline) Stats(ctx context.Context) (*repository.Stats, error) {
	return p.store.Stats(ctx)
}

// Messages passes a raw query through to the record store.
func (p *Pipeline) Messages(ctx context.Context, opts repository.QueryOptions) ([]repository.Message, error) {
	return p.store.Query(ctx, opts)
}

// Summary builds an on-demand report for the trailing window.
func (p *Pipeline) Summary(ctx context.Context, windowHours int) (*SummaryReport, error) {
	return p.summarizer.WindowSummary(ctx, windowHours)
}

// Status reports the pipeline lifecycle state.
func (p *Pipeline) Status() PipelineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PipelineStatus{
		Running:    p.running,
		Name:       p.name,
		GroupCount: len(p.groups),
	}
}
