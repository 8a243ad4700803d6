// Package publisher bridges the ingestion sink to the NATS event bus.
package publisher

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/okgrp/groupwatch/internal/monitor"
)

// SubjectMessageStored is the subject stored-message events go out on.
const SubjectMessageStored = "messages.stored"

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements monitor.EventPublisher over JetStream. Publishing
// is rate limited so a burst of ingested messages doesn't flood the bus.
type NATSPublisher struct {
	client  NATSClient
	limiter *rate.Limiter
}

// NewNATSPublisher creates a publisher over an established client.
// rps caps the sustained event rate; burst allows short spikes through.
func NewNATSPublisher(client NATSClient, rps float64, burst int) *NATSPublisher {
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = 10
	}
	return &NATSPublisher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// PublishMessageStored publishes a stored-message event. Blocks on the rate
// limiter; cancellation of ctx aborts the wait.
func (p *NATSPublisher) PublishMessageStored(ctx context.Context, event monitor.MessageStoredEvent) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if err := p.client.Publish(ctx, SubjectMessageStored, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
