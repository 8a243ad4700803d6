package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/okgrp/groupwatch/internal/logger"
	"github.com/okgrp/groupwatch/internal/repository"
)

// mediaPlaceholder is stored when a message carries media but no text.
const mediaPlaceholder = "[media]"

// IncomingMessage is what the event producer hands the sink, one call per
// inbound event. Sender fields are nil when the source has no identifiable
// sender.
type IncomingMessage struct {
	GroupID         int64
	GroupName       string
	SenderID        *int64
	SenderName      *string
	SourceMessageID int64
	Content         string
	HasMedia        bool
}

// MessageAppender is the write side of the record store.
type MessageAppender interface {
	Append(ctx context.Context, m *repository.Message) error
}

// MessageStoredEvent is published to the event bus after a successful append.
type MessageStoredEvent struct {
	RecordID  int64     `json:"record_id"`
	GroupID   int64     `json:"group_id"`
	GroupName string    `json:"group_name"`
	SenderID  *int64    `json:"sender_id,omitempty"`
	HasMedia  bool      `json:"has_media"`
	StoredAt  time.Time `json:"stored_at"`
}

// EventPublisher publishes stored-message events.
type EventPublisher interface {
	PublishMessageStored(ctx context.Context, event MessageStoredEvent) error
}

// Sink is the single ingestion entry point. Persistence runs on one worker
// goroutine behind a buffered queue so the producer's event loop is never
// blocked beyond the channel handoff. A storage failure drops the record and
// is logged, the stream keeps draining.
type Sink struct {
	store     MessageAppender
	publisher EventPublisher // optional, nil disables bus events
	log       *logger.Logger

	queue     chan *repository.Message
	wg        sync.WaitGroup
	closeOnce sync.Once
	now       func() time.Time

	// mu guards closed and is held for reading across the queue send, so
	// Close cannot close the queue under an in-flight Ingest.
	mu     sync.RWMutex
	closed bool
}

// NewSink creates a sink and starts its worker. queueSize bounds the number
// of records waiting for persistence before Ingest applies backpressure.
func NewSink(store MessageAppender, publisher EventPublisher, log *logger.Logger, queueSize int) *Sink {
	if queueSize <= 0 {
		queueSize = 256
	}

	s := &Sink{
		store:     store,
		publisher: publisher,
		log:       log,
		queue:     make(chan *repository.Message, queueSize),
		now:       time.Now,
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Ingest stamps the ingestion timestamp, builds the record and hands it to
// the worker. When the queue is full it logs a warning and blocks until
// space frees up. After Close the record is logged and dropped; the call is
// always safe.
func (s *Sink) Ingest(in IncomingMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.log.Warn().
			Int64("group_id", in.GroupID).
			Msg("sink closed, message dropped")
		return
	}

	content := in.Content
	if content == "" && in.HasMedia {
		content = mediaPlaceholder
	}

	m := &repository.Message{
		GroupID:         in.GroupID,
		GroupName:       in.GroupName,
		SenderID:        in.SenderID,
		SenderName:      in.SenderName,
		SourceMessageID: in.SourceMessageID,
		Content:         content,
		Timestamp:       s.now(),
		HasMedia:        in.HasMedia,
	}

	select {
	case s.queue <- m:
	default:
		s.log.Warn().
			Int64("group_id", in.GroupID).
			Msg("ingest queue full, applying backpressure")
		s.queue <- m
	}
}

// Close drains pending records and stops the worker. Ingest calls that
// arrive after Close drop their records.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})
	s.wg.Wait()
}

func (s *Sink) run() {
	defer s.wg.Done()

	ctx := context.Background()
	for m := range s.queue {
		if err := s.store.Append(ctx, m); err != nil {
			s.log.Error().
				Err(err).
				Int64("group_id", m.GroupID).
				Int64("message_id", m.SourceMessageID).
				Msg("failed to store message, record dropped")
			continue
		}

		s.log.Debug().
			Int64("id", m.ID).
			Int64("group_id", m.GroupID).
			Msg("message stored")

		if s.publisher != nil {
			event := MessageStoredEvent{
				RecordID:  m.ID,
				GroupID:   m.GroupID,
				GroupName: m.GroupName,
				SenderID:  m.SenderID,
				HasMedia:  m.HasMedia,
				StoredAt:  m.Timestamp,
			}
			if err := s.publisher.PublishMessageStored(ctx, event); err != nil {
				s.log.Warn().Err(err).Msg("failed to publish message event")
			}
		}
	}
}
