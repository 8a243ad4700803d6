package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okgrp/groupwatch/internal/logger"
	"github.com/okgrp/groupwatch/internal/repository"
)

// mockAppender records appended messages and can fail selectively
type mockAppender struct {
	mu       sync.Mutex
	appended []*repository.Message
	failNext int // number of upcoming appends to fail
	nextID   int64
}

func (m *mockAppender) Append(_ context.Context, msg *repository.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return repository.ErrStorageUnavailable
	}
	m.nextID++
	msg.ID = m.nextID
	m.appended = append(m.appended, msg)
	return nil
}

func (m *mockAppender) stored() []*repository.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*repository.Message(nil), m.appended...)
}

// mockPublisher records published events
type mockPublisher struct {
	mu     sync.Mutex
	events []MessageStoredEvent
	err    error
}

func (m *mockPublisher) PublishMessageStored(_ context.Context, event MessageStoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockPublisher) published() []MessageStoredEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MessageStoredEvent(nil), m.events...)
}

func incoming(groupID int64, content string, hasMedia bool) IncomingMessage {
	return IncomingMessage{
		GroupID:         groupID,
		GroupName:       "gophers",
		SenderID:        sender(1),
		SourceMessageID: 100,
		Content:         content,
		HasMedia:        hasMedia,
	}
}

func TestSink_IngestStoresRecord(t *testing.T) {
	appender := &mockAppender{}
	sink := NewSink(appender, nil, logger.Nop(), 8)

	before := time.Now()
	sink.Ingest(incoming(10, "hello", false))
	sink.Close()

	stored := appender.stored()
	if len(stored) != 1 {
		t.Fatalf("stored %d records, want 1", len(stored))
	}

	m := stored[0]
	if m.GroupID != 10 || m.Content != "hello" {
		t.Errorf("stored record = %+v", m)
	}
	if m.Timestamp.Before(before) || m.Timestamp.After(time.Now()) {
		t.Errorf("timestamp %v not stamped at ingestion time", m.Timestamp)
	}
}

func TestSink_MediaPlaceholder(t *testing.T) {
	appender := &mockAppender{}
	sink := NewSink(appender, nil, logger.Nop(), 8)

	sink.Ingest(incoming(10, "", true))
	sink.Ingest(incoming(10, "", false))
	sink.Close()

	stored := appender.stored()
	if len(stored) != 2 {
		t.Fatalf("stored %d records, want 2", len(stored))
	}
	if stored[0].Content != mediaPlaceholder {
		t.Errorf("media record content = %q, want %q", stored[0].Content, mediaPlaceholder)
	}
	if stored[1].Content != "" {
		t.Errorf("empty text record content = %q, want empty", stored[1].Content)
	}
}

func TestSink_StorageFailureDoesNotHaltStream(t *testing.T) {
	appender := &mockAppender{failNext: 1}
	sink := NewSink(appender, nil, logger.Nop(), 8)

	sink.Ingest(incoming(10, "dropped", false))
	sink.Ingest(incoming(10, "kept", false))
	sink.Close()

	stored := appender.stored()
	if len(stored) != 1 {
		t.Fatalf("stored %d records, want 1", len(stored))
	}
	if stored[0].Content != "kept" {
		t.Errorf("surviving record content = %q, want kept", stored[0].Content)
	}
}

func TestSink_PublishesStoredEvents(t *testing.T) {
	appender := &mockAppender{}
	publisher := &mockPublisher{}
	sink := NewSink(appender, publisher, logger.Nop(), 8)

	sink.Ingest(incoming(10, "hello", false))
	sink.Close()

	events := publisher.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].GroupID != 10 || events[0].RecordID == 0 {
		t.Errorf("event = %+v", events[0])
	}
}

func TestSink_PublisherErrorIsAbsorbed(t *testing.T) {
	appender := &mockAppender{}
	publisher := &mockPublisher{err: errors.New("bus down")}
	sink := NewSink(appender, publisher, logger.Nop(), 8)

	sink.Ingest(incoming(10, "one", false))
	sink.Ingest(incoming(10, "two", false))
	sink.Close()

	if got := len(appender.stored()); got != 2 {
		t.Errorf("stored %d records, want 2", got)
	}
}

func TestSink_IngestAfterCloseDropsWithoutPanic(t *testing.T) {
	appender := &mockAppender{}
	sink := NewSink(appender, nil, logger.Nop(), 8)
	sink.Close()

	sink.Ingest(incoming(10, "late", false))

	if got := len(appender.stored()); got != 0 {
		t.Errorf("stored %d records after close, want 0", got)
	}
}

func TestSink_CloseDuringConcurrentIngest(t *testing.T) {
	appender := &mockAppender{}
	// queue of 1 keeps some producers parked in the backpressure branch
	// while Close runs
	sink := NewSink(appender, nil, logger.Nop(), 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(group int64) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				sink.Ingest(incoming(group, "concurrent", false))
			}
		}(int64(i + 1))
	}

	time.Sleep(5 * time.Millisecond)
	sink.Close()
	wg.Wait()

	// records accepted before the close must all be persisted
	for _, m := range appender.stored() {
		if m.Content != "concurrent" {
			t.Fatalf("unexpected record %+v", m)
		}
	}
}

func TestSink_BackpressureNeverDrops(t *testing.T) {
	appender := &mockAppender{}
	// queue of 1 forces the backpressure path under a burst
	sink := NewSink(appender, nil, logger.Nop(), 1)

	const burst = 50
	for i := 0; i < burst; i++ {
		sink.Ingest(incoming(10, "burst", false))
	}
	sink.Close()

	if got := len(appender.stored()); got != burst {
		t.Errorf("stored %d records, want %d", got, burst)
	}
}
