package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"go.uber.org/atomic"
)

// JournalEntry locates one persisted event.
type JournalEntry struct {
	EventID   uuid.UUID            `json:"event_id"`
	Kind      interfaces.EventKind `json:"kind"`
	ContentID interfaces.ContentID `json:"content_id"`
}

// Journal persists protocol events to a storage backend in commit order.
// Record only enqueues; Run performs the writes.
type Journal struct {
	backend  interfaces.StorageBackend
	events   chan interfaces.Event
	stopping chan struct{}

	// stopped is set under the write lock once no sender can reach events.
	stateMu sync.RWMutex
	stopped bool

	mu    sync.RWMutex
	index []JournalEntry

	failed  atomic.Int64
	dropped atomic.Int64

	log *slog.Logger
}

// NewJournal creates a journal with room for bufferSize pending events.
func NewJournal(backend interfaces.StorageBackend, bufferSize int, log *slog.Logger) *Journal {
	return &Journal{
		backend:  backend,
		events:   make(chan interfaces.Event, bufferSize),
		stopping: make(chan struct{}),
		log:      log,
	}
}

// Record enqueues ev. It blocks while the buffer is full. Once the journal
// is stopping the event is dropped and counted instead; every recorded
// event is either persisted, counted as failed or counted as dropped.
func (j *Journal) Record(ev interfaces.Event) {
	j.stateMu.RLock()
	defer j.stateMu.RUnlock()

	if j.stopped {
		j.drop(ev)
		return
	}
	select {
	case j.events <- ev:
	case <-j.stopping:
		j.drop(ev)
	}
}

func (j *Journal) drop(ev interfaces.Event) {
	j.dropped.Inc()
	j.log.Warn("Journal stopped, dropping event", "eventId", ev.ID, "kind", ev.Kind)
}

// Run writes queued events until ctx is cancelled, then flushes whatever is
// still buffered. Run must be called at most once.
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case ev := <-j.events:
			j.persist(ctx, ev)
		case <-ctx.Done():
			j.stop()
			j.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

// stop wakes blocked senders, then waits for in-flight Record calls so
// nothing reaches the buffer after the final flush.
func (j *Journal) stop() {
	close(j.stopping)
	j.stateMu.Lock()
	j.stopped = true
	j.stateMu.Unlock()
}

func (j *Journal) flush(ctx context.Context) {
	for {
		select {
		case ev := <-j.events:
			j.persist(ctx, ev)
		default:
			return
		}
	}
}

func (j *Journal) persist(ctx context.Context, ev interfaces.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		j.failed.Inc()
		j.log.Error("Could not encode event", "eventId", ev.ID, "err", err)
		return
	}

	id, err := j.backend.Store(ctx, data, interfaces.EventType)
	if err != nil {
		j.failed.Inc()
		j.log.Error("Could not persist event", "eventId", ev.ID, "kind", ev.Kind, "err", err)
		return
	}

	j.mu.Lock()
	j.index = append(j.index, JournalEntry{EventID: ev.ID, Kind: ev.Kind, ContentID: id})
	j.mu.Unlock()

	j.log.Debug("Event persisted", "eventId", ev.ID, "kind", ev.Kind, "contentID", id.String())
}

// Entries returns the persisted events in commit order.
func (j *Journal) Entries() []JournalEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]JournalEntry(nil), j.index...)
}

// Fetch loads a persisted event.
func (j *Journal) Fetch(ctx context.Context, id interfaces.ContentID) (interfaces.Event, error) {
	var ev interfaces.Event

	data, err := j.backend.Fetch(ctx, id, interfaces.EventType)
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("could not decode event %s: %w", id, err)
	}
	return ev, nil
}

// Failed is the number of events that could not be persisted.
func (j *Journal) Failed() int64 {
	return j.failed.Load()
}

// Dropped is the number of events recorded after the journal stopped.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}
