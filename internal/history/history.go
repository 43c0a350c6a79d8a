package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FormatVersion tags every persisted entry. Load discards entries
// written with a different version instead of guessing at their shape.
const FormatVersion = 1

type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindError    Kind = "error"
)

// Entry is one immutable record in a feature area's interaction log.
// Request entries share a CorrelationID with the response or error
// entry that answers them; pairing never relies on adjacency.
type Entry struct {
	ID            int64           `json:"id"`
	Kind          Kind            `json:"kind"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Backend persists one log per feature namespace. Implementations:
// SQLite for the daemon, memory for tests.
type Backend interface {
	Append(ctx context.Context, feature string, e Entry) error
	Load(ctx context.Context, feature string) ([]Entry, error)
	Clear(ctx context.Context, feature string) error
	Close() error
}

// Log is the append-only interaction history of one feature area.
// Appends are serialized; ids are monotonic within a session even when
// two appends land in the same wall-clock millisecond.
type Log struct {
	feature string
	backend Backend
	log     *slog.Logger
	clock   func() time.Time
	window  int

	mu      sync.Mutex
	entries []Entry
	lastID  int64
}

// Open rehydrates the log from the backend. A missing or unreadable
// log is never fatal: the feature starts with an empty history.
func Open(ctx context.Context, feature string, backend Backend, window int, log *slog.Logger) *Log {
	l := &Log{
		feature: feature,
		backend: backend,
		log:     log.With(slog.String("component", "history"), slog.String("feature", feature)),
		clock:   time.Now,
		window:  window,
	}
	entries, err := backend.Load(ctx, feature)
	if err != nil {
		l.log.Warn("history load failed, starting empty", slog.String("error", err.Error()))
		return l
	}
	l.entries = entries
	if n := len(entries); n > 0 {
		l.lastID = entries[n-1].ID
	}
	return l
}

func (l *Log) Feature() string { return l.feature }

// Append records one entry and persists it synchronously. Persistence
// is best-effort: a storage failure keeps the in-memory entry and is
// reported through the returned error, but earlier entries are never
// affected.
func (l *Log) Append(ctx context.Context, kind Kind, correlationID string, payload any) (Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal history payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	id := now.UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	entry := Entry{
		ID:            id,
		Kind:          kind,
		CorrelationID: correlationID,
		Payload:       data,
		CreatedAt:     now.UTC(),
	}
	l.entries = append(l.entries, entry)
	l.lastID = id

	if err := l.backend.Append(ctx, l.feature, entry); err != nil {
		l.log.Warn("history persist failed", slog.Int64("entry_id", id), slog.String("error", err.Error()))
		return entry, fmt.Errorf("persist history entry: %w", err)
	}
	return entry, nil
}

// View returns the entries in append order. When full is false only
// the most recent window entries are returned and elided reports how
// many older entries exist beyond the window.
func (l *Log) View(full bool) (entries []Entry, elided int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if !full && len(l.entries) > l.window {
		start = len(l.entries) - l.window
		elided = start
	}
	entries = make([]Entry, len(l.entries)-start)
	copy(entries, l.entries[start:])
	return entries, elided
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear empties both the in-memory sequence and the durable copy.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.backend.Clear(ctx, l.feature); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	l.entries = nil
	return nil
}
