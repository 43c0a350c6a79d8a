package history

import (
	"context"
	"sync"
)

// MemoryBackend keeps logs in process memory. It backs tests and any
// deployment that opts out of durable history.
type MemoryBackend struct {
	mu   sync.Mutex
	logs map[string][]Entry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{logs: make(map[string][]Entry)}
}

func (m *MemoryBackend) Append(_ context.Context, feature string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[feature] = append(m.logs[feature], e)
	return nil
}

func (m *MemoryBackend) Load(_ context.Context, feature string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, len(m.logs[feature]))
	copy(entries, m.logs[feature])
	return entries, nil
}

func (m *MemoryBackend) Clear(_ context.Context, feature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, feature)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
