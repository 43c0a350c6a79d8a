package studio

import (
	"sync"
	"sync/atomic"

	"github.com/voxcraft-labs/voxcraft/internal/dispatch"
	"github.com/voxcraft-labs/voxcraft/internal/engine"
	"github.com/voxcraft-labs/voxcraft/internal/history"
	"github.com/voxcraft-labs/voxcraft/internal/workitem"
)

// Session holds one feature area's mutable state: the current work
// items, which of them are selected, and the single-flight guard. One
// dispatch per feature area at a time; concurrent attempts get ErrBusy.
type Session struct {
	feature  string
	history  *history.Log
	progress *dispatch.Progress
	busy     atomic.Bool

	mu        sync.Mutex
	items     []workitem.Item
	selection *workitem.Selection
	stats     engine.Extraction
}

// SessionState is the client-facing snapshot of a feature area.
type SessionState struct {
	Feature  string          `json:"feature"`
	Items    []workitem.Item `json:"items"`
	Selected []int           `json:"selected"`
	Phase    string          `json:"phase"`
	Percent  int             `json:"percent"`
	Busy     bool            `json:"busy"`
}

func newSession(feature string, log *history.Log, progress *dispatch.Progress) *Session {
	return &Session{
		feature:   feature,
		history:   log,
		progress:  progress,
		selection: workitem.NewSelection(0),
	}
}

// SetItems replaces the work items and resets the selection to all of
// them, matching the everything-selected default after derivation.
func (s *Session) SetItems(items []workitem.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.selection = workitem.NewSelection(len(items))
}

func (s *Session) setStats(stats engine.Extraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

func (s *Session) Stats() engine.Extraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) Items() []workitem.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]workitem.Item(nil), s.items...)
}

// SelectedItems returns the selected items in ascending index order.
func (s *Session) SelectedItems() []workitem.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Apply(s.items)
}

func (s *Session) SelectedIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Indices()
}

func (s *Session) Toggle(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Toggle(index)
}

func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SelectAll()
}

func (s *Session) DeselectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.DeselectAll()
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	items := append([]workitem.Item(nil), s.items...)
	selected := s.selection.Indices()
	s.mu.Unlock()

	phase := s.progress.Phase()
	return SessionState{
		Feature:  s.feature,
		Items:    items,
		Selected: selected,
		Phase:    phase.String(),
		Percent:  phase.Percent(),
		Busy:     s.busy.Load(),
	}
}

// acquire claims the single-flight slot. Callers must release.
func (s *Session) acquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) release() {
	s.busy.Store(false)
}
