package dispatch

import (
	"sync"
	"time"

	"github.com/voxcraft-labs/voxcraft/internal/protocol"
)

// Phase is the coarse dispatch lifecycle state. The remote engine
// offers no item-level progress signal, so percentages are fixed
// per-phase approximations and carry no correctness meaning.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseAwaiting
	PhaseFinalizing
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseAwaiting:
		return "awaiting"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseComplete:
		return "complete"
	default:
		return "idle"
	}
}

func (p Phase) Percent() int {
	switch p {
	case PhaseSubmitting:
		return 10
	case PhaseAwaiting:
		return 40
	case PhaseFinalizing:
		return 85
	case PhaseComplete:
		return 100
	default:
		return 0
	}
}

// Publisher receives phase transitions, normally onto the bus.
type Publisher interface {
	PublishProgress(evt protocol.ProgressEvent)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(protocol.ProgressEvent)

func (f PublisherFunc) PublishProgress(evt protocol.ProgressEvent) { f(evt) }

// Progress tracks one feature area's dispatch phase. After Finish the
// terminal state stays visible for the grace period, then the reporter
// auto-resets to idle.
type Progress struct {
	feature    string
	publisher  Publisher
	resetAfter time.Duration
	clock      func() time.Time

	mu    sync.Mutex
	phase Phase
	reset *time.Timer
}

func NewProgress(feature string, publisher Publisher, resetAfter time.Duration) *Progress {
	return &Progress{
		feature:    feature,
		publisher:  publisher,
		resetAfter: resetAfter,
		clock:      time.Now,
	}
}

func (p *Progress) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Set moves the reporter to phase and publishes the transition. Any
// pending auto-reset is cancelled so a new dispatch starting inside
// the grace window is not wiped back to idle.
func (p *Progress) Set(phase Phase) {
	p.mu.Lock()
	if p.reset != nil {
		p.reset.Stop()
		p.reset = nil
	}
	p.phase = phase
	p.mu.Unlock()
	p.publish(phase)
}

// Finish marks the dispatch done. Success lands on complete(100),
// failure keeps the last phase; either way the reporter returns to
// idle after the grace period so the terminal state is briefly
// visible.
func (p *Progress) Finish(success bool) {
	if success {
		p.Set(PhaseComplete)
	}

	p.mu.Lock()
	if p.reset != nil {
		p.reset.Stop()
	}
	p.reset = time.AfterFunc(p.resetAfter, func() {
		p.mu.Lock()
		p.phase = PhaseIdle
		p.reset = nil
		p.mu.Unlock()
		p.publish(PhaseIdle)
	})
	p.mu.Unlock()
}

func (p *Progress) publish(phase Phase) {
	if p.publisher == nil {
		return
	}
	p.publisher.PublishProgress(protocol.ProgressEvent{
		Feature:   p.feature,
		Phase:     phase.String(),
		Percent:   phase.Percent(),
		Timestamp: p.clock().UTC(),
	})
}
