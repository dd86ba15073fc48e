package completion

import (
	"strings"
	"sync"

	"github.com/goliatone/go-sequencer"
)

// Outcome classifies a completion signal.
type Outcome int

const (
	// First is the authoritative completion of a step within a round.
	First Outcome = iota + 1
	// Duplicate is any later signal for a step already completed.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case First:
		return "first"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Registry counts completion signals per step within one round.
type Registry struct {
	mu     sync.Mutex
	counts map[sequencer.StepKey]int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counts: make(map[sequencer.StepKey]int),
	}
}

// Record increments the counter for key and reports First when this is the
// first signal seen for it, Duplicate otherwise.
func (r *Registry) Record(key sequencer.StepKey) Outcome {
	key = normalize(key)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[sequencer.StepKey]int)
	}
	r.counts[key]++
	if r.counts[key] == 1 {
		return First
	}
	return Duplicate
}

// Count returns how many signals were recorded for key.
func (r *Registry) Count(key sequencer.StepKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[normalize(key)]
}

// Len returns the number of distinct steps recorded.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.counts)
}

// Reset empties the registry for a new round.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = make(map[sequencer.StepKey]int)
}

func normalize(key sequencer.StepKey) sequencer.StepKey {
	return sequencer.StepKey(strings.TrimSpace(string(key)))
}
