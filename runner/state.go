package runner

// State is the sequencer's position in its dispatch cycle.
type State int32

const (
	// StateIdle waits for a round to begin.
	StateIdle State = iota
	// StateDispatching has a step selected and its controller initializing.
	StateDispatching
	// StateRunning waits for the first completion signal of the step.
	StateRunning
	// StateAdvancing moves the cursor past a completed step.
	StateAdvancing
	// StateRoundComplete waits for the restart timer.
	StateRoundComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateRunning:
		return "running"
	case StateAdvancing:
		return "advancing"
	case StateRoundComplete:
		return "round_complete"
	default:
		return "unknown"
	}
}
