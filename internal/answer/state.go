package answer

// State tracks a question through its lifecycle. Transitions are linear
// until Generating, which ends in exactly one of Completed, Failed, or
// Cancelled.
type State int

const (
	StateReceived State = iota
	StateRetrieving
	StateContextAssembled
	StateGenerating
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = map[State]string{
	StateReceived:         "received",
	StateRetrieving:       "retrieving",
	StateContextAssembled: "context_assembled",
	StateGenerating:       "generating",
	StateCompleted:        "completed",
	StateFailed:           "failed",
	StateCancelled:        "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the state ends a turn.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
