// Package sim runs guard patrols over a level for previewing layouts.
package sim

// State represents the current session state.
type State int

const (
	// StateRunning advances agents every step.
	StateRunning State = iota
	// StatePaused keeps agents where they are.
	StatePaused
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
