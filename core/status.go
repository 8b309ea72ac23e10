package core

import "fmt"

// Status is the session-level state machine value.
//
// Transitions: pending → running → {completed, completed_partial, failed,
// cancelled}. Terminal states are final; attempting a transition out of one
// is a programming-contract violation surfaced as ErrTerminalState.
type Status string

const (
	// StatusPending marks a created session that has not started dispatch.
	StatusPending Status = "pending"
	// StatusRunning marks a session with dispatch in progress.
	StatusRunning Status = "running"
	// StatusCompleted marks a session in which every selected, applicable
	// agent succeeded.
	StatusCompleted Status = "completed"
	// StatusCompletedPartial marks a session that produced usable results
	// alongside at least one failure, limit skip or safety block.
	StatusCompletedPartial Status = "completed_partial"
	// StatusFailed marks a session that produced no usable findings: every
	// selected agent failed fatally, or configuration prevented dispatch.
	StatusFailed Status = "failed"
	// StatusCancelled marks a session stopped by an external cancellation
	// signal before completion.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// validTransitions is the closed transition table of the session state machine.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusCompletedPartial, StatusFailed, StatusCancelled},
}

// CanTransition reports whether from → to is a legal state-machine move.
func (s Status) CanTransition(to Status) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns ErrTerminalState for moves out of terminal states
// and a generic contract error for any other illegal move.
func checkTransition(from, to Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: cannot transition %s → %s", ErrTerminalState, from, to)
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal session transition %s → %s", from, to)
	}
	return nil
}
