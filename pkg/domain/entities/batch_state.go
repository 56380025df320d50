package entities

import (
	"fmt"
	"strings"
)

// BatchState is the lifecycle state of a production batch.
// The values are the backend's wire names.
type BatchState string

const (
	StatePlanned    BatchState = "planificada"
	StateInProgress BatchState = "en_progreso"
	StateCompleted  BatchState = "completada"

	// StateCancelled exists in the backend only; no operation of this module
	// moves a batch into it.
	StateCancelled BatchState = "cancelada"
)

// backendTransitions lists the moves the backend accepts from each state
var backendTransitions = map[BatchState][]BatchState{
	StatePlanned:    {StateInProgress, StateCompleted, StateCancelled},
	StateInProgress: {StateCompleted, StateCancelled},
	StateCompleted:  {},
	StateCancelled:  {},
}

// String method for BatchState
func (s BatchState) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known states
func (s BatchState) IsValid() bool {
	_, ok := backendTransitions[s]
	return ok
}

// IsTerminal reports whether no forward transition is exposed from s
func (s BatchState) IsTerminal() bool {
	return s == StateCompleted
}

// Next returns the target of a bulk transition issued from s.
// Any state other than planificada and en_progreso falls back to completada.
func (s BatchState) Next() BatchState {
	switch s {
	case StatePlanned:
		return StateInProgress
	case StateInProgress:
		return StateCompleted
	default:
		return StateCompleted
	}
}

// CanTransitionTo reports whether the backend accepts a move from s to target
func (s BatchState) CanTransitionTo(target BatchState) bool {
	for _, allowed := range backendTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ParseBatchState parses a state name, ignoring case and surrounding spaces
func ParseBatchState(s string) (BatchState, error) {
	state := BatchState(strings.ToLower(strings.TrimSpace(s)))
	if !state.IsValid() {
		return "", fmt.Errorf("%w: %q (expected planificada, en_progreso, completada or cancelada)", ErrInvalidState, s)
	}
	return state, nil
}
