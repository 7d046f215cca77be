// Package flow is the funnel state machine. Every forward step emits one
// conversion event on both channels under a single event id; stepping back
// emits nothing.
package flow

import (
	"errors"
	"fmt"
)

// State is the step a session is on.
type State int

const (
	CollectingIdentity State = iota
	SelectingPlan
	StatingSource
	ReviewingAndConfirming
	Completed
)

var (
	// ErrCompleted is returned for any step on a finished session.
	ErrCompleted = errors.New("funnel already completed")
	// ErrInvalidStep is returned for an unknown or corrupt session state.
	ErrInvalidStep = errors.New("invalid funnel step")
)

var stateNames = [...]string{
	CollectingIdentity:     "CollectingIdentity",
	SelectingPlan:          "SelectingPlan",
	StatingSource:          "StatingSource",
	ReviewingAndConfirming: "ReviewingAndConfirming",
	Completed:              "Completed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Step is the one-based position shown to the visitor.
func (s State) Step() int { return int(s) + 1 }

// Back returns the previous state. The first state and Completed have none.
func (s State) Back() (State, bool) {
	if s <= CollectingIdentity || s >= Completed {
		return s, false
	}
	return s - 1, true
}

// ParseState is the inverse of String.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStep, name)
}
