package workflow

import "context"

// StateMachine tracks the state of a single approval and validates its transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed.
	// It returns the transition that took place.
	Fire(ctx context.Context, trigger Trigger) (Transition, error)

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

// Transition describes a completed state change
type Transition struct {
	From    State
	To      State
	Trigger Trigger
}
