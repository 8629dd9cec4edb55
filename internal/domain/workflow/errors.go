package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTerminalState is returned when a trigger is fired on a decided approval.
	// It wraps ErrInvalidTransition so callers can match either.
	ErrTerminalState = fmt.Errorf("%w: state is terminal", ErrInvalidTransition)
)
