package larva

import "errors"

var (
	// ErrInvalidState is returned when the dispatcher meets a state it has no
	// handler for. It always indicates a programming defect.
	ErrInvalidState = errors.New("larva: invalid state")

	// ErrNonPositiveConcentration is returned when the arena reports a
	// concentration at or below zero, for which the log-derivative is undefined.
	ErrNonPositiveConcentration = errors.New("larva: non-positive concentration")

	// ErrDegenerateBody is returned when the head sits on the joint and no
	// heading can be derived from the body.
	ErrDegenerateBody = errors.New("larva: head and joint coincide")

	// ErrInvalidParams is returned for parameter sets a larva cannot run with.
	ErrInvalidParams = errors.New("larva: invalid parameters")

	// ErrTimestepMismatch is returned when a tick carries a timestep other
	// than the one the kernels were built for.
	ErrTimestepMismatch = errors.New("larva: timestep differs from construction")
)
