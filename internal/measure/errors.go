package measure

import "errors"

// Configuration errors, all surfaced before any device interaction.
var (
	// ErrNoSettables indicates Configure was given an empty settable list.
	ErrNoSettables = errors.New("measure: no settables configured")

	// ErrNoGettables indicates Configure was given an empty gettable list.
	ErrNoGettables = errors.New("measure: no gettables configured")

	// ErrNoComponents indicates a gettable that declares no data components.
	ErrNoComponents = errors.New("measure: gettable declares no components")

	// ErrEmptyDomain indicates a setpoint domain with zero points or zero dimensions.
	ErrEmptyDomain = errors.New("measure: empty setpoint domain")

	// ErrLengthMismatch indicates point-list columns of unequal length.
	ErrLengthMismatch = errors.New("measure: setpoint columns differ in length")

	// ErrArityMismatch indicates a point whose dimension count does not match the settables.
	ErrArityMismatch = errors.New("measure: point arity does not match configured settables")

	// ErrRunActive indicates a second run was started while one is in progress.
	ErrRunActive = errors.New("measure: a run is already active")

	// ErrNotGridded indicates dataset coordinates that cannot be reshaped onto grid axes.
	ErrNotGridded = errors.New("measure: dataset coordinates do not form a grid")

	// ErrNoStop indicates a learner-mode adaptive spec without a stop predicate.
	ErrNoStop = errors.New("measure: learner mode requires a stop predicate")

	// ErrNoOptimizer indicates an adaptive spec with neither optimizer nor learner.
	ErrNoOptimizer = errors.New("measure: adaptive spec has neither optimizer nor learner")
)

// errInterrupted flows out of the acquisition loop when an interrupt is
// honored. It never escapes the supervisor: interruption is a terminal
// state, not a failure.
var errInterrupted = errors.New("measure: run interrupted")

// RunError wraps a capability failure with the position it occurred at.
type RunError struct {
	Op      string // "set", "get", "prepare", "finish", "ask", "tell"
	Target  string // settable/gettable name, if known
	Row     int    // rows committed when the failure occurred
	Wrapped error
}

func (e *RunError) Error() string {
	if e.Target != "" {
		return "measure: " + e.Op + " " + e.Target + ": " + e.Wrapped.Error()
	}
	return "measure: " + e.Op + ": " + e.Wrapped.Error()
}

func (e *RunError) Unwrap() error {
	return e.Wrapped
}
