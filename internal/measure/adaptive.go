package measure

import (
	"fmt"
	"math"
)

// ObjectiveFn is the measurement closure handed to a direct-call
// optimizer: write the point, read, store the row, and return the first
// data component. Errors must be propagated unchanged by the optimizer.
type ObjectiveFn func(point []float64) (float64, error)

// Optimizer is the direct-call protocol: the optimizer owns its own
// loop and invokes the objective as often as it wants.
type Optimizer interface {
	Minimize(objective ObjectiveFn) error
}

// Learner is the ask/tell protocol: the engine drives the loop, asking
// for the next point(s) and reporting each first-component result back.
type Learner interface {
	Ask(n int) ([][]float64, error)
	Tell(point []float64, value float64) error
}

// LearnerStatus is what stop predicates get to look at after every
// ask/tell round.
type LearnerStatus struct {
	Rows      int
	Best      float64
	BestPoint []float64
}

// StopFn decides when a learner-mode run is finished. Termination is
// solely its responsibility: a predicate that never fires loops
// forever, which is a caller error, not an engine fault.
type StopFn func(status LearnerStatus) bool

// StopAfter stops once at least n rows have been collected.
func StopAfter(n int) StopFn {
	return func(s LearnerStatus) bool { return s.Rows >= n }
}

// StopBelow stops once the best observed first component drops below goal.
func StopBelow(goal float64) StopFn {
	return func(s LearnerStatus) bool { return s.Best < goal }
}

// AdaptiveSpec configures a closed-loop run. Exactly one of Optimizer
// or Learner must be set; learner mode additionally requires Stop.
type AdaptiveSpec struct {
	Optimizer Optimizer
	Learner   Learner
	Stop      StopFn
	// BatchSize is how many points to request per Ask; defaults to 1.
	BatchSize int
}

type adaptiveStrategy struct {
	spec   AdaptiveSpec
	status LearnerStatus
}

func newAdaptiveStrategy(spec AdaptiveSpec) (*adaptiveStrategy, error) {
	if spec.Optimizer == nil && spec.Learner == nil {
		return nil, ErrNoOptimizer
	}
	if spec.Optimizer != nil && spec.Learner != nil {
		return nil, fmt.Errorf("%w: optimizer and learner are mutually exclusive", ErrNoOptimizer)
	}
	if spec.Learner != nil && spec.Stop == nil {
		return nil, ErrNoStop
	}
	if spec.BatchSize < 1 {
		spec.BatchSize = 1
	}
	return &adaptiveStrategy{
		spec:   spec,
		status: LearnerStatus{Best: math.Inf(1)},
	}, nil
}

func (a *adaptiveStrategy) next(r *runner) (bool, error) {
	if a.spec.Optimizer != nil {
		// Direct-call mode: the optimizer runs to completion in one
		// strategy step, measuring through the objective closure.
		if err := a.spec.Optimizer.Minimize(a.objective(r)); err != nil {
			return false, err
		}
		return true, nil
	}
	return a.askTellRound(r)
}

// objective builds the measurement closure for direct-call optimizers.
// Interrupt checks live here so a cooperative stop is honored between
// objective evaluations even though the optimizer owns the loop.
func (a *adaptiveStrategy) objective(r *runner) ObjectiveFn {
	return func(point []float64) (float64, error) {
		if r.severity() != severityNone {
			return 0, errInterrupted
		}
		val, err := a.measure(r, point)
		if err != nil {
			return 0, err
		}
		return val, nil
	}
}

// askTellRound performs one ask → measure → tell cycle and evaluates
// the stop predicate.
func (a *adaptiveStrategy) askTellRound(r *runner) (bool, error) {
	points, err := a.spec.Learner.Ask(a.spec.BatchSize)
	if err != nil {
		return false, &RunError{Op: "ask", Row: r.ds.Rows(), Wrapped: err}
	}
	if len(points) == 0 {
		return false, &RunError{Op: "ask", Row: r.ds.Rows(),
			Wrapped: fmt.Errorf("learner returned no points")}
	}
	for _, point := range points {
		if r.forced() {
			return false, errInterrupted
		}
		val, err := a.measure(r, point)
		if err != nil {
			return false, err
		}
		if err := a.spec.Learner.Tell(point, val); err != nil {
			return false, &RunError{Op: "tell", Row: r.ds.Rows(), Wrapped: err}
		}
	}
	return a.spec.Stop(a.status), nil
}

// measure runs one point through the full write/read/commit path and
// returns the first data component, the only one fed back to the
// optimizer. Remaining components are stored but never steer the loop.
func (a *adaptiveStrategy) measure(r *runner, point []float64) (float64, error) {
	if err := r.writePoint(point); err != nil {
		return 0, err
	}
	vals, err := r.readPoint()
	if err != nil {
		return 0, err
	}
	r.commitRow(point, vals)

	first := vals[0]
	a.status.Rows = r.ds.Rows()
	if first < a.status.Best {
		a.status.Best = first
		a.status.BestPoint = append([]float64(nil), point...)
	}
	return first, nil
}
