package measure

// Settable is a controllable output: one knob the acquisition loop turns.
// Implementations wrap whatever talks to the actual actuator; the engine
// only ever calls Set.
type Settable interface {
	Name() string
	Label() string
	Unit() string
	Set(value float64) error
}

// BatchSettable accepts a contiguous block of values in one call.
type BatchSettable interface {
	Settable
	SetBatch(values []float64) error
}

// Component identifies one named quantity returned by a Gettable.
type Component struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Unit  string `json:"unit"`
}

// Gettable is an observable input. A single Get returns one value per
// component, in the order reported by Components. The first component is
// the one fed back to adaptive optimizers; further components are stored
// but never drive closed-loop decisions.
type Gettable interface {
	Components() []Component
	Get() ([]float64, error)
}

// BatchGettable reads a contiguous block of already-written setpoints in
// one call. GetBatch returns n samples, each holding one value per
// component. MaxBatch bounds how many points may be requested at once.
type BatchGettable interface {
	Gettable
	MaxBatch() int
	GetBatch(n int) ([][]float64, error)
}

// HardwareAverager gettables average repeated acquisitions internally,
// so the engine issues a single read per point instead of N.
type HardwareAverager interface {
	Gettable
	SetAverages(n int) error
}

// Preparable capabilities get a chance to arm themselves before the
// first point of a run.
type Preparable interface {
	Prepare() error
}

// Finisher capabilities are released after the last point, regardless of
// how the run ended.
type Finisher interface {
	Finish() error
}

// Monitor receives read-only dataset snapshots while a run is in
// progress. Delivery is best effort: a slow or failing monitor never
// blocks or aborts the acquisition loop.
type Monitor interface {
	Update(snapshot *Dataset) error
}

// Sink is the durable-storage collaborator. Checkpoint may be called at
// any time during a run with a consistent snapshot; Finalize is called
// exactly once with the terminal dataset and must not lose it.
type Sink interface {
	Checkpoint(ds *Dataset) error
	Finalize(ds *Dataset) error
}
