package measure

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RunState records how a run ended (or that it has not).
type RunState int

const (
	StateRunning RunState = iota
	StateDone
	StateInterruptedSafety
	StateInterruptedForced
	StateFailed
)

var runStateNames = map[RunState]string{
	StateRunning:           "running",
	StateDone:              "done",
	StateInterruptedSafety: "interrupted (safety)",
	StateInterruptedForced: "interrupted (forced)",
	StateFailed:            "failed",
}

func (s RunState) String() string {
	if name, ok := runStateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s RunState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *RunState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for state, n := range runStateNames {
		if n == name {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("measure: unknown run state %q", name)
}

// Column is one labeled data series. Coordinate columns mirror a
// settable, variable columns mirror one gettable component. Name is
// the positional key (x0.., y0..); Source is the settable's or
// component's own name.
type Column struct {
	Name   string    `json:"name"`
	Source string    `json:"source"`
	Label  string    `json:"label"`
	Unit   string    `json:"unit"`
	Values []float64 `json:"values"`
}

// Relationship marks an intra-dataset link, e.g. a variable holding the
// spread of another, or a calibration companion.
type Relationship struct {
	Item     string   `json:"item"`
	Relation string   `json:"relation"`
	Related  []string `json:"related"`
}

// Dataset is the growing labeled table of collected points. Coordinate
// and variable columns always share the same length: a row exists only
// once every configured gettable has produced values for it. During a
// run the dataset is owned exclusively by the supervisor; monitors and
// sinks receive deep-copied snapshots.
type Dataset struct {
	TUID          string         `json:"tuid"`
	Name          string         `json:"name"`
	Started       time.Time      `json:"started"`
	Ended         time.Time      `json:"ended,omitzero"`
	State         RunState       `json:"state"`
	Coords        []Column       `json:"coords"`
	Vars          []Column       `json:"vars"`
	Relationships []Relationship `json:"relationships,omitempty"`
	GridAxes      [][]float64    `json:"grid_axes,omitempty"`
}

// growChunk is the column growth granularity; appends never reallocate
// more often than once per chunk.
const growChunk = 256

// newTUID returns a sortable run identifier: timestamp plus a short
// random suffix.
func newTUID(t time.Time) string {
	return t.Format("20060102-150405") + "-" + uuid.NewString()[:6]
}

// newDataset pre-declares the schema from the configured capabilities.
// capacity is a sizing hint (the domain length, when known up front).
func newDataset(name string, settables []Settable, gettables []Gettable, capacity int) *Dataset {
	if capacity < growChunk {
		capacity = growChunk
	}
	now := time.Now()
	ds := &Dataset{
		TUID:    newTUID(now),
		Name:    name,
		Started: now,
		State:   StateRunning,
	}
	for i, s := range settables {
		ds.Coords = append(ds.Coords, Column{
			Name:   fmt.Sprintf("x%d", i),
			Source: s.Name(),
			Label:  s.Label(),
			Unit:   s.Unit(),
			Values: make([]float64, 0, capacity),
		})
	}
	j := 0
	for _, g := range gettables {
		for _, comp := range g.Components() {
			ds.Vars = append(ds.Vars, Column{
				Name:   fmt.Sprintf("y%d", j),
				Source: comp.Name,
				Label:  comp.Label,
				Unit:   comp.Unit,
				Values: make([]float64, 0, capacity),
			})
			j++
		}
	}
	return ds
}

// Rows returns the number of complete rows.
func (ds *Dataset) Rows() int {
	if len(ds.Coords) == 0 {
		return 0
	}
	return len(ds.Coords[0].Values)
}

// appendRow commits one complete row. Lengths must match the declared
// schema; this is the only mutation path, so columns can never drift
// out of step.
func (ds *Dataset) appendRow(coords, vals []float64) {
	if len(coords) != len(ds.Coords) || len(vals) != len(ds.Vars) {
		panic(fmt.Sprintf("measure: row shape %d/%d does not match schema %d/%d",
			len(coords), len(vals), len(ds.Coords), len(ds.Vars)))
	}
	for i := range ds.Coords {
		ds.Coords[i].Values = appendGrown(ds.Coords[i].Values, coords[i])
	}
	for i := range ds.Vars {
		ds.Vars[i].Values = appendGrown(ds.Vars[i].Values, vals[i])
	}
}

func appendGrown(vals []float64, v float64) []float64 {
	if len(vals) == cap(vals) {
		grown := make([]float64, len(vals), len(vals)+growChunk)
		copy(grown, vals)
		vals = grown
	}
	return append(vals, v)
}

// Relate records an intra-dataset relationship.
func (ds *Dataset) Relate(item, relation string, related ...string) {
	ds.Relationships = append(ds.Relationships, Relationship{
		Item:     item,
		Relation: relation,
		Related:  related,
	})
}

// finalize stamps the terminal state. The dataset must not be mutated
// afterwards.
func (ds *Dataset) finalize(state RunState) {
	ds.State = state
	ds.Ended = time.Now()
}

// Snapshot returns a deep copy safe to hand to monitors and sinks while
// the run keeps appending.
func (ds *Dataset) Snapshot() *Dataset {
	cp := *ds
	cp.Coords = copyColumns(ds.Coords)
	cp.Vars = copyColumns(ds.Vars)
	cp.Relationships = append([]Relationship(nil), ds.Relationships...)
	cp.GridAxes = copyAxes(ds.GridAxes)
	return &cp
}

func copyColumns(cols []Column) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c
		out[i].Values = append([]float64(nil), c.Values...)
	}
	return out
}

func copyAxes(axes [][]float64) [][]float64 {
	if axes == nil {
		return nil
	}
	out := make([][]float64, len(axes))
	for i, ax := range axes {
		out[i] = append([]float64(nil), ax...)
	}
	return out
}

// Coord returns the coordinate column with the given name, or nil.
func (ds *Dataset) Coord(name string) *Column { return findColumn(ds.Coords, name) }

// Var returns the variable column with the given name, or nil.
func (ds *Dataset) Var(name string) *Column { return findColumn(ds.Vars, name) }

func findColumn(cols []Column, name string) *Column {
	for i := range cols {
		if cols[i].Name == name {
			return &cols[i]
		}
	}
	return nil
}

// GridView is a dataset reshaped onto its grid axes. Data is row-major
// flat: the first axis varies slowest.
type GridView struct {
	Axes  [][]float64
	Shape []int
	Vars  []Column
}

// At returns the value of variable v at the given multi-index.
func (g *GridView) At(v int, idx ...int) float64 {
	if len(idx) != len(g.Shape) {
		panic("measure: grid index arity mismatch")
	}
	flat := 0
	for j, i := range idx {
		flat = flat*g.Shape[j] + i
	}
	return g.Vars[v].Values[flat]
}

// Gridded reshapes a completed grid run back onto its per-dimension
// axes. It verifies every coordinate column actually follows the
// repeating row-major pattern of the recorded axes, so a dataset from a
// point-list or interrupted run is rejected rather than silently
// misshaped.
func (ds *Dataset) Gridded() (*GridView, error) {
	if len(ds.GridAxes) == 0 || len(ds.GridAxes) != len(ds.Coords) {
		return nil, ErrNotGridded
	}
	total := 1
	shape := make([]int, len(ds.GridAxes))
	for j, ax := range ds.GridAxes {
		shape[j] = len(ax)
		total *= len(ax)
	}
	if ds.Rows() != total {
		return nil, ErrNotGridded
	}
	stride := total
	for j, ax := range ds.GridAxes {
		stride /= len(ax)
		col := ds.Coords[j].Values
		for i := 0; i < total; i++ {
			if !closeEnough(col[i], ax[(i/stride)%len(ax)]) {
				return nil, ErrNotGridded
			}
		}
	}
	return &GridView{
		Axes:  copyAxes(ds.GridAxes),
		Shape: shape,
		Vars:  copyColumns(ds.Vars),
	}, nil
}

func closeEnough(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= 1e-12*scale
}
