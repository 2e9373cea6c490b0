package measure

import (
	"encoding/json"
	"errors"
	"testing"
)

func schemaDataset() *Dataset {
	x := &stubSettable{name: "x"}
	g := scalarGettable("sig", func() float64 { return 0 })
	return newDataset("test", []Settable{x}, []Gettable{g}, 0)
}

func TestColumnSourceNames(t *testing.T) {
	x := &stubSettable{name: "flux_bias"}
	iq := &stubGettable{comps: []Component{
		{Name: "I", Label: "In-phase", Unit: "V"},
		{Name: "Q", Label: "Quadrature", Unit: "V"},
	}}
	ds := newDataset("iq scan", []Settable{x}, []Gettable{iq}, 0)

	if ds.Coords[0].Name != "x0" || ds.Coords[0].Source != "flux_bias" {
		t.Errorf("coord column = %q/%q, want x0/flux_bias", ds.Coords[0].Name, ds.Coords[0].Source)
	}
	if ds.Vars[0].Source != "I" || ds.Vars[1].Source != "Q" {
		t.Errorf("var sources = %q, %q, want I, Q", ds.Vars[0].Source, ds.Vars[1].Source)
	}

	// The source survives serialization alongside the positional key.
	data, err := json.Marshal(ds)
	if err != nil {
		t.Fatal(err)
	}
	var back Dataset
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Vars[1].Source != "Q" {
		t.Errorf("round-tripped source = %q, want Q", back.Vars[1].Source)
	}
}

func TestDatasetAppendRow(t *testing.T) {
	ds := schemaDataset()
	ds.appendRow([]float64{1}, []float64{10})
	ds.appendRow([]float64{2}, []float64{20})

	if ds.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", ds.Rows())
	}
	if len(ds.Coords[0].Values) != len(ds.Vars[0].Values) {
		t.Fatal("coordinate and variable columns out of step")
	}
	if ds.Var("y0").Values[1] != 20 {
		t.Errorf("y0[1] = %v, want 20", ds.Vars[0].Values[1])
	}
}

func TestDatasetSnapshotIsolation(t *testing.T) {
	ds := schemaDataset()
	ds.appendRow([]float64{1}, []float64{10})

	snap := ds.Snapshot()
	ds.appendRow([]float64{2}, []float64{20})
	ds.Vars[0].Values[0] = -1

	if snap.Rows() != 1 {
		t.Errorf("snapshot rows = %d, want 1", snap.Rows())
	}
	if snap.Vars[0].Values[0] != 10 {
		t.Errorf("snapshot mutated through original: %v", snap.Vars[0].Values[0])
	}
}

func TestRunStateJSON(t *testing.T) {
	tests := []struct {
		state RunState
		want  string
	}{
		{StateRunning, `"running"`},
		{StateDone, `"done"`},
		{StateInterruptedSafety, `"interrupted (safety)"`},
		{StateInterruptedForced, `"interrupted (forced)"`},
		{StateFailed, `"failed"`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.state)
		if err != nil {
			t.Fatalf("marshal %v: %v", tt.state, err)
		}
		if string(data) != tt.want {
			t.Errorf("marshal %v = %s, want %s", tt.state, data, tt.want)
		}
		var back RunState
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != tt.state {
			t.Errorf("round trip %v -> %v", tt.state, back)
		}
	}
}

func TestDatasetJSONRoundTrip(t *testing.T) {
	ds := schemaDataset()
	ds.appendRow([]float64{1}, []float64{10})
	ds.Relate("y0_cal", "calibration_of", "y0")
	ds.finalize(StateDone)

	data, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Dataset
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.TUID != ds.TUID || back.State != StateDone || back.Rows() != 1 {
		t.Errorf("round trip lost data: %+v", back)
	}
	if len(back.Relationships) != 1 || back.Relationships[0].Relation != "calibration_of" {
		t.Errorf("relationships = %+v", back.Relationships)
	}
}

func TestGriddedReconstruction(t *testing.T) {
	x := &stubSettable{name: "x"}
	y := &stubSettable{name: "y"}
	g := scalarGettable("sig", func() float64 { return x.value + y.value })

	dom, _ := Grid([]float64{0, 1}, []float64{10, 20})
	ds := newDataset("grid", []Settable{x, y}, []Gettable{g}, dom.Len())
	ds.GridAxes = dom.Axes()
	for i := 0; i < dom.Len(); i++ {
		p := dom.Point(i)
		ds.appendRow(p, []float64{p[0] + p[1]})
	}

	view, err := ds.Gridded()
	if err != nil {
		t.Fatalf("gridded: %v", err)
	}
	if view.Shape[0] != 2 || view.Shape[1] != 2 {
		t.Fatalf("shape = %v", view.Shape)
	}
	if got := view.At(0, 1, 0); got != 11 {
		t.Errorf("at(1,0) = %v, want 11", got)
	}
	if got := view.At(0, 0, 1); got != 20 {
		t.Errorf("at(0,1) = %v, want 20", got)
	}
}

func TestGriddedRejectsPartial(t *testing.T) {
	x := &stubSettable{name: "x"}
	g := scalarGettable("sig", func() float64 { return 0 })

	dom, _ := Grid([]float64{0, 1, 2})
	ds := newDataset("partial", []Settable{x}, []Gettable{g}, dom.Len())
	ds.GridAxes = dom.Axes()
	// Only two of three points collected, as after an interrupt.
	ds.appendRow([]float64{0}, []float64{0})
	ds.appendRow([]float64{1}, []float64{0})

	if _, err := ds.Gridded(); !errors.Is(err, ErrNotGridded) {
		t.Errorf("got %v, want ErrNotGridded", err)
	}
}

func TestGriddedRejectsPointList(t *testing.T) {
	x := &stubSettable{name: "x"}
	g := scalarGettable("sig", func() float64 { return 0 })
	ds := newDataset("list", []Settable{x}, []Gettable{g}, 0)
	ds.appendRow([]float64{3}, []float64{0})

	if _, err := ds.Gridded(); !errors.Is(err, ErrNotGridded) {
		t.Errorf("got %v, want ErrNotGridded", err)
	}
}
