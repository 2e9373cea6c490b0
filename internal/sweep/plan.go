// Package sweep loads declarative measurement plans from YAML and
// turns them into a configured bench: knobs, a simulated detector and
// the setpoint domain to visit.
package sweep

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jsenna/acquire/internal/instruments"
	"github.com/jsenna/acquire/internal/measure"
)

// Axis declares one swept parameter: either an explicit value list or
// a linear range via start/stop/points.
type Axis struct {
	Name   string    `yaml:"name"`
	Label  string    `yaml:"label"`
	Unit   string    `yaml:"unit"`
	Start  float64   `yaml:"start"`
	Stop   float64   `yaml:"stop"`
	Points int       `yaml:"points"`
	Values []float64 `yaml:"values"`
}

// Detector names the simulated instrument to read.
type Detector struct {
	Kind   string             `yaml:"kind"`
	Params map[string]float64 `yaml:"params"`
}

// Plan is one runnable measurement description.
type Plan struct {
	Name        string      `yaml:"name"`
	Settables   []Axis      `yaml:"settables"`
	Detector    Detector    `yaml:"detector"`
	SoftAvg     int         `yaml:"soft_avg"`
	StoreSpread bool        `yaml:"store_spread"`
	SettleMs    float64     `yaml:"settle_ms"`
	Batch       bool        `yaml:"batch"`
	Rows        [][]float64 `yaml:"rows"` // explicit setpoints; overrides the grid
}

// Load reads a plan from a YAML file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("sweep: parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("sweep: %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the plan is self-consistent before any hardware is
// touched.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan has no name")
	}
	if len(p.Settables) == 0 {
		return fmt.Errorf("plan %q has no settables", p.Name)
	}
	if p.Detector.Kind == "" {
		return fmt.Errorf("plan %q has no detector", p.Name)
	}
	if p.Batch && len(p.Settables) != 1 {
		return fmt.Errorf("plan %q: batch mode supports exactly one settable", p.Name)
	}
	for i, ax := range p.Settables {
		if ax.Name == "" {
			return fmt.Errorf("plan %q: settable %d has no name", p.Name, i)
		}
		if len(ax.Values) == 0 && len(p.Rows) == 0 {
			if ax.Points < 1 {
				return fmt.Errorf("plan %q: settable %q needs values or points >= 1", p.Name, ax.Name)
			}
		}
	}
	for i, row := range p.Rows {
		if len(row) != len(p.Settables) {
			return fmt.Errorf("plan %q: row %d has %d values, want %d",
				p.Name, i, len(row), len(p.Settables))
		}
	}
	return nil
}

// axis materializes the per-dimension setpoint values.
func (a Axis) axis() []float64 {
	if len(a.Values) > 0 {
		return append([]float64(nil), a.Values...)
	}
	if a.Points == 1 {
		return []float64{a.Start}
	}
	vals := make([]float64, a.Points)
	step := (a.Stop - a.Start) / float64(a.Points-1)
	for i := range vals {
		vals[i] = a.Start + float64(i)*step
	}
	return vals
}

// Bench is the materialized plan, ready to hand to a supervisor.
type Bench struct {
	Settables []measure.Settable
	Gettables []measure.Gettable
	Domain    *measure.Domain
}

// Bench builds the simulated instruments and the domain the plan
// describes.
func (p *Plan) Bench() (*Bench, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.Batch {
		ax := p.Settables[0]
		knob := instruments.NewBatchKnob(ax.Name, label(ax), ax.Unit)
		det, err := instruments.BuildBatch(p.Detector.Kind, p.Detector.Params, knob)
		if err != nil {
			return nil, err
		}
		dom, err := p.domain()
		if err != nil {
			return nil, err
		}
		return &Bench{
			Settables: []measure.Settable{knob},
			Gettables: []measure.Gettable{det},
			Domain:    dom,
		}, nil
	}

	knobs := make([]*instruments.Knob, len(p.Settables))
	settables := make([]measure.Settable, len(p.Settables))
	for i, ax := range p.Settables {
		knobs[i] = instruments.NewKnob(ax.Name, label(ax), ax.Unit)
		settables[i] = knobs[i]
	}
	det, err := instruments.Build(p.Detector.Kind, p.Detector.Params, knobs)
	if err != nil {
		return nil, err
	}
	dom, err := p.domain()
	if err != nil {
		return nil, err
	}
	return &Bench{
		Settables: settables,
		Gettables: []measure.Gettable{det},
		Domain:    dom,
	}, nil
}

func (p *Plan) domain() (*measure.Domain, error) {
	if len(p.Rows) > 0 {
		cols := make([][]float64, len(p.Settables))
		for j := range cols {
			cols[j] = make([]float64, len(p.Rows))
			for i, row := range p.Rows {
				cols[j][i] = row[j]
			}
		}
		return measure.FromPoints(cols...)
	}
	axes := make([][]float64, len(p.Settables))
	for j, ax := range p.Settables {
		axes[j] = ax.axis()
	}
	return measure.Grid(axes...)
}

func label(a Axis) string {
	if a.Label != "" {
		return a.Label
	}
	return a.Name
}

// Apply copies the plan's acquisition tuning onto the supervisor.
func (p *Plan) Apply(c *measure.Control) {
	if p.SoftAvg > 1 {
		c.SoftAvg = p.SoftAvg
	}
	c.StoreSpread = p.StoreSpread
	if p.SettleMs > 0 {
		c.SettleDelay = time.Duration(p.SettleMs * float64(time.Millisecond))
	}
}

// Run executes the plan on the given supervisor. Monitors and the sink
// must already be attached.
func (p *Plan) Run(ctx context.Context, c *measure.Control) (*measure.Dataset, error) {
	bench, err := p.Bench()
	if err != nil {
		return nil, err
	}
	if err := c.Configure(bench.Settables, bench.Gettables); err != nil {
		return nil, err
	}
	p.Apply(c)
	return c.Run(ctx, p.Name, bench.Domain)
}
