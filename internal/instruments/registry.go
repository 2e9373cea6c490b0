package instruments

import (
	"fmt"
	"sort"

	"github.com/jsenna/acquire/internal/measure"
)

// Params carries named numeric options for a simulated instrument.
type Params map[string]float64

func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

type builder func(params Params, knobs []*Knob) (measure.Gettable, error)

var builders = map[string]builder{
	"parabola": func(params Params, knobs []*Knob) (measure.Gettable, error) {
		return NewParabola(params.get("noise", 0), int64(params.get("seed", 1)), knobs...), nil
	},
	"lorentzian": func(params Params, knobs []*Knob) (measure.Gettable, error) {
		if len(knobs) != 1 {
			return nil, fmt.Errorf("instruments: lorentzian reads exactly one knob, got %d", len(knobs))
		}
		l := NewLorentzian(knobs[0],
			params.get("center", 5.0),
			params.get("width", 0.1),
			params.get("amp", 1.0))
		l.Floor = params.get("floor", 0)
		l.Noise = params.get("noise", 0)
		return l, nil
	},
	"iq": func(params Params, knobs []*Knob) (measure.Gettable, error) {
		if len(knobs) != 1 {
			return nil, fmt.Errorf("instruments: iq reads exactly one knob, got %d", len(knobs))
		}
		return NewIQDetector(knobs[0], params.get("amp", 1.0)), nil
	},
}

// Kinds lists the registered simulated detectors.
func Kinds() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the simulated detector `kind` reading the given knobs.
func Build(kind string, params Params, knobs []*Knob) (measure.Gettable, error) {
	b, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("instruments: unknown detector %q", kind)
	}
	return b(params, knobs)
}

// BuildBatch constructs a block-capable detector evaluating the named
// shape over one batch knob.
func BuildBatch(kind string, params Params, knob *BatchKnob) (measure.Gettable, error) {
	maxBlock := int(params.get("max_block", 64))
	switch kind {
	case "parabola":
		return NewWaveformDetector(knob, maxBlock, func(x float64) float64 { return x * x }), nil
	case "lorentzian":
		center := params.get("center", 5.0)
		width := params.get("width", 0.1)
		amp := params.get("amp", 1.0)
		floor := params.get("floor", 0)
		return NewWaveformDetector(knob, maxBlock, func(x float64) float64 {
			d := x - center
			return floor + amp*width*width/(width*width+d*d)
		}), nil
	default:
		return nil, fmt.Errorf("instruments: unknown batch detector %q", kind)
	}
}
