package instruments

import (
	"math"
	"math/rand"

	"github.com/jsenna/acquire/internal/measure"
)

// Knob is an in-memory settable: a virtual actuator whose value is
// simply remembered. Simulated detectors read it back.
type Knob struct {
	KnobName  string
	KnobLabel string
	KnobUnit  string
	Value     float64
}

func NewKnob(name, label, unit string) *Knob {
	return &Knob{KnobName: name, KnobLabel: label, KnobUnit: unit}
}

func (k *Knob) Name() string  { return k.KnobName }
func (k *Knob) Label() string { return k.KnobLabel }
func (k *Knob) Unit() string  { return k.KnobUnit }

func (k *Knob) Set(v float64) error {
	k.Value = v
	return nil
}

// BatchKnob is a Knob that also accepts a whole block of values,
// holding them for a block-capable detector to consume.
type BatchKnob struct {
	Knob
	Block []float64
}

func NewBatchKnob(name, label, unit string) *BatchKnob {
	return &BatchKnob{Knob: Knob{KnobName: name, KnobLabel: label, KnobUnit: unit}}
}

func (k *BatchKnob) SetBatch(vs []float64) error {
	k.Block = append(k.Block[:0], vs...)
	k.Value = vs[len(vs)-1]
	return nil
}

// Parabola reads the sum of squares of its knobs, optionally noisy.
// Its minimum sits wherever every knob is zero, which makes it the
// standard target for adaptive runs.
type Parabola struct {
	Knobs []*Knob
	Noise float64
	rng   *rand.Rand
}

func NewParabola(noise float64, seed int64, knobs ...*Knob) *Parabola {
	return &Parabola{Knobs: knobs, Noise: noise, rng: rand.New(rand.NewSource(seed))}
}

func (p *Parabola) Components() []measure.Component {
	return []measure.Component{{Name: "cost", Label: "Cost", Unit: "a.u."}}
}

func (p *Parabola) Get() ([]float64, error) {
	sum := 0.0
	for _, k := range p.Knobs {
		sum += k.Value * k.Value
	}
	if p.Noise > 0 {
		sum += p.rng.NormFloat64() * p.Noise
	}
	return []float64{sum}, nil
}

// Lorentzian simulates a resonance line read against a frequency knob.
type Lorentzian struct {
	Freq   *Knob
	Center float64
	Width  float64
	Amp    float64
	Floor  float64
	Noise  float64
	rng    *rand.Rand
}

func NewLorentzian(freq *Knob, center, width, amp float64) *Lorentzian {
	return &Lorentzian{
		Freq:   freq,
		Center: center,
		Width:  width,
		Amp:    amp,
		rng:    rand.New(rand.NewSource(1)),
	}
}

func (l *Lorentzian) Components() []measure.Component {
	return []measure.Component{{Name: "mag", Label: "Magnitude", Unit: "V"}}
}

func (l *Lorentzian) Get() ([]float64, error) {
	d := l.Freq.Value - l.Center
	val := l.Floor + l.Amp*l.Width*l.Width/(l.Width*l.Width+d*d)
	if l.Noise > 0 {
		val += l.rng.NormFloat64() * l.Noise
	}
	return []float64{val}, nil
}

// IQDetector returns two components per read, in-phase and quadrature
// of a cosine signal against a phase knob. The first component is the
// one adaptive runs feed back.
type IQDetector struct {
	Phase *Knob
	Amp   float64
}

func NewIQDetector(phase *Knob, amp float64) *IQDetector {
	return &IQDetector{Phase: phase, Amp: amp}
}

func (d *IQDetector) Components() []measure.Component {
	return []measure.Component{
		{Name: "I", Label: "In-phase", Unit: "V"},
		{Name: "Q", Label: "Quadrature", Unit: "V"},
	}
}

func (d *IQDetector) Get() ([]float64, error) {
	return []float64{
		d.Amp * math.Cos(d.Phase.Value),
		d.Amp * math.Sin(d.Phase.Value),
	}, nil
}

// WaveformDetector is a block-capable detector: it evaluates a shape
// function over the block most recently written to its knob, one
// sample per point.
type WaveformDetector struct {
	Source   *BatchKnob
	Shape    func(x float64) float64
	MaxBlock int
}

func NewWaveformDetector(source *BatchKnob, maxBlock int, shape func(float64) float64) *WaveformDetector {
	return &WaveformDetector{Source: source, Shape: shape, MaxBlock: maxBlock}
}

func (w *WaveformDetector) Components() []measure.Component {
	return []measure.Component{{Name: "sig", Label: "Signal", Unit: "V"}}
}

func (w *WaveformDetector) MaxBatch() int { return w.MaxBlock }

func (w *WaveformDetector) Get() ([]float64, error) {
	return []float64{w.Shape(w.Source.Value)}, nil
}

func (w *WaveformDetector) GetBatch(n int) ([][]float64, error) {
	block := w.Source.Block
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = []float64{w.Shape(block[i])}
	}
	return out, nil
}
