package optim

import (
	"fmt"

	"github.com/jsenna/acquire/internal/measure"
)

// PatternSearch is a derivative-free minimizer implementing the
// direct-call protocol: probe each coordinate direction from the
// current best point, move when a probe improves, shrink the step when
// none does. Objective errors are propagated unchanged.
type PatternSearch struct {
	Start    []float64
	Step     float64
	MinStep  float64
	MaxEvals int

	best      []float64
	bestValue float64
	evals     int
}

func NewPatternSearch(start []float64, step float64) *PatternSearch {
	return &PatternSearch{
		Start:    append([]float64(nil), start...),
		Step:     step,
		MinStep:  step / 1024,
		MaxEvals: 500,
	}
}

// Best returns the lowest objective value seen and its point. Valid
// after Minimize returns.
func (p *PatternSearch) Best() ([]float64, float64) { return p.best, p.bestValue }

// Evals returns the number of objective evaluations performed.
func (p *PatternSearch) Evals() int { return p.evals }

func (p *PatternSearch) Minimize(objective measure.ObjectiveFn) error {
	if len(p.Start) == 0 {
		return fmt.Errorf("optim: pattern search needs a starting point")
	}
	if p.Step <= 0 {
		return fmt.Errorf("optim: step must be positive, got %v", p.Step)
	}

	point := append([]float64(nil), p.Start...)
	val, err := p.eval(objective, point)
	if err != nil {
		return err
	}
	p.best, p.bestValue = point, val

	step := p.Step
	for step > p.MinStep && p.evals < p.MaxEvals {
		improved := false
		for j := range p.best {
			for _, dir := range []float64{+1, -1} {
				trial := append([]float64(nil), p.best...)
				trial[j] += dir * step
				val, err := p.eval(objective, trial)
				if err != nil {
					return err
				}
				if val < p.bestValue {
					p.best, p.bestValue = trial, val
					improved = true
				}
				if p.evals >= p.MaxEvals {
					return nil
				}
			}
		}
		if !improved {
			step /= 2
		}
	}
	return nil
}

func (p *PatternSearch) eval(objective measure.ObjectiveFn, point []float64) (float64, error) {
	p.evals++
	return objective(point)
}
