package optim

import (
	"fmt"
	"sort"
)

// IntervalLearner is an ask/tell sampler over a 1D interval. It starts
// with the endpoints, then keeps proposing the midpoint of the widest
// gap between sampled points, so coverage refines evenly without a
// precomputed grid.
type IntervalLearner struct {
	Lo, Hi float64

	xs      []float64
	pending []float64
}

func NewIntervalLearner(lo, hi float64) *IntervalLearner {
	return &IntervalLearner{Lo: lo, Hi: hi}
}

func (l *IntervalLearner) Ask(n int) ([][]float64, error) {
	if l.Hi <= l.Lo {
		return nil, fmt.Errorf("optim: empty interval [%v, %v]", l.Lo, l.Hi)
	}
	out := make([][]float64, 0, n)
	for len(out) < n {
		x := l.propose()
		l.pending = append(l.pending, x)
		out = append(out, []float64{x})
	}
	return out, nil
}

func (l *IntervalLearner) Tell(point []float64, value float64) error {
	if len(point) != 1 {
		return fmt.Errorf("optim: interval learner is 1D, got %d components", len(point))
	}
	x := point[0]
	for i, p := range l.pending {
		if p == x {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			break
		}
	}
	l.xs = append(l.xs, x)
	sort.Float64s(l.xs)
	return nil
}

// Sampled returns how many points have been told back.
func (l *IntervalLearner) Sampled() int { return len(l.xs) }

func (l *IntervalLearner) propose() float64 {
	known := append(append([]float64(nil), l.xs...), l.pending...)
	sort.Float64s(known)
	if len(known) == 0 {
		return l.Lo
	}
	if known[len(known)-1] < l.Hi {
		if known[0] > l.Lo {
			return l.Lo
		}
		return l.Hi
	}
	if known[0] > l.Lo {
		return l.Lo
	}
	// Midpoint of the widest gap.
	bestGap, bestMid := 0.0, (l.Lo+l.Hi)/2
	for i := 1; i < len(known); i++ {
		if gap := known[i] - known[i-1]; gap > bestGap {
			bestGap = gap
			bestMid = (known[i] + known[i-1]) / 2
		}
	}
	return bestMid
}
