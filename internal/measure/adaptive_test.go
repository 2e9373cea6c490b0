package measure

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// descentOptimizer is a minimal direct-call collaborator: fixed-step
// coordinate descent, enough to exercise the objective protocol.
type descentOptimizer struct {
	start []float64
	step  float64
	iters int
}

func (o *descentOptimizer) Minimize(objective ObjectiveFn) error {
	point := append([]float64(nil), o.start...)
	best, err := objective(point)
	if err != nil {
		return err
	}
	for it := 0; it < o.iters; it++ {
		improved := false
		for j := range point {
			for _, dir := range []float64{+1, -1} {
				trial := append([]float64(nil), point...)
				trial[j] += dir * o.step
				val, err := objective(trial)
				if err != nil {
					return err
				}
				if val < best {
					best, point, improved = val, trial, true
				}
			}
		}
		if !improved {
			o.step /= 2
		}
	}
	return nil
}

// halvingLearner asks points by bisecting around the best seen value.
type halvingLearner struct {
	lo, hi float64
	told   []float64
}

func (l *halvingLearner) Ask(n int) ([][]float64, error) {
	out := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		frac := float64(len(l.told)+i+1) / 10
		out = append(out, []float64{l.lo + (l.hi-l.lo)*math.Mod(frac, 1)})
	}
	return out, nil
}

func (l *halvingLearner) Tell(point []float64, value float64) error {
	l.told = append(l.told, value)
	return nil
}

func TestAdaptiveSpecValidation(t *testing.T) {
	_, err := newAdaptiveStrategy(AdaptiveSpec{})
	require.ErrorIs(t, err, ErrNoOptimizer)

	_, err = newAdaptiveStrategy(AdaptiveSpec{Learner: &halvingLearner{}})
	require.ErrorIs(t, err, ErrNoStop)

	_, err = newAdaptiveStrategy(AdaptiveSpec{
		Optimizer: &descentOptimizer{},
		Learner:   &halvingLearner{},
		Stop:      StopAfter(1),
	})
	require.Error(t, err)
}

func TestAdaptiveDirectCall(t *testing.T) {
	x := &stubSettable{name: "x"}
	y := &stubSettable{name: "y"}
	sig := scalarGettable("cost", func() float64 {
		return x.value*x.value + y.value*y.value
	})

	c := New("mc")
	require.NoError(t, c.Configure([]Settable{x, y}, []Gettable{sig}))

	ds, err := c.RunAdaptive(context.Background(), "minimize", AdaptiveSpec{
		Optimizer: &descentOptimizer{start: []float64{-5, -5}, step: 1, iters: 20},
	})
	require.NoError(t, err)
	require.Equal(t, StateDone, ds.State)
	require.Greater(t, ds.Rows(), 1)

	// Locate the minimum-cost row; it must be closer to the origin than
	// the starting point.
	bestRow, best := 0, math.Inf(1)
	for i := 0; i < ds.Rows(); i++ {
		if v := ds.Vars[0].Values[i]; v < best {
			best, bestRow = v, i
		}
	}
	bx := ds.Coords[0].Values[bestRow]
	by := ds.Coords[1].Values[bestRow]
	require.Less(t, math.Hypot(bx, by), math.Hypot(-5, -5))
}

func TestAdaptiveAskTellStopAfter(t *testing.T) {
	x := &stubSettable{name: "x"}
	sig := scalarGettable("sig", func() float64 { return x.value })

	c := New("mc")
	require.NoError(t, c.Configure([]Settable{x}, []Gettable{sig}))

	learner := &halvingLearner{lo: 0, hi: 1}
	ds, err := c.RunAdaptive(context.Background(), "sampled", AdaptiveSpec{
		Learner: learner,
		Stop:    StopAfter(5),
	})
	require.NoError(t, err)
	require.Equal(t, StateDone, ds.State)
	require.GreaterOrEqual(t, ds.Rows(), 5)
	require.Len(t, learner.told, ds.Rows(), "every measured point must be told back")
}

func TestAdaptiveStopBelow(t *testing.T) {
	x := &stubSettable{name: "x"}
	sig := scalarGettable("sig", func() float64 { return 10 - x.value })

	c := New("mc")
	require.NoError(t, c.Configure([]Settable{x}, []Gettable{sig}))

	// The learner walks x upward; the signal drops below the goal.
	asked := 0.0
	ds, err := c.RunAdaptive(context.Background(), "goal", AdaptiveSpec{
		Learner: learnerFunc{
			ask: func(n int) ([][]float64, error) {
				asked++
				return [][]float64{{asked}}, nil
			},
			tell: func([]float64, float64) error { return nil },
		},
		Stop: StopBelow(5),
	})
	require.NoError(t, err)
	require.Equal(t, StateDone, ds.State)
	last := ds.Vars[0].Values[ds.Rows()-1]
	require.Less(t, last, 5.0)
}

type learnerFunc struct {
	ask  func(n int) ([][]float64, error)
	tell func(point []float64, value float64) error
}

func (l learnerFunc) Ask(n int) ([][]float64, error)    { return l.ask(n) }
func (l learnerFunc) Tell(p []float64, v float64) error { return l.tell(p, v) }

func TestAdaptiveWrongArity(t *testing.T) {
	x := &stubSettable{name: "x"}
	sig := scalarGettable("sig", func() float64 { return 0 })
	c := New("mc")
	require.NoError(t, c.Configure([]Settable{x}, []Gettable{sig}))

	ds, err := c.RunAdaptive(context.Background(), "bad arity", AdaptiveSpec{
		Learner: learnerFunc{
			ask:  func(n int) ([][]float64, error) { return [][]float64{{1, 2, 3}}, nil },
			tell: func([]float64, float64) error { return nil },
		},
		Stop: StopAfter(3),
	})
	require.ErrorIs(t, err, ErrArityMismatch)
	require.Equal(t, StateFailed, ds.State)
	require.Equal(t, 0, ds.Rows())
}

func TestAdaptiveSafetyInterrupt(t *testing.T) {
	x := &stubSettable{name: "x"}
	c := New("mc")
	reads := 0
	sig := scalarGettable("sig", func() float64 { return 0 })
	sig.fn = func() []float64 {
		reads++
		if reads == 3 {
			c.Interrupt(Safety)
		}
		return []float64{0}
	}
	require.NoError(t, c.Configure([]Settable{x}, []Gettable{sig}))

	asked := 0.0
	ds, err := c.RunAdaptive(context.Background(), "interrupted", AdaptiveSpec{
		Learner: learnerFunc{
			ask: func(n int) ([][]float64, error) {
				asked++
				return [][]float64{{asked}}, nil
			},
			tell: func([]float64, float64) error { return nil },
		},
		Stop: StopAfter(1000),
	})
	require.NoError(t, err, "interruption is not an error")
	require.Equal(t, StateInterruptedSafety, ds.State)
	require.Equal(t, 3, ds.Rows())
}

func TestAdaptiveDirectCallPropagatesFailure(t *testing.T) {
	x := &stubSettable{name: "x"}
	boom := errors.New("amp railed")
	sig := &failingGettable{after: 2, fail: boom}
	c := New("mc")
	require.NoError(t, c.Configure([]Settable{x}, []Gettable{sig}))

	ds, err := c.RunAdaptive(context.Background(), "fails", AdaptiveSpec{
		Optimizer: &descentOptimizer{start: []float64{1}, step: 1, iters: 5},
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, StateFailed, ds.State)
	require.Equal(t, 2, ds.Rows())
}
