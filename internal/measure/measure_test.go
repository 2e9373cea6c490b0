package measure

// Shared test doubles: an in-memory settable and a gettable computed
// from the settables' current values.

type stubSettable struct {
	name  string
	value float64
	sets  []float64
	err   error
}

func (s *stubSettable) Name() string  { return s.name }
func (s *stubSettable) Label() string { return s.name }
func (s *stubSettable) Unit() string  { return "V" }

func (s *stubSettable) Set(v float64) error {
	if s.err != nil {
		return s.err
	}
	s.value = v
	s.sets = append(s.sets, v)
	return nil
}

type batchSettable struct {
	stubSettable
	batches [][]float64
}

func (s *batchSettable) SetBatch(vs []float64) error {
	if s.err != nil {
		return s.err
	}
	s.value = vs[len(vs)-1]
	s.batches = append(s.batches, append([]float64(nil), vs...))
	return nil
}

type stubGettable struct {
	comps []Component
	fn    func() []float64
	gets  int
	err   error
}

func scalarGettable(name string, fn func() float64) *stubGettable {
	return &stubGettable{
		comps: []Component{{Name: name, Label: name, Unit: "a.u."}},
		fn:    func() []float64 { return []float64{fn()} },
	}
}

func (g *stubGettable) Components() []Component { return g.comps }

func (g *stubGettable) Get() ([]float64, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.gets++
	return g.fn(), nil
}

type batchGettable struct {
	stubGettable
	max        int
	batchCalls int
	// block produces the samples for the n points most recently written.
	block func(n int) [][]float64
}

func (g *batchGettable) MaxBatch() int { return g.max }

func (g *batchGettable) GetBatch(n int) ([][]float64, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.batchCalls++
	return g.block(n), nil
}
