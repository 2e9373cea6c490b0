package measure

import "fmt"

// strategy is the one contract the supervisor is polymorphic over: each
// call produces the next block of rows. The supervisor handles the
// safety-interrupt boundary between calls; strategies only check for
// forced interrupts inside a block.
type strategy interface {
	next(r *runner) (done bool, err error)
}

// gridStrategy visits a precomputed domain exactly once, in order, in
// blocks of the largest size every participant supports. block == 1 is
// the fully iterative degradation.
type gridStrategy struct {
	dom    *Domain
	block  int
	cursor int
}

func (g *gridStrategy) next(r *runner) (bool, error) {
	if g.cursor >= g.dom.Len() {
		return true, nil
	}
	n := g.block
	if rest := g.dom.Len() - g.cursor; n > rest {
		n = rest
	}
	if n == 1 {
		if err := g.nextPoint(r); err != nil {
			return false, err
		}
	} else {
		if err := g.nextBlock(r, n); err != nil {
			return false, err
		}
	}
	return g.cursor >= g.dom.Len(), nil
}

// nextPoint is the iterative path: write one tuple, read every
// gettable, commit one row.
func (g *gridStrategy) nextPoint(r *runner) error {
	point := g.dom.Point(g.cursor)
	if err := r.writePoint(point); err != nil {
		return err
	}
	if r.forced() {
		return errInterrupted
	}
	vals, err := r.readPoint()
	if err != nil {
		return err
	}
	r.commitRow(point, vals)
	g.cursor++
	return nil
}

// nextBlock is the batched path: write the block to every settable in
// one call each, read every gettable once per block, commit the rows in
// pre-batching point order.
func (g *gridStrategy) nextBlock(r *runner, n int) error {
	for j, s := range r.c.settables {
		bs := s.(BatchSettable)
		if err := bs.SetBatch(g.dom.Column(j)[g.cursor : g.cursor+n]); err != nil {
			return &RunError{Op: "set", Target: s.Name(), Row: r.ds.Rows(), Wrapped: err}
		}
	}
	r.settle()
	if r.forced() {
		return errInterrupted
	}

	rows, err := g.readBlock(r, n)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		r.commitRow(g.dom.Point(g.cursor+i), rows[i])
	}
	g.cursor += n
	return nil
}

// readBlock acquires n samples from every gettable, averaging repeated
// block reads under soft averaging, and reassembles per-row value
// vectors in schema order.
func (g *gridStrategy) readBlock(r *runner, n int) ([][]float64, error) {
	rows := make([][]float64, n)
	var stdsByRow [][]float64
	for _, gettable := range r.c.gettables {
		bg := gettable.(BatchGettable)
		comps := len(gettable.Components())
		reads := r.reads(gettable)

		acc := make([]*accumulator, n)
		for i := range acc {
			acc[i] = newAccumulator(comps)
		}
		for k := 0; k < reads; k++ {
			batch, err := bg.GetBatch(n)
			if err != nil {
				return nil, &RunError{Op: "get", Row: r.ds.Rows(), Wrapped: err}
			}
			if len(batch) != n {
				return nil, &RunError{Op: "get", Row: r.ds.Rows(),
					Wrapped: fmt.Errorf("%w: batch returned %d samples, want %d", ErrArityMismatch, len(batch), n)}
			}
			for i, sample := range batch {
				if len(sample) != comps {
					return nil, &RunError{Op: "get", Row: r.ds.Rows(),
						Wrapped: fmt.Errorf("%w: sample has %d components, want %d", ErrArityMismatch, len(sample), comps)}
				}
				acc[i].add(sample)
			}
		}
		for i := 0; i < n; i++ {
			rows[i] = append(rows[i], acc[i].means()...)
			if r.spreadDeclared() {
				if stdsByRow == nil {
					stdsByRow = make([][]float64, n)
				}
				stdsByRow[i] = append(stdsByRow[i], acc[i].stds()...)
			}
		}
	}
	if stdsByRow != nil {
		for i := 0; i < n; i++ {
			rows[i] = append(rows[i], stdsByRow[i]...)
		}
	}
	return rows, nil
}
