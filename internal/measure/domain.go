package measure

// Domain is the ordered sequence of actuation tuples a run will visit,
// stored as one column per settable. It is immutable once a run starts.
type Domain struct {
	cols [][]float64
	axes [][]float64 // per-dimension axes when built via Grid, else nil
}

// FromPoints builds a point-list domain from explicit per-settable
// columns. All columns must share the same length.
func FromPoints(cols ...[]float64) (*Domain, error) {
	if len(cols) == 0 || len(cols[0]) == 0 {
		return nil, ErrEmptyDomain
	}
	n := len(cols[0])
	for _, c := range cols[1:] {
		if len(c) != n {
			return nil, ErrLengthMismatch
		}
	}
	d := &Domain{cols: make([][]float64, len(cols))}
	for i, c := range cols {
		d.cols[i] = append([]float64(nil), c...)
	}
	return d, nil
}

// Grid builds the cartesian product of the given axes, one axis per
// settable. Ordering is row-major: the first settable varies slowest,
// the last varies fastest.
func Grid(axes ...[]float64) (*Domain, error) {
	if len(axes) == 0 {
		return nil, ErrEmptyDomain
	}
	total := 1
	for _, ax := range axes {
		if len(ax) == 0 {
			return nil, ErrEmptyDomain
		}
		total *= len(ax)
	}

	d := &Domain{
		cols: make([][]float64, len(axes)),
		axes: make([][]float64, len(axes)),
	}
	stride := total
	for j, ax := range axes {
		d.axes[j] = append([]float64(nil), ax...)
		stride /= len(ax)
		col := make([]float64, total)
		for i := 0; i < total; i++ {
			col[i] = ax[(i/stride)%len(ax)]
		}
		d.cols[j] = col
	}
	return d, nil
}

// Len returns the number of setpoints.
func (d *Domain) Len() int {
	if len(d.cols) == 0 {
		return 0
	}
	return len(d.cols[0])
}

// Dims returns the number of settable dimensions.
func (d *Domain) Dims() int { return len(d.cols) }

// Point returns the i-th actuation tuple, one value per settable.
func (d *Domain) Point(i int) []float64 {
	p := make([]float64, len(d.cols))
	for j, c := range d.cols {
		p[j] = c[i]
	}
	return p
}

// Column returns the full visitation-ordered values for dimension j.
// The returned slice is shared; callers must not mutate it.
func (d *Domain) Column(j int) []float64 { return d.cols[j] }

// Axes returns the per-dimension axes for grid-built domains, nil
// otherwise.
func (d *Domain) Axes() [][]float64 { return d.axes }
