package measure

import (
	"errors"
	"reflect"
	"testing"
)

func TestFromPoints(t *testing.T) {
	d, err := FromPoints([]float64{0, 1, 2}, []float64{10, 11, 12})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if d.Len() != 3 || d.Dims() != 2 {
		t.Fatalf("got %dx%d, want 3x2", d.Len(), d.Dims())
	}
	if got := d.Point(1); !reflect.DeepEqual(got, []float64{1, 11}) {
		t.Errorf("point 1 = %v", got)
	}
}

func TestFromPointsErrors(t *testing.T) {
	tests := []struct {
		name string
		cols [][]float64
		want error
	}{
		{"no columns", nil, ErrEmptyDomain},
		{"empty column", [][]float64{{}}, ErrEmptyDomain},
		{"mismatched lengths", [][]float64{{1, 2}, {3}}, ErrLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromPoints(tt.cols...)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGridRowMajor(t *testing.T) {
	d, err := Grid([]float64{0, 1}, []float64{10, 20, 30})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if d.Len() != 6 {
		t.Fatalf("len = %d, want 6", d.Len())
	}
	// First settable slowest, last fastest.
	want := [][]float64{
		{0, 10}, {0, 20}, {0, 30},
		{1, 10}, {1, 20}, {1, 30},
	}
	for i, w := range want {
		if got := d.Point(i); !reflect.DeepEqual(got, w) {
			t.Errorf("point %d = %v, want %v", i, got, w)
		}
	}
}

func TestGridRagged(t *testing.T) {
	// Axes of different lengths are fine; the product is still complete.
	d, err := Grid([]float64{1, 2, 3}, []float64{0.5}, []float64{7, 8})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if d.Len() != 6 {
		t.Errorf("len = %d, want 6", d.Len())
	}
	if got := d.Point(5); !reflect.DeepEqual(got, []float64{3, 0.5, 8}) {
		t.Errorf("last point = %v", got)
	}
}

func TestGridIdempotent(t *testing.T) {
	axes := [][]float64{{0, 0.5, 1}, {-1, 1}}
	a, err := Grid(axes...)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	b, err := Grid(axes...)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	for i := 0; i < a.Len(); i++ {
		if !reflect.DeepEqual(a.Point(i), b.Point(i)) {
			t.Fatalf("point %d differs between builds", i)
		}
	}
}

func TestGridEmptyAxis(t *testing.T) {
	if _, err := Grid([]float64{1, 2}, nil); !errors.Is(err, ErrEmptyDomain) {
		t.Errorf("got %v, want ErrEmptyDomain", err)
	}
}

func TestDomainColumnsShareOrder(t *testing.T) {
	d, _ := Grid([]float64{0, 1}, []float64{10, 20})
	for i := 0; i < d.Len(); i++ {
		p := d.Point(i)
		for j := 0; j < d.Dims(); j++ {
			if d.Column(j)[i] != p[j] {
				t.Fatalf("column %d row %d disagrees with Point", j, i)
			}
		}
	}
}
