// Package monitor provides live views of a running acquisition. Every
// monitor consumes read-only dataset snapshots pushed by the run
// supervisor; none of them may assume it sees every row.
package monitor

import (
	"fmt"
	"io"
	"time"

	"github.com/jsenna/acquire/internal/measure"
)

// Console is the minimal monitor: a single progress line rewritten in
// place, with a completion estimate when the total point count is
// known up front.
type Console struct {
	Out io.Writer
	// Total is the expected number of points; 0 means unbounded.
	Total int
	// MinInterval rate-limits redraws.
	MinInterval time.Duration

	start time.Time
	last  time.Time
}

func NewConsole(out io.Writer, total int) *Console {
	return &Console{
		Out:         out,
		Total:       total,
		MinInterval: 100 * time.Millisecond,
	}
}

func (c *Console) Update(snap *measure.Dataset) error {
	if c.start.IsZero() {
		c.start = time.Now()
	}
	final := snap.State != measure.StateRunning
	if !final && time.Since(c.last) < c.MinInterval {
		return nil
	}
	c.last = time.Now()

	elapsed := time.Since(c.start).Round(100 * time.Millisecond)
	if c.Total > 0 {
		frac := float64(snap.Rows()) / float64(c.Total)
		msg := fmt.Sprintf("\r%s: %d/%d points (%.0f%%) elapsed %s",
			snap.Name, snap.Rows(), c.Total, frac*100, elapsed)
		if frac > 0 && frac < 1 {
			left := time.Duration(float64(elapsed) * (1 - frac) / frac).Round(time.Second)
			msg += fmt.Sprintf(" left ~%s", left)
		}
		fmt.Fprint(c.Out, msg)
	} else {
		fmt.Fprintf(c.Out, "\r%s: %d points elapsed %s", snap.Name, snap.Rows(), elapsed)
	}
	if final {
		fmt.Fprintf(c.Out, "  [%s]\n", snap.State)
	}
	return nil
}
