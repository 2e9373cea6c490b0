package measure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"
)

// Severity distinguishes the two interrupt levels. Safety stops at the
// next row boundary and keeps every completed row; Forced stops as soon
// as practically possible, abandoning the in-flight point.
type Severity int32

const (
	severityNone Severity = iota
	Safety
	Forced
)

// Control is the run supervisor: it owns the acquisition loop, the
// dataset being grown, the monitor side channel and the checkpoint
// cadence. Exactly one run is active at a time.
//
// A measurement is always the same three steps: set some parameters,
// read some others, store the row. Control enforces that structure so
// storage and live visualization come for free.
type Control struct {
	name      string
	settables []Settable
	gettables []Gettable
	monitors  []Monitor
	sink      Sink

	// SoftAvg repeats each acquisition N times and stores the mean.
	SoftAvg int
	// StoreSpread adds a companion std-dev variable per component when
	// SoftAvg > 1, linked through a "spread_of" relationship.
	StoreSpread bool
	// SettleDelay is a fixed wait after writing a point, before reading.
	SettleDelay time.Duration
	// UpdateInterval bounds how often checkpoints and monitor pushes
	// happen during the loop.
	UpdateInterval time.Duration
	// OnProgress, if set, receives the completed fraction in [0, 1].
	// Adaptive runs report -1: the domain is unbounded in advance.
	OnProgress func(frac float64)

	interrupt atomic.Int32
	running   atomic.Bool
}

// New creates an idle supervisor.
func New(name string) *Control {
	return &Control{
		name:           name,
		SoftAvg:        1,
		UpdateInterval: 100 * time.Millisecond,
	}
}

// Name returns the supervisor's instance name.
func (c *Control) Name() string { return c.name }

// Configure declares the settables driven and the gettables read by
// subsequent runs. Both lists are ordered and must be non-empty.
func (c *Control) Configure(settables []Settable, gettables []Gettable) error {
	if len(settables) == 0 {
		return ErrNoSettables
	}
	if len(gettables) == 0 {
		return ErrNoGettables
	}
	for i, g := range gettables {
		if len(g.Components()) == 0 {
			return fmt.Errorf("%w: gettable %d", ErrNoComponents, i)
		}
	}
	c.settables = append([]Settable(nil), settables...)
	c.gettables = append([]Gettable(nil), gettables...)
	return nil
}

// AddMonitor registers a live-view sink. Updates are best effort and
// never slow the acquisition loop.
func (c *Control) AddMonitor(m Monitor) { c.monitors = append(c.monitors, m) }

// SetSink installs the durable-storage collaborator.
func (c *Control) SetSink(s Sink) { c.sink = s }

// Interrupt requests cooperative termination of the active run. It is
// safe to call from any goroutine, including a signal handler. A Forced
// request overrides an earlier Safety one, never the reverse.
func (c *Control) Interrupt(sev Severity) {
	for {
		cur := c.interrupt.Load()
		if cur >= int32(sev) {
			return
		}
		if c.interrupt.CompareAndSwap(cur, int32(sev)) {
			return
		}
	}
}

// Run visits every point of the domain exactly once and returns the
// finalized dataset. The dataset is non-nil for every run that started,
// including interrupted and failed ones; err is non-nil only for
// configuration errors and capability failures.
func (c *Control) Run(ctx context.Context, name string, dom *Domain) (*Dataset, error) {
	if dom == nil || dom.Len() == 0 {
		return nil, ErrEmptyDomain
	}
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	if dom.Dims() != len(c.settables) {
		return nil, fmt.Errorf("%w: domain has %d dimensions, %d settables configured",
			ErrArityMismatch, dom.Dims(), len(c.settables))
	}
	strat := &gridStrategy{dom: dom, block: c.blockSize(dom.Len())}
	return c.runWith(ctx, name, strat, dom)
}

// RunAdaptive drives an externally supplied optimizer or learner
// through the acquisition loop. Termination is the stop predicate's
// responsibility (learner mode) or the optimizer's own (direct mode);
// there is no implicit iteration cap.
func (c *Control) RunAdaptive(ctx context.Context, name string, spec AdaptiveSpec) (*Dataset, error) {
	if err := c.checkConfigured(); err != nil {
		return nil, err
	}
	strat, err := newAdaptiveStrategy(spec)
	if err != nil {
		return nil, err
	}
	return c.runWith(ctx, name, strat, nil)
}

func (c *Control) checkConfigured() error {
	if len(c.settables) == 0 {
		return ErrNoSettables
	}
	if len(c.gettables) == 0 {
		return ErrNoGettables
	}
	return nil
}

// blockSize is the largest contiguous block every participant supports:
// the minimum batched-read size across gettables, provided all
// settables accept batched writes. Any participant without batching
// degrades the whole run to point-by-point operation.
func (c *Control) blockSize(limit int) int {
	block := limit
	for _, s := range c.settables {
		if _, ok := s.(BatchSettable); !ok {
			return 1
		}
	}
	for _, g := range c.gettables {
		bg, ok := g.(BatchGettable)
		if !ok {
			return 1
		}
		if max := bg.MaxBatch(); max >= 1 && max < block {
			block = max
		}
	}
	if block < 1 {
		block = 1
	}
	return block
}

func (c *Control) runWith(ctx context.Context, name string, strat strategy, dom *Domain) (*Dataset, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrRunActive
	}
	defer c.running.Store(false)
	c.interrupt.Store(int32(severityNone))

	capacity := 0
	total := 0
	if dom != nil {
		capacity = dom.Len()
		total = dom.Len()
	}
	ds := newDataset(name, c.settables, c.gettables, capacity)
	if dom != nil {
		ds.GridAxes = dom.Axes()
	}
	c.declareSpread(ds)

	r := &runner{
		ctx:     ctx,
		c:       c,
		ds:      ds,
		total:   total,
		lastUpd: time.Now(),
	}
	r.startPumps()

	err := c.prepare()
	if err == nil {
		err = c.execute(r, strat)
	}
	c.finish()

	state := StateDone
	var runErr error
	switch {
	case err == nil:
		state = StateDone
	case errors.Is(err, errInterrupted):
		if r.severity() == Forced {
			state = StateInterruptedForced
		} else {
			state = StateInterruptedSafety
		}
	default:
		state = StateFailed
		runErr = err
	}
	ds.finalize(state)

	// Monitors and the checkpointer get one snapshot carrying the
	// terminal state; stopPumps drains it before returning.
	r.update()
	r.stopPumps()
	if c.sink != nil {
		// Unconditional: a crash-prone long run never loses completed rows.
		if serr := c.sink.Finalize(ds.Snapshot()); serr != nil {
			log.Printf("measure: finalize sink: %v", serr)
		}
	}
	return ds, runErr
}

// execute is the supervisor loop: one strategy step per iteration, a
// cooperative interrupt check at every row-safe boundary in between.
func (c *Control) execute(r *runner, strat strategy) error {
	for {
		if r.severity() != severityNone {
			return errInterrupted
		}
		done, err := strat.next(r)
		if err != nil {
			return err
		}
		r.update()
		if done {
			return nil
		}
	}
}

func (c *Control) declareSpread(ds *Dataset) {
	if c.SoftAvg <= 1 || !c.StoreSpread {
		return
	}
	base := len(ds.Vars)
	for i := 0; i < base; i++ {
		v := ds.Vars[i]
		std := Column{
			Name:   v.Name + "_std",
			Source: v.Source,
			Label:  v.Label + " spread",
			Unit:   v.Unit,
			Values: make([]float64, 0, cap(v.Values)),
		}
		ds.Vars = append(ds.Vars, std)
		ds.Relate(std.Name, "spread_of", v.Name)
	}
}

func (c *Control) prepare() error {
	for _, s := range c.settables {
		if p, ok := s.(Preparable); ok {
			if err := p.Prepare(); err != nil {
				return &RunError{Op: "prepare", Target: s.Name(), Wrapped: err}
			}
		}
	}
	for _, g := range c.gettables {
		if ha, ok := g.(HardwareAverager); ok && c.SoftAvg > 1 {
			if err := ha.SetAverages(c.SoftAvg); err != nil {
				return &RunError{Op: "prepare", Wrapped: err}
			}
		}
		if p, ok := g.(Preparable); ok {
			if err := p.Prepare(); err != nil {
				return &RunError{Op: "prepare", Wrapped: err}
			}
		}
	}
	return nil
}

// finish releases capabilities after the last point. Failures here are
// logged, not escalated: the data is already collected.
func (c *Control) finish() {
	for _, s := range c.settables {
		if f, ok := s.(Finisher); ok {
			if err := f.Finish(); err != nil {
				log.Printf("measure: finish %s: %v", s.Name(), err)
			}
		}
	}
	for _, g := range c.gettables {
		if f, ok := g.(Finisher); ok {
			if err := f.Finish(); err != nil {
				log.Printf("measure: finish gettable: %v", err)
			}
		}
	}
}

// runner carries the per-run loop state shared by the strategies.
type runner struct {
	ctx     context.Context
	c       *Control
	ds      *Dataset
	total   int // expected rows; 0 when unbounded (adaptive)
	lastUpd time.Time

	pumps []*monitorPump
	ckpt  *checkpointPump
}

// severity reports the currently requested interrupt level. Context
// cancellation counts as a forced interrupt: same terminal state, rows
// collected so far are kept.
func (r *runner) severity() Severity {
	if r.ctx != nil && r.ctx.Err() != nil {
		return Forced
	}
	return Severity(r.c.interrupt.Load())
}

func (r *runner) forced() bool { return r.severity() == Forced }

// commitRow appends one fully-formed row and pushes side-channel
// updates if the cadence allows.
func (r *runner) commitRow(coords, vals []float64) {
	r.ds.appendRow(coords, vals)
	if time.Since(r.lastUpd) > r.c.UpdateInterval {
		r.update()
	}
}

// update pushes a snapshot to monitors and the checkpointer, and
// reports progress. Called at cadence boundaries and after each block.
func (r *runner) update() {
	var snap *Dataset
	for _, p := range r.pumps {
		if snap == nil {
			snap = r.ds.Snapshot()
		}
		p.push(snap)
	}
	if r.ckpt != nil {
		if snap == nil {
			snap = r.ds.Snapshot()
		}
		r.ckpt.push(snap)
	}
	if r.c.OnProgress != nil {
		frac := -1.0
		if r.total > 0 {
			frac = float64(r.ds.Rows()) / float64(r.total)
		}
		r.c.OnProgress(frac)
	}
	r.lastUpd = time.Now()
}

// writePoint drives every settable to the given tuple, then waits out
// the settle delay.
func (r *runner) writePoint(point []float64) error {
	if len(point) != len(r.c.settables) {
		return &RunError{Op: "set", Row: r.ds.Rows(),
			Wrapped: fmt.Errorf("%w: got %d components, want %d", ErrArityMismatch, len(point), len(r.c.settables))}
	}
	for j, s := range r.c.settables {
		if err := s.Set(point[j]); err != nil {
			return &RunError{Op: "set", Target: s.Name(), Row: r.ds.Rows(), Wrapped: err}
		}
	}
	r.settle()
	return nil
}

func (r *runner) settle() {
	if r.c.SettleDelay > 0 {
		time.Sleep(r.c.SettleDelay)
	}
}

// reads returns how many acquisitions the engine issues per point: one
// when the gettable averages internally, SoftAvg otherwise.
func (r *runner) reads(g Gettable) int {
	if r.c.SoftAvg <= 1 {
		return 1
	}
	if _, ok := g.(HardwareAverager); ok {
		return 1
	}
	return r.c.SoftAvg
}

// readPoint acquires one row's variable values: every gettable once (or
// SoftAvg times, averaged), components concatenated in schema order,
// spread columns appended when declared.
func (r *runner) readPoint() ([]float64, error) {
	var means, stds []float64
	for _, g := range r.c.gettables {
		n := r.reads(g)
		acc := newAccumulator(len(g.Components()))
		for k := 0; k < n; k++ {
			vals, err := g.Get()
			if err != nil {
				return nil, &RunError{Op: "get", Row: r.ds.Rows(), Wrapped: err}
			}
			if len(vals) != len(g.Components()) {
				return nil, &RunError{Op: "get", Row: r.ds.Rows(),
					Wrapped: fmt.Errorf("%w: got %d components, want %d", ErrArityMismatch, len(vals), len(g.Components()))}
			}
			acc.add(vals)
		}
		means = append(means, acc.means()...)
		stds = append(stds, acc.stds()...)
	}
	if r.spreadDeclared() {
		means = append(means, stds...)
	}
	return means, nil
}

func (r *runner) spreadDeclared() bool {
	return r.c.SoftAvg > 1 && r.c.StoreSpread
}

func (r *runner) startPumps() {
	for _, m := range r.c.monitors {
		r.pumps = append(r.pumps, newMonitorPump(m))
	}
	if r.c.sink != nil {
		r.ckpt = newCheckpointPump(r.c.sink)
	}
}

func (r *runner) stopPumps() {
	for _, p := range r.pumps {
		p.stop()
	}
	if r.ckpt != nil {
		r.ckpt.stop()
	}
}

// monitorPump decouples a monitor from the control loop: a single-slot
// latest-wins channel feeding one goroutine, so a slow monitor only
// ever sees fewer snapshots, never stalls acquisition.
type monitorPump struct {
	ch   chan *Dataset
	done chan struct{}
}

func newMonitorPump(m Monitor) *monitorPump {
	p := &monitorPump{
		ch:   make(chan *Dataset, 1),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		for snap := range p.ch {
			safeUpdate(m, snap)
		}
	}()
	return p
}

func safeUpdate(m Monitor, snap *Dataset) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("measure: monitor panic: %v", rec)
		}
	}()
	if err := m.Update(snap); err != nil {
		log.Printf("measure: monitor update: %v", err)
	}
}

func (p *monitorPump) push(snap *Dataset) {
	select {
	case p.ch <- snap:
	default:
		// Slot occupied: replace the stale snapshot with the fresh one.
		select {
		case <-p.ch:
		default:
		}
		select {
		case p.ch <- snap:
		default:
		}
	}
}

func (p *monitorPump) stop() {
	close(p.ch)
	<-p.done
}

// checkpointPump writes periodic snapshots through the sink on its own
// goroutine. The single worker guarantees checkpoints never overlap
// each other; latest-wins dropping bounds the backlog.
type checkpointPump struct {
	ch   chan *Dataset
	done chan struct{}
}

func newCheckpointPump(sink Sink) *checkpointPump {
	p := &checkpointPump{
		ch:   make(chan *Dataset, 1),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		for snap := range p.ch {
			if err := sink.Checkpoint(snap); err != nil {
				log.Printf("measure: checkpoint: %v", err)
			}
		}
	}()
	return p
}

func (p *checkpointPump) push(snap *Dataset) {
	select {
	case p.ch <- snap:
	default:
		select {
		case <-p.ch:
		default:
		}
		select {
		case p.ch <- snap:
		default:
		}
	}
}

func (p *checkpointPump) stop() {
	close(p.ch)
	<-p.done
}

// accumulator tracks per-component running mean and spread across
// repeated acquisitions of one point.
type accumulator struct {
	n    int
	sum  []float64
	sumq []float64
}

func newAccumulator(components int) *accumulator {
	return &accumulator{
		sum:  make([]float64, components),
		sumq: make([]float64, components),
	}
}

func (a *accumulator) add(vals []float64) {
	a.n++
	for i, v := range vals {
		a.sum[i] += v
		a.sumq[i] += v * v
	}
}

func (a *accumulator) means() []float64 {
	out := make([]float64, len(a.sum))
	for i, s := range a.sum {
		out[i] = s / float64(a.n)
	}
	return out
}

func (a *accumulator) stds() []float64 {
	out := make([]float64, len(a.sum))
	if a.n < 2 {
		return out
	}
	for i := range a.sum {
		mean := a.sum[i] / float64(a.n)
		variance := a.sumq[i]/float64(a.n) - mean*mean
		if variance > 0 {
			out[i] = math.Sqrt(variance)
		}
	}
	return out
}
