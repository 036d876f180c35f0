package induction

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/forage/landscape"
	"github.com/pthm-cable/forage/patch"
	"github.com/pthm-cable/forage/telemetry"
)

// ErrFitnessDomain is returned when a computed fitness leaves [0,1].
// It means the inputs or the formula are wrong; values are never clamped.
var ErrFitnessDomain = errors.New("induction: fitness outside [0,1]")

// fitnessTolerance is the slack allowed around [0,1] for rounding.
const fitnessTolerance = 1e-9

// parallelThreshold is the minimum number of living states before a
// timestep is split across workers. Below it goroutine overhead dominates.
const parallelThreshold = 64

// StepHook observes each timestep after the optimal patches are chosen and
// before F0 is copied into F1. The slices are owned by the engine and must
// not be retained or modified.
type StepHook func(t int, f0, f1 []float64, d []int)

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many goroutines share the states of one timestep.
// n <= 0 uses GOMAXPROCS; 1 runs serially.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		e.workers = n
	}
}

// WithStepHook registers a per-timestep observer.
func WithStepHook(h StepHook) Option {
	return func(e *Engine) {
		e.hook = h
	}
}

// WithLogger sets the logger for run progress. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithPerf times the phases of every timestep into pc.
func WithPerf(pc *telemetry.PerfCollector) Option {
	return func(e *Engine) {
		e.perf = pc
	}
}

// Engine owns the fitness and decision buffers for one model.
// F0 holds F(x,t) being computed, F1 holds F(x,t+1), D holds the chosen
// patch index. All three are indexed by reserve 0..XMax.
type Engine struct {
	patches []patch.Patch
	bounds  patch.Bounds
	workers int
	hook    StepHook
	logger  *slog.Logger
	perf    *telemetry.PerfCollector

	f0 []float64
	f1 []float64
	d  []int
}

// NewEngine validates the registry and bounds and sets the terminal
// condition. Invalid input is reported here, before any timestep runs.
func NewEngine(reg *patch.Registry, b patch.Bounds, opts ...Option) (*Engine, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, patch.ErrEmptyRegistry
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		patches: reg.Patches(),
		bounds:  b,
		workers: 1,
		f0:      make([]float64, b.XMax+1),
		f1:      make([]float64, b.XMax+1),
		d:       make([]int, b.XMax+1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.reset()
	return e, nil
}

// reset applies the terminal condition: F1 is 1 above x_crit and 0 at or
// below it, F0 and D are zero.
func (e *Engine) reset() {
	for x := range e.f1 {
		e.f0[x] = 0
		e.d[x] = 0
		if x > e.bounds.XCrit {
			e.f1[x] = 1
		} else {
			e.f1[x] = 0
		}
	}
}

// Bounds returns the state space of the engine.
func (e *Engine) Bounds() patch.Bounds {
	return e.bounds
}

// F0 returns a copy of the current F(x,t) buffer.
func (e *Engine) F0() []float64 {
	return append([]float64(nil), e.f0...)
}

// F1 returns a copy of the current F(x,t+1) buffer.
func (e *Engine) F1() []float64 {
	return append([]float64(nil), e.f1...)
}

// Decisions returns a copy of the current decision buffer.
func (e *Engine) Decisions() []int {
	return append([]int(nil), e.d...)
}

// Run performs the full backward pass from t = NTimesteps-1 down to 0 and
// returns the decision table. Each call starts again from the terminal
// condition, so repeated runs give identical tables.
func (e *Engine) Run() (*landscape.Table, error) {
	e.reset()

	bd, err := landscape.NewBuilder(e.bounds)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("backward induction starting",
		"n_timesteps", e.bounds.NTimesteps,
		"x_crit", e.bounds.XCrit,
		"x_max", e.bounds.XMax,
		"patches", len(e.patches),
		"workers", e.workers,
	)

	for t := e.bounds.NTimesteps - 1; t >= 0; t-- {
		if err := e.step(t, bd); err != nil {
			return nil, err
		}
	}

	tb, err := bd.Finish()
	if err != nil {
		return nil, err
	}
	e.logger.Debug("backward induction complete", "records", tb.Len(), "perf", e.perf.Stats())
	return tb, nil
}

// step processes one timestep: choose patches, check the fitness domain,
// record rows, then shift F0 into F1.
func (e *Engine) step(t int, bd *landscape.Builder) error {
	lo, hi := e.bounds.XCrit+1, e.bounds.XMax+1
	e.perf.StartStep()
	defer e.perf.EndStep()

	e.perf.StartPhase(telemetry.PhaseOptimize)
	if e.workers > 1 && hi-lo >= parallelThreshold {
		e.optimizeParallel(lo, hi)
	} else {
		e.optimizeRange(lo, hi)
	}

	e.perf.StartPhase(telemetry.PhaseValidate)
	if err := e.checkDomain(t, lo, hi); err != nil {
		return err
	}

	if e.hook != nil {
		e.hook(t, e.f0, e.f1, e.d)
	}

	e.perf.StartPhase(telemetry.PhaseRecord)
	for x := lo; x < hi; x++ {
		err := bd.Add(landscape.Record{
			T:           t,
			State:       x,
			FitnessNow:  e.f0[x],
			FitnessNext: e.f1[x],
			ChosenPatch: e.d[x],
		})
		if err != nil {
			return fmt.Errorf("record t=%d x=%d: %w", t, x, err)
		}
	}

	copy(e.f1, e.f0)
	return nil
}

// optimizeRange fills F0 and D for states in [lo, hi). Patches are compared
// in registry order and a later patch wins only if strictly better, so ties
// go to the lowest index.
func (e *Engine) optimizeRange(lo, hi int) {
	for x := lo; x < hi; x++ {
		best := Value(x, e.patches[0], e.bounds, e.f1)
		choice := 0
		for i := 1; i < len(e.patches); i++ {
			if v := Value(x, e.patches[i], e.bounds, e.f1); v > best {
				best = v
				choice = i
			}
		}
		e.f0[x] = best
		e.d[x] = choice
	}
}

// optimizeParallel splits [lo, hi) into contiguous chunks, one per worker.
// States only read F1 and write their own F0/D slot, so chunks never overlap.
func (e *Engine) optimizeParallel(lo, hi int) {
	n := hi - lo
	chunkSize := (n + e.workers - 1) / e.workers

	var wg sync.WaitGroup
	for start := lo; start < hi; start += chunkSize {
		end := start + chunkSize
		if end > hi {
			end = hi
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			e.optimizeRange(start, end)
		}(start, end)
	}
	wg.Wait()
}

func (e *Engine) checkDomain(t, lo, hi int) error {
	living := e.f0[lo:hi]
	if floats.Min(living) >= -fitnessTolerance && floats.Max(living) <= 1+fitnessTolerance {
		return nil
	}
	for i, v := range living {
		if v < -fitnessTolerance || v > 1+fitnessTolerance {
			return fmt.Errorf("%w: t=%d x=%d F0=%v", ErrFitnessDomain, t, lo+i, v)
		}
	}
	return nil
}
