// Package forward replays a population of organisms through the decision
// table, drawing feeding and predation outcomes at random.
package forward

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/forage/landscape"
	"github.com/pthm-cable/forage/patch"
	"github.com/pthm-cable/forage/telemetry"
)

// ErrBadOptions is returned for invalid simulation settings.
var ErrBadOptions = errors.New("forward: invalid options")

// Options configures a forward run.
type Options struct {
	NOrganisms int
	InitState  int
	NTimesteps int // Must not exceed the table horizon
	Seed       int64
}

// Result holds everything recorded during a run.
type Result struct {
	Locations []telemetry.Location
	Steps     []telemetry.StepStats
	Lifetimes []telemetry.LifetimeStats
	Bookmarks []telemetry.Bookmark
	Survivors int
}

// StepObserver receives each step's stats and location rows as they are produced.
type StepObserver func(stats telemetry.StepStats, locs []telemetry.Location) error

// Simulator holds the organism world for one forward run.
type Simulator struct {
	table   *landscape.Table
	patches []patch.Patch
	bounds  patch.Bounds
	opts    Options
	rng     *rand.Rand
	logger  *slog.Logger

	world  *ecs.World
	mapper *ecs.Map3[Identity, Reserve, Choice]
	filter *ecs.Filter3[Identity, Reserve, Choice]

	collector *telemetry.Collector
	lifetimes *telemetry.LifetimeTracker
	detector  *telemetry.BookmarkDetector
	bookmarks []telemetry.Bookmark
	observer  StepObserver
	perf      *telemetry.PerfCollector

	alive int
}

// NewSimulator checks the options against the table and spawns the population.
func NewSimulator(tb *landscape.Table, reg *patch.Registry, opts Options) (*Simulator, error) {
	b := tb.Bounds()
	if opts.NOrganisms < 0 {
		return nil, fmt.Errorf("%w: n_organisms %d < 0", ErrBadOptions, opts.NOrganisms)
	}
	if opts.NTimesteps <= 0 || opts.NTimesteps > b.NTimesteps {
		return nil, fmt.Errorf("%w: n_timesteps %d outside [1, %d]", ErrBadOptions, opts.NTimesteps, b.NTimesteps)
	}
	if !b.Alive(opts.InitState) || opts.InitState > b.XMax {
		return nil, fmt.Errorf("%w: init_state %d outside (%d, %d]", ErrBadOptions, opts.InitState, b.XCrit, b.XMax)
	}
	var bad *landscape.Record
	tb.Each(func(r landscape.Record) bool {
		if r.ChosenPatch < 0 || r.ChosenPatch >= reg.Len() {
			bad = &r
			return false
		}
		return true
	})
	if bad != nil {
		return nil, fmt.Errorf("%w: table picks patch %d at t=%d state=%d, registry has %d",
			ErrBadOptions, bad.ChosenPatch, bad.T, bad.State, reg.Len())
	}

	world := ecs.NewWorld()
	s := &Simulator{
		table:     tb,
		patches:   reg.Patches(),
		bounds:    b,
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		logger:    slog.Default(),
		world:     world,
		mapper:    ecs.NewMap3[Identity, Reserve, Choice](world),
		filter:    ecs.NewFilter3[Identity, Reserve, Choice](world),
		collector: telemetry.NewCollector(reg.Len()),
		lifetimes: telemetry.NewLifetimeTracker(reg.Len()),
		detector:  telemetry.NewBookmarkDetector(10),
	}

	for i := 0; i < opts.NOrganisms; i++ {
		id := Identity{ID: i}
		res := Reserve{Value: opts.InitState}
		choice := Choice{Patch: -1}
		s.mapper.NewEntity(&id, &res, &choice)
		s.lifetimes.Register(i, opts.InitState)
	}
	s.alive = opts.NOrganisms

	return s, nil
}

// SetLogger replaces the default logger.
func (s *Simulator) SetLogger(l *slog.Logger) {
	s.logger = l
}

// SetObserver registers a callback invoked after every step.
func (s *Simulator) SetObserver(o StepObserver) {
	s.observer = o
}

// SetPerf times the phases of every step into pc.
func (s *Simulator) SetPerf(pc *telemetry.PerfCollector) {
	s.perf = pc
}

// Alive returns the number of living organisms.
func (s *Simulator) Alive() int {
	return s.alive
}

// Run advances the population from t = 0 to NTimesteps-1.
func (s *Simulator) Run() (*Result, error) {
	res := &Result{}
	for t := 0; t < s.opts.NTimesteps; t++ {
		stats, locs, err := s.Step(t)
		if err != nil {
			return nil, err
		}
		res.Steps = append(res.Steps, stats)
		res.Locations = append(res.Locations, locs...)
		if s.observer != nil {
			if err := s.observer(stats, locs); err != nil {
				return nil, err
			}
		}
	}
	res.Lifetimes = s.lifetimes.All()
	res.Bookmarks = s.bookmarks
	res.Survivors = s.alive

	s.logger.Info("forward simulation complete",
		"organisms", s.opts.NOrganisms,
		"timesteps", s.opts.NTimesteps,
		"survivors", s.alive,
		"perf", s.perf.Stats(),
	)
	return res, nil
}

// Step moves every living organism through timestep t. Organisms that die
// are recorded once and then removed from the world.
func (s *Simulator) Step(t int) (telemetry.StepStats, []telemetry.Location, error) {
	s.perf.StartStep()
	defer s.perf.EndStep()

	var dead []ecs.Entity
	locs := make([]telemetry.Location, 0, s.alive)

	s.perf.StartPhase(telemetry.PhaseDecide)
	query := s.filter.Query()
	for query.Next() {
		id, reserve, choice := query.Get()

		rec, err := s.table.Get(t, reserve.Value)
		if err != nil {
			query.Close()
			return telemetry.StepStats{}, nil, fmt.Errorf("organism %d at t=%d: %w", id.ID, t, err)
		}
		choice.Patch = rec.ChosenPatch
		s.collector.RecordChoice(reserve.Value, rec.ChosenPatch, rec.FitnessNow)

		loc := telemetry.Location{T: t, ID: id.ID, State: reserve.Value, Patch: rec.ChosenPatch, Alive: true}
		cause, fed, next := s.outcome(reserve.Value, s.patches[rec.ChosenPatch])
		if fed {
			s.collector.RecordFed()
		}
		s.lifetimes.RecordStep(id.ID, rec.ChosenPatch, fed, next)

		if cause != telemetry.CauseNone {
			loc.Alive = false
			s.collector.RecordDeath(cause)
			s.lifetimes.RecordDeath(id.ID, t, cause)
			dead = append(dead, query.Entity())
		} else {
			s.lifetimes.RecordSurvival(id.ID)
		}
		reserve.Value = next
		locs = append(locs, loc)
	}

	// Remove after the query has finished iterating
	s.perf.StartPhase(telemetry.PhaseCleanup)
	for _, e := range dead {
		s.mapper.Remove(e)
		s.alive--
	}

	s.perf.StartPhase(telemetry.PhaseStats)
	stats := s.collector.Flush(t)
	s.logger.Debug("forward step", "stats", stats)
	for _, bm := range s.detector.Check(stats) {
		bm.LogBookmark(s.logger)
		s.bookmarks = append(s.bookmarks, bm)
	}
	return stats, locs, nil
}

// outcome draws predation and then feeding for one organism in patch p.
// It returns the death cause (if any), whether food was found, and the
// reserve after the step, capped at XMax.
func (s *Simulator) outcome(x int, p patch.Patch) (telemetry.DeathCause, bool, int) {
	if s.rng.Float64() < p.PredationProb {
		return telemetry.CausePredation, false, x
	}

	fed := s.rng.Float64() < p.FoodProb
	next := x - p.Cost
	if fed {
		next += p.StateIncrement
	}
	if next > s.bounds.XMax {
		next = s.bounds.XMax
	}
	if !s.bounds.Alive(next) {
		return telemetry.CauseStarvation, fed, next
	}
	return telemetry.CauseNone, fed, next
}
