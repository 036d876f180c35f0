package telemetry

import "sort"

// LifetimeStats tracks one organism over its life.
type LifetimeStats struct {
	ID         int        `csv:"id"`
	InitState  int        `csv:"init_state"`
	FinalState int        `csv:"final_state"`
	PeakState  int        `csv:"peak_state"`
	Steps      int        `csv:"steps"` // Timesteps survived
	TimesFed   int        `csv:"times_fed"`
	DeathT     int        `csv:"death_t"` // -1 if alive at the end
	Cause      DeathCause `csv:"cause"`
	Visits     Counts     `csv:"patch_visits"`
}

// Alive reports whether the organism survived the simulation.
func (s *LifetimeStats) Alive() bool {
	return s.Cause == CauseNone
}

// LifetimeTracker manages per-organism lifetime statistics.
type LifetimeTracker struct {
	nPatches int
	stats    map[int]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker(nPatches int) *LifetimeTracker {
	return &LifetimeTracker{
		nPatches: nPatches,
		stats:    make(map[int]*LifetimeStats),
	}
}

// Register creates lifetime stats for a new organism.
func (lt *LifetimeTracker) Register(id, initState int) {
	lt.stats[id] = &LifetimeStats{
		ID:         id,
		InitState:  initState,
		FinalState: initState,
		PeakState:  initState,
		DeathT:     -1,
		Visits:     make(Counts, lt.nPatches),
	}
}

// Get returns the lifetime stats for an organism, or nil if not found.
func (lt *LifetimeTracker) Get(id int) *LifetimeStats {
	return lt.stats[id]
}

// RecordStep records the patch visited during a step, whether food was
// found, and the reserve afterwards.
func (lt *LifetimeTracker) RecordStep(id, patch int, fed bool, state int) {
	s := lt.stats[id]
	if s == nil {
		return
	}
	if patch >= 0 && patch < len(s.Visits) {
		s.Visits[patch]++
	}
	if fed {
		s.TimesFed++
	}
	s.FinalState = state
	if state > s.PeakState {
		s.PeakState = state
	}
}

// RecordSurvival counts a survived step.
func (lt *LifetimeTracker) RecordSurvival(id int) {
	if s := lt.stats[id]; s != nil {
		s.Steps++
	}
}

// RecordDeath marks the organism dead at timestep t.
func (lt *LifetimeTracker) RecordDeath(id, t int, cause DeathCause) {
	if s := lt.stats[id]; s != nil {
		s.DeathT = t
		s.Cause = cause
	}
}

// All returns copies of all tracked stats ordered by id.
func (lt *LifetimeTracker) All() []LifetimeStats {
	out := make([]LifetimeStats, 0, len(lt.stats))
	for _, s := range lt.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of tracked organisms.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
