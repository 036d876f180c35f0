// Package telemetry provides forward-run statistics, bookmarks, timing and CSV output.
package telemetry

// DeathCause records why an organism died.
type DeathCause string

const (
	CauseNone       DeathCause = ""
	CausePredation  DeathCause = "predation"
	CauseStarvation DeathCause = "starvation"
)

// Collector accumulates events within one timestep and produces StepStats.
type Collector struct {
	nPatches int

	// Per-step accumulators
	states       []float64
	fitness      float64
	patchCounts  []int
	fed          int
	predDeaths   int
	starveDeaths int
}

// NewCollector creates a collector for a model with nPatches patches.
func NewCollector(nPatches int) *Collector {
	return &Collector{
		nPatches:    nPatches,
		patchCounts: make([]int, nPatches),
	}
}

// RecordChoice records a living organism's reserve, chosen patch and the
// expected fitness of that choice at the start of the step.
func (c *Collector) RecordChoice(state, patch int, fitness float64) {
	c.states = append(c.states, float64(state))
	c.fitness += fitness
	if patch >= 0 && patch < c.nPatches {
		c.patchCounts[patch]++
	}
}

// RecordFed records an organism that found food.
func (c *Collector) RecordFed() {
	c.fed++
}

// RecordDeath records a death event.
func (c *Collector) RecordDeath(cause DeathCause) {
	switch cause {
	case CausePredation:
		c.predDeaths++
	case CauseStarvation:
		c.starveDeaths++
	}
}

// Flush produces the StepStats for timestep t and resets for the next step.
func (c *Collector) Flush(t int) StepStats {
	mean, std, p10, p50, p90 := ComputeStateStats(c.states)

	alive := len(c.states)
	var meanFitness float64
	if alive > 0 {
		meanFitness = c.fitness / float64(alive)
	}

	counts := make(Counts, c.nPatches)
	copy(counts, c.patchCounts)

	s := StepStats{
		T:                t,
		AliveAtStart:     alive,
		AliveAtEnd:       alive - c.predDeaths - c.starveDeaths,
		PredationDeaths:  c.predDeaths,
		StarvationDeaths: c.starveDeaths,
		Fed:              c.fed,
		StateMean:        mean,
		StateStd:         std,
		StateP10:         p10,
		StateP50:         p50,
		StateP90:         p90,
		MeanFitness:      meanFitness,
		PatchCounts:      counts,
	}

	// Reset for next step
	c.states = c.states[:0]
	c.fitness = 0
	for i := range c.patchCounts {
		c.patchCounts[i] = 0
	}
	c.fed = 0
	c.predDeaths = 0
	c.starveDeaths = 0

	return s
}
