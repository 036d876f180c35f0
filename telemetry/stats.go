package telemetry

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Counts is a per-patch tally, written to CSV as a ';'-separated list.
type Counts []int

// MarshalCSV implements gocsv.TypeMarshaller.
func (c Counts) MarshalCSV() (string, error) {
	parts := make([]string, len(c))
	for i, n := range c {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ";"), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (c *Counts) UnmarshalCSV(s string) error {
	*c = nil
	if s == "" {
		return nil
	}
	for _, p := range strings.Split(s, ";") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("parsing count %q: %w", p, err)
		}
		*c = append(*c, n)
	}
	return nil
}

// StepStats holds population statistics for one forward timestep.
// State statistics describe the organisms alive at the start of the step.
type StepStats struct {
	T int `csv:"t"`

	// Population
	AliveAtStart     int `csv:"alive_start"`
	AliveAtEnd       int `csv:"alive_end"`
	PredationDeaths  int `csv:"deaths_predation"`
	StarvationDeaths int `csv:"deaths_starvation"`
	Fed              int `csv:"fed"`

	// Reserve distribution
	StateMean float64 `csv:"state_mean"`
	StateStd  float64 `csv:"state_std"`
	StateP10  float64 `csv:"state_p10"`
	StateP50  float64 `csv:"state_p50"`
	StateP90  float64 `csv:"state_p90"`

	// Expected survival to the horizon, averaged over the living
	MeanFitness float64 `csv:"mean_fitness"`

	// Patch occupancy, indexed by patch
	PatchCounts Counts `csv:"patch_counts"`
}

// ComputeStateStats calculates mean, standard deviation and percentiles of
// reserve levels. Returns zeros for an empty slice.
func ComputeStateStats(values []float64) (mean, std, p10, p50, p90 float64) {
	switch len(values) {
	case 0:
		return 0, 0, 0, 0, 0
	case 1:
		v := values[0]
		return v, 0, v, v, v
	}

	mean, std = stat.MeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)

	return mean, std, p10, p50, p90
}

// Deaths returns the total deaths during the step.
func (s StepStats) Deaths() int {
	return s.PredationDeaths + s.StarvationDeaths
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("t", s.T),
		slog.Int("alive_start", s.AliveAtStart),
		slog.Int("alive_end", s.AliveAtEnd),
		slog.Int("deaths_predation", s.PredationDeaths),
		slog.Int("deaths_starvation", s.StarvationDeaths),
		slog.Int("fed", s.Fed),
		slog.Float64("state_mean", s.StateMean),
		slog.Float64("state_std", s.StateStd),
		slog.Float64("state_p50", s.StateP50),
		slog.Float64("mean_fitness", s.MeanFitness),
		slog.Any("patch_counts", []int(s.PatchCounts)),
	)
}
