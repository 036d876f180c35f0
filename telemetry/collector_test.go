package telemetry

import (
	"math"
	"testing"
)

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(3)

	c.RecordChoice(4, 2, 0.5)
	c.RecordChoice(6, 0, 0.9)
	c.RecordChoice(8, 0, 1.0)
	c.RecordChoice(5, 1, 0.7)
	c.RecordFed()
	c.RecordDeath(CausePredation)
	c.RecordDeath(CauseStarvation)
	c.RecordDeath(CauseStarvation)

	s := c.Flush(7)

	if s.T != 7 {
		t.Errorf("T = %d, want 7", s.T)
	}
	if s.AliveAtStart != 4 || s.AliveAtEnd != 1 {
		t.Errorf("alive start/end = %d/%d, want 4/1", s.AliveAtStart, s.AliveAtEnd)
	}
	if s.PredationDeaths != 1 || s.StarvationDeaths != 2 || s.Deaths() != 3 {
		t.Errorf("deaths = %d predation, %d starvation", s.PredationDeaths, s.StarvationDeaths)
	}
	if s.Fed != 1 {
		t.Errorf("Fed = %d, want 1", s.Fed)
	}
	if math.Abs(s.StateMean-5.75) > 1e-12 {
		t.Errorf("StateMean = %v, want 5.75", s.StateMean)
	}
	if math.Abs(s.MeanFitness-0.775) > 1e-12 {
		t.Errorf("MeanFitness = %v, want 0.775", s.MeanFitness)
	}
	want := []int{2, 1, 1}
	for i, n := range want {
		if s.PatchCounts[i] != n {
			t.Errorf("PatchCounts[%d] = %d, want %d", i, s.PatchCounts[i], n)
		}
	}
}

func TestCollectorResetsAfterFlush(t *testing.T) {
	c := NewCollector(2)
	c.RecordChoice(5, 1, 0.5)
	c.RecordDeath(CausePredation)
	first := c.Flush(0)

	second := c.Flush(1)
	if second.AliveAtStart != 0 || second.Deaths() != 0 || second.PatchCounts[1] != 0 {
		t.Errorf("counters not reset: %+v", second)
	}
	// Earlier stats must not share the reset buffer
	if first.PatchCounts[1] != 1 {
		t.Errorf("flushed PatchCounts changed to %v", first.PatchCounts)
	}
}
