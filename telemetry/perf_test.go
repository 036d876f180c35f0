package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartStep()
		pc.StartPhase(PhaseOptimize)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseRecord)
		time.Sleep(200 * time.Microsecond)
		pc.EndStep()
	}

	stats := pc.Stats()

	if stats.AvgStepDuration <= 0 {
		t.Error("expected positive average step duration")
	}
	if stats.Steps != 5 {
		t.Errorf("Steps = %d, want 5", stats.Steps)
	}
	if _, ok := stats.PhaseAvg[PhaseOptimize]; !ok {
		t.Error("expected optimize phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseRecord]; !ok {
		t.Error("expected record phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartStep()
		pc.StartPhase(PhaseDecide)
		time.Sleep(10 * time.Microsecond)
		pc.EndStep()
	}

	stats := pc.Stats()

	if stats.AvgStepDuration <= 0 {
		t.Error("expected positive average step duration after window filled")
	}
	if stats.StepsPerSecond <= 0 {
		t.Error("expected positive steps per second")
	}
	if stats.Steps != 10 {
		t.Errorf("Steps = %d, want 10", stats.Steps)
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartStep()
		pc.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase("slow")
		time.Sleep(100 * time.Microsecond)
		pc.EndStep()
	}

	stats := pc.Stats()

	if stats.PhasePct["slow"] <= stats.PhasePct["fast"] {
		t.Errorf("expected slow phase (%v%%) > fast phase (%v%%)", stats.PhasePct["slow"], stats.PhasePct["fast"])
	}
}

func TestPerfCollector_EmptyAndNil(t *testing.T) {
	for name, pc := range map[string]*PerfCollector{"empty": NewPerfCollector(10), "nil": nil} {
		t.Run(name, func(t *testing.T) {
			pc.StartStep()
			pc.StartPhase(PhaseStats)
			stats := pc.Stats()
			if stats.AvgStepDuration != 0 {
				t.Error("expected zero avg step duration")
			}
			if stats.PhaseAvg == nil || stats.PhasePct == nil {
				t.Error("expected non-nil phase maps")
			}
		})
	}
}
