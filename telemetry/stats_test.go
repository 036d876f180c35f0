package telemetry

import (
	"math"
	"testing"
)

func TestComputeStateStats(t *testing.T) {
	values := []float64{9, 2, 4, 4, 5, 4, 7, 5}
	mean, std, p10, p50, p90 := ComputeStateStats(values)

	if math.Abs(mean-5) > 1e-12 {
		t.Errorf("mean = %v, want 5", mean)
	}
	// Sample standard deviation: sqrt(32/7)
	if math.Abs(std-math.Sqrt(32.0/7.0)) > 1e-9 {
		t.Errorf("std = %v, want %v", std, math.Sqrt(32.0/7.0))
	}
	if p50 != 4 {
		t.Errorf("p50 = %v, want 4", p50)
	}
	if !(p10 <= p50 && p50 <= p90) {
		t.Errorf("percentiles out of order: %v %v %v", p10, p50, p90)
	}
	if p10 < 2 || p90 > 9 {
		t.Errorf("percentiles outside data range: p10=%v p90=%v", p10, p90)
	}

	// Input must not be reordered
	if values[0] != 9 {
		t.Error("ComputeStateStats sorted its input")
	}
}

func TestComputeStateStatsSmall(t *testing.T) {
	mean, std, p10, p50, p90 := ComputeStateStats(nil)
	if mean != 0 || std != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}

	mean, std, p10, p50, p90 = ComputeStateStats([]float64{6})
	if mean != 6 || std != 0 || p10 != 6 || p50 != 6 || p90 != 6 {
		t.Errorf("single value stats = %v %v %v %v %v", mean, std, p10, p50, p90)
	}
}

func TestCountsCSV(t *testing.T) {
	tests := []struct {
		name string
		in   Counts
		want string
	}{
		{"empty", Counts{}, ""},
		{"single", Counts{4}, "4"},
		{"three", Counts{12, 0, 38}, "12;0;38"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.MarshalCSV()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("MarshalCSV = %q, want %q", got, tt.want)
			}
			var back Counts
			if err := back.UnmarshalCSV(got); err != nil {
				t.Fatal(err)
			}
			if len(back) != len(tt.in) {
				t.Fatalf("UnmarshalCSV len = %d, want %d", len(back), len(tt.in))
			}
			for i := range back {
				if back[i] != tt.in[i] {
					t.Errorf("count %d = %d, want %d", i, back[i], tt.in[i])
				}
			}
		})
	}

	var c Counts
	if err := c.UnmarshalCSV("1;x"); err == nil {
		t.Error("expected error for non-numeric count")
	}
}
