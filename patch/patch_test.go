package patch

import (
	"errors"
	"math"
	"testing"
)

func TestFromLists(t *testing.T) {
	reg, err := FromLists([]int{1, 1, 1}, []float64{0, 0.004, 0.02}, []float64{0, 0.4, 0.6}, []int{0, 3, 5})
	if err != nil {
		t.Fatalf("FromLists failed: %v", err)
	}
	if reg.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", reg.Len())
	}
	p := reg.At(2)
	if p.Cost != 1 || p.PredationProb != 0.02 || p.FoodProb != 0.6 || p.StateIncrement != 5 {
		t.Errorf("At(2) = %+v", p)
	}
	if p.Name != "patch2" {
		t.Errorf("default name = %q, want patch2", p.Name)
	}
}

func TestFromListsErrors(t *testing.T) {
	tests := []struct {
		name      string
		cost      []int
		pred      []float64
		food      []float64
		increment []int
		want      error
	}{
		{"empty", nil, nil, nil, nil, ErrEmptyRegistry},
		{"length mismatch", []int{1, 1}, []float64{0}, []float64{0, 0}, []int{0, 0}, ErrLengthMismatch},
		{"negative cost", []int{-1}, []float64{0}, []float64{0}, []int{0}, ErrInvalidPatch},
		{"negative increment", []int{1}, []float64{0}, []float64{0}, []int{-2}, ErrInvalidPatch},
		{"pred above one", []int{1}, []float64{1.5}, []float64{0}, []int{0}, ErrInvalidPatch},
		{"food below zero", []int{1}, []float64{0}, []float64{-0.1}, []int{0}, ErrInvalidPatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLists(tt.cost, tt.pred, tt.food, tt.increment)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistryPatchesIsCopy(t *testing.T) {
	reg, err := NewRegistry([]Patch{{Name: "safe", Cost: 1}})
	if err != nil {
		t.Fatal(err)
	}
	ps := reg.Patches()
	ps[0].Cost = 99
	if reg.At(0).Cost != 1 {
		t.Error("mutating Patches() result changed the registry")
	}
}

func TestExpectedGain(t *testing.T) {
	tests := []struct {
		p    Patch
		want float64
	}{
		{Patch{Cost: 1, FoodProb: 0, StateIncrement: 0}, -1},
		{Patch{Cost: 1, FoodProb: 0.4, StateIncrement: 3}, 0.2},
		{Patch{Cost: 1, FoodProb: 0.6, StateIncrement: 5}, 2},
	}
	for _, tt := range tests {
		if got := tt.p.ExpectedGain(); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("ExpectedGain(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestBoundsValidate(t *testing.T) {
	tests := []struct {
		name string
		b    Bounds
		ok   bool
	}{
		{"reference", Bounds{NTimesteps: 20, XCrit: 3, XMax: 10}, true},
		{"zero crit", Bounds{NTimesteps: 1, XCrit: 0, XMax: 1}, true},
		{"no timesteps", Bounds{NTimesteps: 0, XCrit: 3, XMax: 10}, false},
		{"negative crit", Bounds{NTimesteps: 5, XCrit: -1, XMax: 10}, false},
		{"crit equals max", Bounds{NTimesteps: 5, XCrit: 10, XMax: 10}, false},
		{"crit above max", Bounds{NTimesteps: 5, XCrit: 11, XMax: 10}, false},
		{"record count overflows", Bounds{NTimesteps: math.MaxInt / 2, XCrit: 0, XMax: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidBounds) {
				t.Errorf("err = %v, want ErrInvalidBounds", err)
			}
		})
	}
}

func TestBoundsCounts(t *testing.T) {
	b := Bounds{NTimesteps: 20, XCrit: 3, XMax: 10}
	if b.NumStates() != 7 {
		t.Errorf("NumStates() = %d, want 7", b.NumStates())
	}
	if b.NumRecords() != 140 {
		t.Errorf("NumRecords() = %d, want 140", b.NumRecords())
	}
	if b.Contains(0, 3) || !b.Contains(0, 4) || b.Contains(20, 4) || b.Contains(-1, 5) || b.Contains(5, 11) {
		t.Error("Contains() gave wrong membership")
	}
}
