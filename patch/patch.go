// Package patch defines foraging patches and the state bounds of the model.
package patch

import (
	"errors"
	"fmt"
)

// Validation errors returned when building registries and bounds.
var (
	ErrEmptyRegistry  = errors.New("patch: registry is empty")
	ErrLengthMismatch = errors.New("patch: parameter lists differ in length")
	ErrInvalidPatch   = errors.New("patch: invalid patch parameters")
	ErrInvalidBounds  = errors.New("patch: invalid state bounds")
)

// Patch is one foraging option available every timestep.
type Patch struct {
	Name           string  `yaml:"name,omitempty"`
	Cost           int     `yaml:"cost"`            // Energy spent per timestep (A)
	PredationProb  float64 `yaml:"prob_pred"`       // Probability of being killed (B)
	FoodProb       float64 `yaml:"prob_food"`       // Probability of finding food (L)
	StateIncrement int     `yaml:"state_increment"` // Energy gained when food is found (Y)
}

// Validate checks that probabilities lie in [0,1] and costs and gains are non-negative.
func (p Patch) Validate() error {
	if p.Cost < 0 {
		return fmt.Errorf("%w: cost %d < 0", ErrInvalidPatch, p.Cost)
	}
	if p.StateIncrement < 0 {
		return fmt.Errorf("%w: state_increment %d < 0", ErrInvalidPatch, p.StateIncrement)
	}
	if p.PredationProb < 0 || p.PredationProb > 1 {
		return fmt.Errorf("%w: prob_pred %v outside [0,1]", ErrInvalidPatch, p.PredationProb)
	}
	if p.FoodProb < 0 || p.FoodProb > 1 {
		return fmt.Errorf("%w: prob_food %v outside [0,1]", ErrInvalidPatch, p.FoodProb)
	}
	return nil
}

// ExpectedGain is the mean change in reserve per timestep spent in the patch,
// ignoring predation and the state ceiling.
func (p Patch) ExpectedGain() float64 {
	return p.FoodProb*float64(p.StateIncrement) - float64(p.Cost)
}

// Registry is an ordered, immutable list of patches.
// Patch indices are 0-based and stable for the lifetime of the registry.
type Registry struct {
	patches []Patch
}

// NewRegistry validates and copies the given patches.
func NewRegistry(patches []Patch) (*Registry, error) {
	if len(patches) == 0 {
		return nil, ErrEmptyRegistry
	}
	ps := make([]Patch, len(patches))
	for i, p := range patches {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		if p.Name == "" {
			p.Name = fmt.Sprintf("patch%d", i)
		}
		ps[i] = p
	}
	return &Registry{patches: ps}, nil
}

// FromLists builds a registry from the four parallel parameter lists used by
// the model configuration. All lists must have the same non-zero length.
func FromLists(cost []int, predProb, foodProb []float64, increment []int) (*Registry, error) {
	n := len(cost)
	if len(predProb) != n || len(foodProb) != n || len(increment) != n {
		return nil, fmt.Errorf("%w: cost=%d prob_pred=%d prob_food=%d state_increment=%d",
			ErrLengthMismatch, len(cost), len(predProb), len(foodProb), len(increment))
	}
	patches := make([]Patch, n)
	for i := range patches {
		patches[i] = Patch{
			Cost:           cost[i],
			PredationProb:  predProb[i],
			FoodProb:       foodProb[i],
			StateIncrement: increment[i],
		}
	}
	return NewRegistry(patches)
}

// Len returns the number of patches.
func (r *Registry) Len() int {
	return len(r.patches)
}

// At returns the patch at index i.
func (r *Registry) At(i int) Patch {
	return r.patches[i]
}

// Patches returns a copy of the patch list.
func (r *Registry) Patches() []Patch {
	out := make([]Patch, len(r.patches))
	copy(out, r.patches)
	return out
}
