package patch

import (
	"fmt"
	"math"
)

// Bounds describes the discretized state space: energy reserve in
// [XCrit, XMax] and time in [0, NTimesteps).
type Bounds struct {
	NTimesteps int `yaml:"n_timesteps"`
	XCrit      int `yaml:"x_crit"` // At or below this reserve the organism is dead
	XMax       int `yaml:"x_max"`  // Reserve ceiling
}

// Validate checks the bounds. XCrit must be non-negative since fitness
// arrays are indexed from 0 and index 0 doubles as the dead sentinel.
func (b Bounds) Validate() error {
	if b.NTimesteps <= 0 {
		return fmt.Errorf("%w: n_timesteps %d must be > 0", ErrInvalidBounds, b.NTimesteps)
	}
	if b.XCrit < 0 {
		return fmt.Errorf("%w: x_crit %d must be >= 0", ErrInvalidBounds, b.XCrit)
	}
	if b.XCrit >= b.XMax {
		return fmt.Errorf("%w: x_crit %d must be < x_max %d", ErrInvalidBounds, b.XCrit, b.XMax)
	}
	if b.NTimesteps > math.MaxInt/b.NumStates() {
		return fmt.Errorf("%w: %d timesteps x %d states overflows", ErrInvalidBounds, b.NTimesteps, b.NumStates())
	}
	return nil
}

// NumStates returns the number of living states, XMax-XCrit.
func (b Bounds) NumStates() int {
	return b.XMax - b.XCrit
}

// NumRecords returns the decision table size, NTimesteps*(XMax-XCrit).
func (b Bounds) NumRecords() int {
	return b.NTimesteps * b.NumStates()
}

// Alive reports whether reserve x is above the critical level.
func (b Bounds) Alive(x int) bool {
	return x > b.XCrit
}

// Contains reports whether (t, x) is a living cell of the state space.
func (b Bounds) Contains(t, x int) bool {
	return t >= 0 && t < b.NTimesteps && x > b.XCrit && x <= b.XMax
}
