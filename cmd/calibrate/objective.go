package main

import (
	"fmt"
	"sync"

	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/induction"
)

// penaltyFailed is returned for parameter vectors the model rejects.
const penaltyFailed = 1e9

// Objective scores a parameter vector by how far the optimal survival
// probability at (t=0, state) lies from the target (lower = better).
// A small pull towards the defaults picks the nearest of many equal solutions.
type Objective struct {
	params     *ParamVector
	baseConfig *config.Config
	state      int
	target     float64
	anchor     float64

	mu           sync.Mutex
	lastSurvival float64
}

// NewObjective creates an objective over baseCfg's model.
func NewObjective(params *ParamVector, baseCfg *config.Config, state int, target, anchor float64) (*Objective, error) {
	b := baseCfg.Derived.Bounds
	if !b.Alive(state) || state > b.XMax {
		return nil, fmt.Errorf("state %d outside (%d, %d]", state, b.XCrit, b.XMax)
	}
	if target < 0 || target > 1 {
		return nil, fmt.Errorf("target %v outside [0,1]", target)
	}
	return &Objective{
		params:     params,
		baseConfig: baseCfg,
		state:      state,
		target:     target,
		anchor:     anchor,
	}, nil
}

// LastSurvival returns the survival probability from the most recent evaluation.
func (o *Objective) LastSurvival() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSurvival
}

// Survival runs backward induction with raw parameter values applied and
// returns F(state, 0).
func (o *Objective) Survival(raw []float64) (float64, error) {
	cfg, err := o.baseConfig.Clone()
	if err != nil {
		return 0, err
	}
	if err := o.params.ApplyToConfig(cfg, raw); err != nil {
		return 0, err
	}

	e, err := induction.NewEngine(cfg.Derived.Registry, cfg.Derived.Bounds, induction.WithWorkers(1))
	if err != nil {
		return 0, err
	}
	tb, err := e.Run()
	if err != nil {
		return 0, err
	}
	rec, err := tb.Get(0, o.state)
	if err != nil {
		return 0, err
	}
	return rec.FitnessNow, nil
}

// Evaluate computes the objective for raw parameter values.
func (o *Objective) Evaluate(raw []float64) float64 {
	survival, err := o.Survival(raw)
	if err != nil {
		return penaltyFailed
	}

	o.mu.Lock()
	o.lastSurvival = survival
	o.mu.Unlock()

	miss := survival - o.target
	dist := o.params.Distance(o.params.Clamp(raw), o.params.Defaults())
	return miss*miss + o.anchor*dist
}
