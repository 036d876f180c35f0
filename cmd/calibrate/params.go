// Package main searches patch probabilities for a target survival probability.
package main

import (
	"fmt"
	"math"

	"github.com/pthm-cable/forage/config"
)

// Tunable patch fields.
const (
	FieldProbPred = "prob_pred"
	FieldProbFood = "prob_food"
)

// ParamSpec defines a single tunable probability.
type ParamSpec struct {
	Name    string // e.g. "rich.prob_food"
	Patch   int
	Field   string
	Min     float64
	Max     float64
	Default float64
}

// ParamVector holds the set of tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates one parameter per patch per field, defaulting to
// the values in cfg. Patches whose index is in fixed are left out.
func NewParamVector(cfg *config.Config, fields []string, fixed map[int]bool) (*ParamVector, error) {
	reg := cfg.Derived.Registry
	pv := &ParamVector{}
	for i := 0; i < reg.Len(); i++ {
		if fixed[i] {
			continue
		}
		p := reg.At(i)
		for _, f := range fields {
			var def float64
			switch f {
			case FieldProbPred:
				def = p.PredationProb
			case FieldProbFood:
				def = p.FoodProb
			default:
				return nil, fmt.Errorf("unknown field %q", f)
			}
			pv.Specs = append(pv.Specs, ParamSpec{
				Name:    fmt.Sprintf("%s.%s", p.Name, f),
				Patch:   i,
				Field:   f,
				Min:     0,
				Max:     1,
				Default: def,
			})
		}
	}
	if len(pv.Specs) == 0 {
		return nil, fmt.Errorf("no parameters to tune")
	}
	return pv, nil
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Defaults returns the base config's values in spec order.
func (pv *ParamVector) Defaults() []float64 {
	out := make([]float64, len(pv.Specs))
	for i := range pv.Specs {
		out[i] = pv.Specs[i].Default
	}
	return out
}

// Clamp returns v with every value limited to its spec's range. The search
// runs unconstrained, so every point it proposes passes through here.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Max(pv.Specs[i].Min, math.Min(pv.Specs[i].Max, x))
	}
	return out
}

// Distance is the RMS distance between two points in units of each spec's range.
func (pv *ParamVector) Distance(a, b []float64) float64 {
	var sum float64
	for i, spec := range pv.Specs {
		d := (a[i] - b[i]) / (spec.Max - spec.Min)
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pv.Specs)))
}

// ApplyToConfig writes clamped values into cfg's patch lists and re-validates it.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	for i, v := range pv.Clamp(values) {
		spec := pv.Specs[i]
		switch spec.Field {
		case FieldProbPred:
			cfg.Patches.ProbPred[spec.Patch] = v
		case FieldProbFood:
			cfg.Patches.ProbFood[spec.Patch] = v
		}
	}
	return cfg.Validate()
}
