// Package induction computes the optimal patch for every (time, reserve)
// pair by backward induction over a finite horizon.
package induction

import (
	"fmt"

	"github.com/pthm-cable/forage/patch"
)

// Dead is the index returned by Clamp when the reserve falls below the
// critical level. F[Dead] is always 0.
const Dead = 0

// Clamp maps a post-transition reserve to a fitness array index.
// Below xCrit the organism is dead; above xMax the excess is lost.
// xCrit itself passes through unchanged and carries zero fitness.
func Clamp(x, xCrit, xMax int) int {
	if xCrit >= xMax {
		panic(fmt.Sprintf("induction: Clamp called with x_crit %d >= x_max %d", xCrit, xMax))
	}
	switch {
	case x < xCrit:
		return Dead
	case x > xMax:
		return xMax
	default:
		return x
	}
}

// Value is the probability of surviving to the horizon when an organism
// with reserve x spends this timestep in patch p, given next-step fitness f1:
//
//	(1-B) * (L*F1[clamp(x-A+Y)] + (1-L)*F1[clamp(x-A)])
func Value(x int, p patch.Patch, b patch.Bounds, f1 []float64) float64 {
	fed := Clamp(x-p.Cost+p.StateIncrement, b.XCrit, b.XMax)
	unfed := Clamp(x-p.Cost, b.XCrit, b.XMax)
	return (1 - p.PredationProb) * (p.FoodProb*f1[fed] + (1-p.FoodProb)*f1[unfed])
}
