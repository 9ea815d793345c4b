// Package agent defines controllers that choose plant inputs from
// observations
package agent

import (
	"gonum.org/v1/gonum/mat"

	"diffmpc/timestep"
)

// Controller selects the control input to apply at a timestep.
// Controllers that plan over a horizon recompute the full plan on
// every call and return only its first input.
type Controller interface {
	SelectAction(t timestep.TimeStep) (*mat.VecDense, error)
	Close() error
}

// Planner is a Controller that exposes the full control trajectory
// behind its last selected action
type Planner interface {
	Controller

	// Plan returns the flattened control trajectory computed by the
	// last call to SelectAction
	Plan() []float64
}
