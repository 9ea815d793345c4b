// Package timestep implements control ticks of the controller-plant
// interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of tick that a TimeStep can be: the first
// tick of a run, a middle tick, or the last tick
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single control tick of a plant. The
// Observation holds the full conditioning context measured on the
// plant at the tick: joint positions, joint velocities, end-effector
// position and end-effector velocity. Cost is the stage cost incurred
// by the transition into this tick.
type TimeStep struct {
	StepType
	Cost        float64
	Observation mat.Vector
	Number      int
}

// New returns a new TimeStep with the given fields
func New(t StepType, cost float64, obs mat.Vector, number int) TimeStep {
	return TimeStep{t, cost, obs, number}
}

// First returns whether a TimeStep is the first of a run
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle tick of a run
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last tick of a run
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Cost:  %.4f  |  Tick:  %v"

	return fmt.Sprintf(str, t.StepType, t.Cost, t.Number)
}
