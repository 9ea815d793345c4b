// Package environment outlines the interfaces and structs needed to
// implement concrete simulated plants
package environment

import (
	"gonum.org/v1/gonum/mat"

	"diffmpc/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for plants
type Starter interface {
	Start() mat.Vector
}

// Task implements the cost scheme and goal of controlling some plant.
// Cost computes the stage cost of landing in nextState after taking
// action in state. AtGoal returns whether the end-effector position
// held in the argument matrix is close enough to the target.
type Task interface {
	Starter
	Cost(state, action, nextState mat.Vector) float64
	AtGoal(eePos mat.Matrix) bool
	Target() mat.Vector

	// End checks whether a TimeStep ends the run, adjusting its
	// StepType if so
	End(*timestep.TimeStep) bool
}

// Environment implements a simulated plant together with a Task to
// complete on it
type Environment interface {
	Task
	Reset() timestep.TimeStep
	Step(action mat.Vector) (timestep.TimeStep, bool)
	ObservationSpec() Spec
	ActionSpec() Spec
	CurrentTimeStep() timestep.TimeStep
}

// Simulator is an Environment whose full physical state can be read,
// written, and duplicated. The receding-horizon controller forward-
// simulates candidate control trajectories on a Copy of the live
// plant, so a Copy must never alias the state of its source.
type Simulator interface {
	Environment

	// State returns the current joint positions and velocities
	State() (qpos, qvel []float64)

	// SetState overwrites the joint positions and velocities
	SetState(qpos, qvel []float64) error

	// EEPos returns the current end-effector position
	EEPos() []float64

	// Copy returns an independent simulator with identical physical
	// parameters and state
	Copy() Simulator

	// Dt returns the wall-clock duration of one control tick
	Dt() float64
}
