// Package envconfig provides configuration structs for constructing
// plants with default physical parameters and tasks. Plant
// configurations in this package are JSON serializable so that a
// control run can be reproduced from its recorded configuration.
package envconfig

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "diffmpc/environment"
	"diffmpc/environment/arm"
	"diffmpc/environment/box2darm"
	ts "diffmpc/timestep"
)

// EnvName stores the name of plants that can be configured with this
// package
type EnvName string

// Plants available for configuration
const (
	// Arm is the closed-form two-link arm integrated with RK4
	Arm EnvName = "Arm"

	// Box2DArm is the two-link arm simulated by the Box2D engine
	Box2DArm EnvName = "Box2DArm"
)

// TaskName stores the tasks that can be configured with this package
type TaskName string

// Tasks available for configuration
const (
	// Reach drives the end effector to a fixed target position
	Reach TaskName = "Reach"

	// ReachRandom drives the end effector to a target position drawn
	// uniformly from the reachable annulus at each reset
	ReachRandom TaskName = "ReachRandom"
)

// Config implements a specific configuration of a specific plant and
// task
type Config struct {
	Environment   EnvName
	Task          TaskName
	ControlRate   int     // Physics frames per control tick
	EpisodeCutoff int     // Control ticks before a run ends
	GoalRadius    float64 // Metres
	CtrlWeight    float64 // Weight on the control penalty of the task cost
	TargetX       float64 // Ignored for ReachRandom
	TargetY       float64 // Ignored for ReachRandom
}

// NewConfig returns a new plant Config
func NewConfig(envName EnvName, taskName TaskName, controlRate,
	episodeCutoff int, goalRadius, ctrlWeight, targetX,
	targetY float64) Config {
	return Config{
		Environment:   envName,
		Task:          taskName,
		ControlRate:   controlRate,
		EpisodeCutoff: episodeCutoff,
		GoalRadius:    goalRadius,
		CtrlWeight:    ctrlWeight,
		TargetX:       targetX,
		TargetY:       targetY,
	}
}

// Default returns the configuration used throughout this module: the
// closed-form arm reaching a fixed target at 10 physics frames per
// control tick.
func Default() Config {
	return NewConfig(Arm, Reach, 10, 500, 0.05, 0.001, 1.0, 1.0)
}

// Create returns the plant described by the Config as well as the
// first timestep of the plant
func (c Config) Create(seed uint64) (env.Simulator, ts.TimeStep, error) {
	task, err := c.createTask(seed)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	switch c.Environment {
	case Arm:
		return arm.New(task, c.ControlRate)

	case Box2DArm:
		return box2darm.New(task, c.ControlRate)
	}

	return nil, ts.TimeStep{}, fmt.Errorf("create: cannot create "+
		"environment %v, no such environment", c.Environment)
}

// createTask constructs the task described by the Config along with
// its starting state distribution
func (c Config) createTask(seed uint64) (env.Task, error) {
	shoulder := r1.Interval{Min: -0.1, Max: 0.1}
	elbow := r1.Interval{Min: -0.1, Max: 0.1}
	velocity := r1.Interval{Min: 0.0, Max: 0.0}

	starter := env.NewUniformStarter([]r1.Interval{shoulder, elbow,
		velocity, velocity}, seed)

	switch c.Task {
	case Reach:
		target := mat.NewVecDense(2, []float64{c.TargetX, c.TargetY})
		return arm.NewReach(starter, target, c.EpisodeCutoff,
			c.GoalRadius, c.CtrlWeight), nil

	case ReachRandom:
		return arm.NewReachRandomTarget(starter, seed, c.EpisodeCutoff,
			c.GoalRadius, c.CtrlWeight), nil
	}

	return nil, fmt.Errorf("createTask: no such task %v", c.Task)
}
