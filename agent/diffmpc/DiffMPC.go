// Package diffmpc implements the receding-horizon diffusion
// controller. At every control tick the controller normalizes the
// current observation, samples a control trajectory from the diffusion
// model conditioned on it, forward-simulates the trajectory on a
// scratch copy of the plant to price it, and applies only the first
// control.
package diffmpc

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"diffmpc/dataset"
	"diffmpc/diffusion"
	"diffmpc/environment"
	"diffmpc/timestep"
	"diffmpc/utils/matutils"
)

// Controller is the receding-horizon diffusion controller. It
// satisfies the agent.Planner interface.
type Controller struct {
	sim        environment.Simulator
	sampler    *diffusion.Sampler
	normalizer *dataset.Normalizer
	horizon    int
	actionDims int
	weights    Weights

	// Buffers reused across ticks
	condition   []float64
	plan        []float64
	rolloutPos  [][]float64
	firstAction *mat.VecDense

	// Actuator bounds the applied control is clipped to
	minTorque float64
	maxTorque float64

	lastPlanCost   float64
	lastSampleTime time.Duration
}

// New returns a new Controller planning over the argument plant. The
// plant is only read and copied, never stepped.
func New(sim environment.Simulator, sampler *diffusion.Sampler,
	normalizer *dataset.Normalizer, horizon, actionDims int,
	weights Weights) (*Controller, error) {
	if horizon <= 0 || actionDims <= 0 {
		return nil, fmt.Errorf("new: horizon and actionDims must be "+
			"positive \n\thave(%v, %v)", horizon, actionDims)
	}

	obsDims := sim.ObservationSpec().Shape.Len()

	rolloutPos := make([][]float64, horizon+1)
	for i := range rolloutPos {
		rolloutPos[i] = make([]float64, len(sim.EEPos()))
	}

	return &Controller{
		sim:         sim,
		sampler:     sampler,
		normalizer:  normalizer,
		horizon:     horizon,
		actionDims:  actionDims,
		weights:     weights,
		condition:   make([]float64, obsDims),
		plan:        make([]float64, horizon*actionDims),
		rolloutPos:  rolloutPos,
		firstAction: mat.NewVecDense(actionDims, nil),
		minTorque:   sim.ActionSpec().LowerBound.AtVec(0),
		maxTorque:   sim.ActionSpec().UpperBound.AtVec(0),
	}, nil
}

// SelectAction samples a fresh control trajectory conditioned on the
// observation of t and returns its first control
func (c *Controller) SelectAction(t timestep.TimeStep) (*mat.VecDense,
	error) {
	if t.Observation.Len() != len(c.condition) {
		return nil, fmt.Errorf("selectaction: invalid observation "+
			"length \n\twant(%v) \n\thave(%v)", len(c.condition),
			t.Observation.Len())
	}

	for i := range c.condition {
		c.condition[i] = t.Observation.AtVec(i)
	}
	if err := c.normalizer.NormalizeCondition(c.condition); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	start := time.Now()
	chain, err := c.sampler.Sample(c.condition)
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	c.lastSampleTime = time.Since(start)

	// Only the last iterate of the chain is executed
	copy(c.plan, chain[len(chain)-1])
	if err := c.normalizer.UnnormalizeControls(c.plan); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	cost, err := c.priceRollout()
	if err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	c.lastPlanCost = cost

	// The cost above prices the raw plan; only the applied control is
	// clipped to the actuator bounds
	for i := 0; i < c.actionDims; i++ {
		c.firstAction.SetVec(i, c.plan[i])
	}
	matutils.VecClip(c.firstAction, c.minTorque, c.maxTorque)
	return c.firstAction, nil
}

// priceRollout forward-simulates the current plan from the live plant
// state on a scratch copy and evaluates the quadratic cost over the
// predicted end-effector path
func (c *Controller) priceRollout() (float64, error) {
	scratch := c.sim.Copy()

	qpos, qvel := c.sim.State()
	if err := scratch.SetState(qpos, qvel); err != nil {
		return 0, fmt.Errorf("pricerollout: %v", err)
	}

	copy(c.rolloutPos[0], scratch.EEPos())

	action := mat.NewVecDense(c.actionDims, nil)
	for k := 0; k < c.horizon; k++ {
		for i := 0; i < c.actionDims; i++ {
			action.SetVec(i, c.plan[k*c.actionDims+i])
		}
		scratch.Step(action)
		copy(c.rolloutPos[k+1], scratch.EEPos())
	}

	target := c.sim.Target()
	targetSlice := make([]float64, target.Len())
	for i := range targetSlice {
		targetSlice[i] = target.AtVec(i)
	}

	return TrajectoryCost(c.rolloutPos, c.plan, c.actionDims,
		targetSlice, c.weights)
}

// Plan returns the flattened control trajectory computed by the last
// call to SelectAction
func (c *Controller) Plan() []float64 {
	return c.plan
}

// PlanCost returns the quadratic cost of the last computed plan
func (c *Controller) PlanCost() float64 {
	return c.lastPlanCost
}

// SampleTime returns the wall time the diffusion sampler took on the
// last call to SelectAction
func (c *Controller) SampleTime() time.Duration {
	return c.lastSampleTime
}

// PredictedPath returns the end-effector positions of the last priced
// rollout, one entry per horizon step plus the starting state
func (c *Controller) PredictedPath() [][]float64 {
	return c.rolloutPos
}

// Close releases the resources of the controller
func (c *Controller) Close() error {
	return nil
}
