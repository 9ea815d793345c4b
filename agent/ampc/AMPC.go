// Package ampc implements the one-shot approximate controller. A
// small feed-forward network trained to imitate the diffusion planner
// maps an observation directly to a control trajectory, replacing the
// iterative sampling loop with a single forward pass.
package ampc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"diffmpc/dataset"
	"diffmpc/network"
	"diffmpc/timestep"
	"diffmpc/utils/matutils"
)

// Controller selects actions with a single forward pass of an
// imitation network. It satisfies the agent.Planner interface.
type Controller struct {
	net        network.NeuralNet
	normalizer *dataset.Normalizer
	horizon    int
	actionDims int

	condition   []float64
	plan        []float64
	firstAction *mat.VecDense
	vm          G.VM

	// Actuator bounds the applied control is clipped to
	minAction float64
	maxAction float64
}

// New returns a new Controller around net. The network must have
// batch size 1 and predict horizon*actionDims values. The returned
// first control is clipped to [minAction, maxAction]; the plan itself
// is left raw.
func New(net network.NeuralNet, normalizer *dataset.Normalizer,
	horizon, actionDims int, minAction, maxAction float64) (*Controller,
	error) {
	if net.BatchSize() != 1 {
		return nil, fmt.Errorf("new: network must have batch size 1 "+
			"\n\thave(%v)", net.BatchSize())
	}
	if net.Outputs() != horizon*actionDims {
		return nil, fmt.Errorf("new: invalid number of network outputs "+
			"\n\twant(%v) \n\thave(%v)", horizon*actionDims,
			net.Outputs())
	}

	return &Controller{
		net:         net,
		normalizer:  normalizer,
		horizon:     horizon,
		actionDims:  actionDims,
		condition:   make([]float64, net.Features()),
		plan:        make([]float64, horizon*actionDims),
		firstAction: mat.NewVecDense(actionDims, nil),
		vm:          G.NewTapeMachine(net.Graph()),
		minAction:   minAction,
		maxAction:   maxAction,
	}, nil
}

// SelectAction predicts a control trajectory for the observation of t
// and returns its first control
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

	if err := c.net.SetInput(c.condition); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}
	if err := c.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("selectaction: could not run forward "+
			"pass: %v", err)
	}
	defer c.vm.Reset()

	copy(c.plan, c.net.Output().Data().([]float64))
	if err := c.normalizer.UnnormalizeControls(c.plan); err != nil {
		return nil, fmt.Errorf("selectaction: %v", err)
	}

	// The plan stays raw; only the applied control is clipped to the
	// actuator bounds
	for i := 0; i < c.actionDims; i++ {
		c.firstAction.SetVec(i, c.plan[i])
	}
	matutils.VecClip(c.firstAction, c.minAction, c.maxAction)
	return c.firstAction, nil
}

// Plan returns the flattened control trajectory computed by the last
// call to SelectAction
func (c *Controller) Plan() []float64 {
	return c.plan
}

// Close releases the virtual machine of the controller
func (c *Controller) Close() error {
	return c.vm.Close()
}
