package trainer

import (
	"fmt"

	"diffmpc/network"
)

// EMA maintains an exponential moving average of the weights of a
// training network. Early in training the shadow weights track the
// training weights exactly; after startStep optimizer steps the shadow
// is updated every updateEvery steps with
//
//	shadow = decay*shadow + (1-decay)*weights
type EMA struct {
	shadow      network.NeuralNet
	decay       float64
	startStep   int
	updateEvery int
	steps       int
}

// NewEMA returns a new EMA shadowing net. The shadow is an independent
// clone, so later optimizer steps on net never touch it directly.
func NewEMA(net network.NeuralNet, decay float64, startStep,
	updateEvery int) (*EMA, error) {
	if decay <= 0 || decay >= 1 {
		return nil, fmt.Errorf("newema: decay must be in (0, 1) "+
			"\n\thave(%v)", decay)
	}
	if updateEvery <= 0 {
		return nil, fmt.Errorf("newema: updateEvery must be positive "+
			"\n\thave(%v)", updateEvery)
	}

	shadow, err := net.Clone()
	if err != nil {
		return nil, fmt.Errorf("newema: could not clone network: %v", err)
	}

	return &EMA{
		shadow:      shadow,
		decay:       decay,
		startStep:   startStep,
		updateEvery: updateEvery,
	}, nil
}

// Update records one optimizer step on net and updates the shadow
// weights accordingly
func (e *EMA) Update(net network.NeuralNet) error {
	e.steps++

	if e.steps < e.startStep {
		// Track the training weights exactly until averaging begins
		return e.shadow.Set(net)
	}

	if e.steps%e.updateEvery != 0 {
		return nil
	}
	return e.shadow.Polyak(net, 1-e.decay)
}

// Network returns the shadow network
func (e *EMA) Network() network.NeuralNet {
	return e.shadow
}

// Steps returns the number of optimizer steps observed so far
func (e *EMA) Steps() int {
	return e.steps
}
