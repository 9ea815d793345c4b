package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// NewAMPCNet returns the network of the one-shot approximate
// controller. The network maps a plant observation to a full control
// trajectory in a single forward pass, using a narrow bottleneck layer
// followed by two wider tanh layers.
//
// The output is the flattened trajectory, laid out row-major as
// horizon rows of actionDims torques.
func NewAMPCNet(features, batch, horizon, actionDims int, g *G.ExprGraph,
	init G.InitWFn) (NeuralNet, error) {
	if horizon <= 0 || actionDims <= 0 {
		return nil, fmt.Errorf("newampcnet: horizon and actionDims must "+
			"be positive \n\thave(%v, %v)", horizon, actionDims)
	}

	hiddenSizes := []int{2, 50, 50}
	biases := []bool{true, true, true}
	activations := []*Activation{TanH(), TanH(), TanH()}

	return NewMLP(features, batch, horizon*actionDims, g, hiddenSizes,
		biases, init, activations)
}

// NewDenoiserNet returns the noise prediction network of the diffusion
// sampler. The input to the network is the flattened noisy control
// trajectory, followed by the conditioning observation, followed by a
// sinusoidal embedding of the diffusion timestep. The output is the
// predicted noise, with the same shape as the flattened trajectory.
func NewDenoiserNet(horizon, actionDims, obsDims, timeEmbedDims,
	batch int, hiddenSizes []int, g *G.ExprGraph,
	init G.InitWFn) (NeuralNet, error) {
	if horizon <= 0 || actionDims <= 0 || obsDims <= 0 {
		return nil, fmt.Errorf("newdenoisernet: dimensions must be "+
			"positive \n\thave(%v, %v, %v)", horizon, actionDims, obsDims)
	}
	if timeEmbedDims <= 0 || timeEmbedDims%2 != 0 {
		return nil, fmt.Errorf("newdenoisernet: timeEmbedDims must be "+
			"positive and even \n\thave(%v)", timeEmbedDims)
	}

	features := horizon*actionDims + obsDims + timeEmbedDims

	biases := make([]bool, len(hiddenSizes))
	activations := make([]*Activation, len(hiddenSizes))
	for i := range hiddenSizes {
		biases[i] = true
		activations[i] = ReLU()
	}

	return NewMLP(features, batch, horizon*actionDims, g, hiddenSizes,
		biases, init, activations)
}
