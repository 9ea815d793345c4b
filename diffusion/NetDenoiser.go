package diffusion

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"

	"diffmpc/network"
)

// NetDenoiser adapts a network.NeuralNet to the Denoiser interface.
// The network input is the flattened noisy trajectory, followed by the
// conditioning observation, followed by a sinusoidal embedding of the
// diffusion step. A nil context is encoded as all zeroes, which serves
// as the null token of classifier-free guidance.
type NetDenoiser struct {
	net           network.NeuralNet
	trajectoryLen int
	contextLen    int
	embedLen      int

	// Reused between calls
	input []float64
	vm    G.VM
}

// NewNetDenoiser returns a new NetDenoiser around net. The network
// must have batch size 1 and take trajectoryLen + contextLen +
// embedLen input features.
func NewNetDenoiser(net network.NeuralNet, trajectoryLen, contextLen,
	embedLen int) (*NetDenoiser, error) {
	if net.BatchSize() != 1 {
		return nil, fmt.Errorf("newnetdenoiser: network must have "+
			"batch size 1 \n\thave(%v)", net.BatchSize())
	}
	if embedLen <= 0 || embedLen%2 != 0 {
		return nil, fmt.Errorf("newnetdenoiser: embedLen must be "+
			"positive and even \n\thave(%v)", embedLen)
	}

	features := trajectoryLen + contextLen + embedLen
	if net.Features() != features {
		return nil, fmt.Errorf("newnetdenoiser: invalid number of "+
			"network features \n\twant(%v) \n\thave(%v)", features,
			net.Features())
	}
	if net.Outputs() != trajectoryLen {
		return nil, fmt.Errorf("newnetdenoiser: invalid number of "+
			"network outputs \n\twant(%v) \n\thave(%v)", trajectoryLen,
			net.Outputs())
	}

	return &NetDenoiser{
		net:           net,
		trajectoryLen: trajectoryLen,
		contextLen:    contextLen,
		embedLen:      embedLen,
		input:         make([]float64, features),
	}, nil
}

// Dims returns the length of the flattened trajectories the denoiser
// operates on
func (n *NetDenoiser) Dims() int {
	return n.trajectoryLen
}

// Net returns the wrapped network
func (n *NetDenoiser) Net() network.NeuralNet {
	return n.net
}

// Epsilon implements the Denoiser interface
func (n *NetDenoiser) Epsilon(trajectory, context []float64,
	t int) ([]float64, error) {
	if len(trajectory) != n.trajectoryLen {
		return nil, fmt.Errorf("epsilon: invalid trajectory length "+
			"\n\twant(%v) \n\thave(%v)", n.trajectoryLen, len(trajectory))
	}
	if context != nil && len(context) != n.contextLen {
		return nil, fmt.Errorf("epsilon: invalid context length "+
			"\n\twant(%v) \n\thave(%v)", n.contextLen, len(context))
	}

	copy(n.input, trajectory)
	if context == nil {
		for i := 0; i < n.contextLen; i++ {
			n.input[n.trajectoryLen+i] = 0
		}
	} else {
		copy(n.input[n.trajectoryLen:], context)
	}
	TimeEmbedding(t, n.input[n.trajectoryLen+n.contextLen:])

	if err := n.net.SetInput(n.input); err != nil {
		return nil, fmt.Errorf("epsilon: %v", err)
	}

	if n.vm == nil {
		n.vm = G.NewTapeMachine(n.net.Graph())
	}
	if err := n.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("epsilon: could not run forward pass: %v",
			err)
	}
	defer n.vm.Reset()

	out := n.net.Output().Data().([]float64)
	eps := make([]float64, n.trajectoryLen)
	copy(eps, out)
	return eps, nil
}

// Close releases the virtual machine of the denoiser
func (n *NetDenoiser) Close() error {
	if n.vm == nil {
		return nil
	}
	return n.vm.Close()
}

// TimeEmbedding writes the sinusoidal embedding of diffusion step t
// into out. The first half of out holds sines, the second half
// cosines, with geometrically spaced frequencies.
func TimeEmbedding(t int, out []float64) {
	half := len(out) / 2
	for i := 0; i < half; i++ {
		freq := math.Pow(10000, -float64(i)/float64(half))
		out[i] = math.Sin(float64(t) * freq)
		out[half+i] = math.Cos(float64(t) * freq)
	}
}
