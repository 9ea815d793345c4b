// Package network implements feed forward neural networks on gorgonia
// computational graphs. Networks in this package predict a single
// output head and are used both as the denoising network of the
// diffusion sampler and as the one-shot approximate controller.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet implements a neural network on a gorgonia computational
// graph. A NeuralNet owns its input node. Callers set the input with
// SetInput, run the graph on a VM, and read the result with Output.
type NeuralNet interface {
	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error
	Set(NeuralNet) error
	Polyak(NeuralNet, float64) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node
}
