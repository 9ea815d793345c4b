package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func init() {
	gob.Register(&mlp{})
}

// mlp implements a multi-layered perceptron with a single output head
type mlp struct {
	g          *G.ExprGraph
	layers     []Layer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	// Data needed for gobbing
	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron and
// populates the graph g with it. A final linear layer of size outputs
// with a bias unit and no activation is always appended, so the
// network has len(hiddenSizes) + 1 layers in total.
//
// For index i, hiddenSizes[i] is the number of units in hidden layer
// i; biases[i] is true if hidden layer i has a bias unit; and
// activations[i] is the activation function of hidden layer i. The
// parameter init determines the weight initialization scheme.
func NewMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	if len(hiddenSizes) != len(activations) {
		return nil, fmt.Errorf("newmlp: invalid number of activations"+
			"\n\twant(%d)\n\thave(%d)", len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		return nil, fmt.Errorf("newmlp: invalid number of biases"+
			"\n\twant(%d)\n\thave(%d)", len(hiddenSizes), len(biases))
	}
	if features <= 0 || batch <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("newmlp: features, batch, and outputs "+
			"must be positive \n\thave(%v, %v, %v)", features, batch,
			outputs)
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	// Final linear layer so the network predicts exactly outputs values
	hiddenSizes = append(append([]int{}, hiddenSizes...), outputs)
	biases = append(append([]bool{}, biases...), true)
	activations = append(append([]*Activation{}, activations...),
		Identity())

	layers := addfcLayers(g, hiddenSizes, biases, activations, init,
		features)

	network := mlp{
		g:           g,
		layers:      layers,
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
	}
	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("newmlp: could not compute forward "+
			"pass: %v", err)
	}

	return &network, nil
}

// Graph returns the computational graph of the mlp
func (e *mlp) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones an mlp
func (e *mlp) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithBatch clones an mlp to a new computational graph with a new
// input batch size
func (e *mlp) CloneWithBatch(batchSize int) (NeuralNet, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("clonewithbatch: batch size must be "+
			"positive \n\thave(%v)", batchSize)
	}

	graph := G.NewGraph()
	input := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batchSize, e.numInputs),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	layers := make([]Layer, len(e.layers))
	for i := range e.layers {
		layers[i] = e.layers[i].CloneTo(graph)
	}

	network := mlp{
		g:           graph,
		layers:      layers,
		input:       input,
		numOutputs:  e.numOutputs,
		numInputs:   e.numInputs,
		batchSize:   batchSize,
		hiddenSizes: e.hiddenSizes,
		biases:      e.biases,
		activations: e.activations,
	}
	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone: %v", err)
	}

	return &network, nil
}

// BatchSize returns the number of samples the network takes per
// forward pass
func (e *mlp) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single input vector
func (e *mlp) Features() int {
	return e.numInputs
}

// Outputs returns the number of values the network predicts per sample
func (e *mlp) Outputs() int {
	return e.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass
func (e *mlp) SetInput(input []float64) error {
	if len(input) != e.numInputs*e.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs "+
			"\n\twant(%v) \n\thave(%v)", e.numInputs*e.batchSize,
			len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Set sets the weights of an mlp to be equal to the weights of another
// NeuralNet with the same architecture
func (e *mlp) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := e.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: mismatched number of learnables "+
			"\n\twant(%v) \n\thave(%v)", len(nodes), len(sourceNodes))
	}

	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Polyak sets the weights of an mlp to a Polyak average between its
// existing weights and the weights of another NeuralNet with the same
// architecture
func (e *mlp) Polyak(source NeuralNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := e.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("polyak: mismatched number of learnables "+
			"\n\twant(%v) \n\thave(%v)", len(nodes), len(sourceNodes))
	}

	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return err
		}

		if err := G.Let(nodes[i], newWeights); err != nil {
			return err
		}
	}
	return nil
}

// Learnables returns the learnable nodes in an mlp
func (e *mlp) Learnables() G.Nodes {
	// Lazy instantiation
	if e.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(e.layers))
		for i := range e.layers {
			learnables = append(learnables, e.layers[i].Weights())
			if bias := e.layers[i].Bias(); bias != nil {
				learnables = append(learnables, bias)
			}
		}
		e.learnables = G.Nodes(learnables)
	}
	return e.learnables
}

// Model returns the learnable nodes with their gradients
func (e *mlp) Model() []G.ValueGrad {
	// Lazy instantiation
	if e.model == nil {
		model := make([]G.ValueGrad, 0, 2*len(e.layers))
		for _, node := range e.Learnables() {
			model = append(model, node)
		}
		e.model = model
	}
	return e.model
}

// fwd performs the forward pass of the mlp on the input node
func (e *mlp) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("fwd: could not compute forward pass "+
				"of layer %v: %v", i, err)
		}
	}

	e.prediction = pred
	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the value of the output of the mlp after the last
// forward pass
func (e *mlp) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the mlp
func (e *mlp) Prediction() *G.Node {
	return e.prediction
}

// GobEncode implements the gob.GobEncoder interface
func (e *mlp) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(e.numOutputs); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode number of " +
			"outputs")
	}
	if err := enc.Encode(e.numInputs); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode number of " +
			"inputs")
	}
	if err := enc.Encode(e.batchSize); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode batch size")
	}
	if err := enc.Encode(e.hiddenSizes); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode hidden sizes")
	}
	if err := enc.Encode(e.biases); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode biases")
	}
	if err := enc.Encode(e.activations); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode activations")
	}

	for i, layer := range e.layers {
		if err := enc.Encode(layer); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode layer "+
				"%v: %v", i, err)
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (e *mlp) GobDecode(in []byte) error {
	buf := bytes.NewReader(in)
	dec := gob.NewDecoder(buf)

	var numOutputs int
	if err := dec.Decode(&numOutputs); err != nil {
		return fmt.Errorf("gobdecode: could not decode number of outputs")
	}

	var numInputs int
	if err := dec.Decode(&numInputs); err != nil {
		return fmt.Errorf("gobdecode: could not decode number of inputs")
	}

	var batchSize int
	if err := dec.Decode(&batchSize); err != nil {
		return fmt.Errorf("gobdecode: could not decode batch size")
	}

	var hiddenSizes []int
	if err := dec.Decode(&hiddenSizes); err != nil {
		return fmt.Errorf("gobdecode: could not decode hidden sizes")
	}

	var biases []bool
	if err := dec.Decode(&biases); err != nil {
		return fmt.Errorf("gobdecode: could not decode biases")
	}

	var activations []*Activation
	if err := dec.Decode(&activations); err != nil {
		return fmt.Errorf("gobdecode: could not decode activations")
	}

	// NewMLP appends the output layer itself, so strip it from the
	// stored configuration before reconstructing
	hiddenSizes = hiddenSizes[:len(hiddenSizes)-1]
	biases = biases[:len(biases)-1]
	activations = activations[:len(activations)-1]

	g := G.NewGraph()
	newNet, err := NewMLP(numInputs, batchSize, numOutputs, g,
		hiddenSizes, biases, G.Zeroes(), activations)
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct new MLP: %v",
			err)
	}
	newMLP := newNet.(*mlp)

	for i := range newMLP.layers {
		if err := dec.Decode(newMLP.layers[i]); err != nil {
			return fmt.Errorf("gobdecode: could not decode layer %v: %v",
				i, err)
		}
	}

	*e = *newMLP
	return nil
}
