// Package dataset implements datasets of (condition, controls) pairs
// for imitation training. A condition is a plant observation and the
// controls are the flattened trajectory generated for it. Datasets are
// persisted with gob.
package dataset

import (
	"encoding/gob"
	"fmt"
	"os"

	"golang.org/x/exp/rand"
)

// Dataset holds aligned conditions and control trajectories. Row i of
// Conditions is the observation that produced row i of Controls.
// Controls rows are flattened trajectories, laid out row-major as
// horizon rows of action dimensions.
type Dataset struct {
	ConditionDims int
	ControlDims   int
	Conditions    [][]float64
	Controls      [][]float64
}

// New returns a new empty Dataset
func New(conditionDims, controlDims int) (*Dataset, error) {
	if conditionDims <= 0 || controlDims <= 0 {
		return nil, fmt.Errorf("new: dimensions must be positive "+
			"\n\thave(%v, %v)", conditionDims, controlDims)
	}

	return &Dataset{
		ConditionDims: conditionDims,
		ControlDims:   controlDims,
	}, nil
}

// Add appends a (condition, controls) pair to the Dataset. The slices
// are copied.
func (d *Dataset) Add(condition, controls []float64) error {
	if len(condition) != d.ConditionDims {
		return fmt.Errorf("add: invalid condition length \n\twant(%v) "+
			"\n\thave(%v)", d.ConditionDims, len(condition))
	}
	if len(controls) != d.ControlDims {
		return fmt.Errorf("add: invalid controls length \n\twant(%v) "+
			"\n\thave(%v)", d.ControlDims, len(controls))
	}

	cond := make([]float64, len(condition))
	copy(cond, condition)
	ctrl := make([]float64, len(controls))
	copy(ctrl, controls)

	d.Conditions = append(d.Conditions, cond)
	d.Controls = append(d.Controls, ctrl)
	return nil
}

// Len returns the number of pairs in the Dataset
func (d *Dataset) Len() int {
	return len(d.Conditions)
}

// Split partitions the Dataset into a training set holding trainFrac
// of the pairs and a validation set holding the rest. The split is a
// prefix split; shuffle ordering is the caller's concern.
func (d *Dataset) Split(trainFrac float64) (*Dataset, *Dataset, error) {
	if trainFrac <= 0 || trainFrac > 1 {
		return nil, nil, fmt.Errorf("split: trainFrac must be in "+
			"(0, 1] \n\thave(%v)", trainFrac)
	}

	n := int(float64(d.Len()) * trainFrac)
	train := &Dataset{
		ConditionDims: d.ConditionDims,
		ControlDims:   d.ControlDims,
		Conditions:    d.Conditions[:n],
		Controls:      d.Controls[:n],
	}
	val := &Dataset{
		ConditionDims: d.ConditionDims,
		ControlDims:   d.ControlDims,
		Conditions:    d.Conditions[n:],
		Controls:      d.Controls[n:],
	}
	return train, val, nil
}

// Batch holds one minibatch of flattened conditions and controls,
// ready to be fed to a network input node
type Batch struct {
	Size       int
	Conditions []float64
	Controls   []float64
}

// Batches partitions a shuffled copy of the Dataset into minibatches
// of exactly batchSize pairs. The final incomplete batch of each pass
// is dropped.
func (d *Dataset) Batches(batchSize int, rng *rand.Rand) ([]Batch,
	error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batches: batch size must be positive "+
			"\n\thave(%v)", batchSize)
	}

	perm := rng.Perm(d.Len())
	numBatches := d.Len() / batchSize

	batches := make([]Batch, 0, numBatches)
	for b := 0; b < numBatches; b++ {
		batch := Batch{
			Size:       batchSize,
			Conditions: make([]float64, 0, batchSize*d.ConditionDims),
			Controls:   make([]float64, 0, batchSize*d.ControlDims),
		}
		for i := b * batchSize; i < (b+1)*batchSize; i++ {
			batch.Conditions = append(batch.Conditions,
				d.Conditions[perm[i]]...)
			batch.Controls = append(batch.Controls,
				d.Controls[perm[i]]...)
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

// Save persists the Dataset to path with gob
func (d *Dataset) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: could not create file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(d); err != nil {
		return fmt.Errorf("save: could not encode dataset: %v", err)
	}
	return nil
}

// Load reads a Dataset from a gob file previously written with Save
func Load(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: could not open file: %v", err)
	}
	defer file.Close()

	d := new(Dataset)
	if err := gob.NewDecoder(file).Decode(d); err != nil {
		return nil, fmt.Errorf("load: could not decode dataset: %v", err)
	}
	return d, nil
}
