package dataset

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
)

// minStdDev guards against division by zero on constant dimensions
const minStdDev float64 = 1e-8

// Normalizer standardizes conditions and controls to zero mean and
// unit variance per dimension. The statistics are fit on a training
// set and reused unchanged at inference time.
type Normalizer struct {
	ConditionMean   []float64
	ConditionStdDev []float64
	ControlMean     []float64
	ControlStdDev   []float64
}

// NewNormalizer fits a Normalizer to the argument Dataset
func NewNormalizer(d *Dataset) (*Normalizer, error) {
	if d.Len() == 0 {
		return nil, fmt.Errorf("newnormalizer: cannot fit an empty " +
			"dataset")
	}

	condMean, condStd := fit(d.Conditions, d.ConditionDims)
	ctrlMean, ctrlStd := fit(d.Controls, d.ControlDims)

	return &Normalizer{
		ConditionMean:   condMean,
		ConditionStdDev: condStd,
		ControlMean:     ctrlMean,
		ControlStdDev:   ctrlStd,
	}, nil
}

// fit computes the per-dimension mean and standard deviation of rows
func fit(rows [][]float64, dims int) (mean, stddev []float64) {
	mean = make([]float64, dims)
	stddev = make([]float64, dims)

	for _, row := range rows {
		for i, v := range row {
			mean[i] += v
		}
	}
	n := float64(len(rows))
	for i := range mean {
		mean[i] /= n
	}

	for _, row := range rows {
		for i, v := range row {
			diff := v - mean[i]
			stddev[i] += diff * diff
		}
	}
	for i := range stddev {
		stddev[i] = math.Sqrt(stddev[i] / n)
		if stddev[i] < minStdDev {
			stddev[i] = minStdDev
		}
	}

	return mean, stddev
}

// NormalizeCondition standardizes a condition in place
func (n *Normalizer) NormalizeCondition(condition []float64) error {
	if len(condition) != len(n.ConditionMean) {
		return fmt.Errorf("normalizecondition: invalid length "+
			"\n\twant(%v) \n\thave(%v)", len(n.ConditionMean),
			len(condition))
	}

	for i := range condition {
		condition[i] = (condition[i] - n.ConditionMean[i]) /
			n.ConditionStdDev[i]
	}
	return nil
}

// NormalizeControls standardizes a flattened control trajectory in
// place
func (n *Normalizer) NormalizeControls(controls []float64) error {
	if len(controls) != len(n.ControlMean) {
		return fmt.Errorf("normalizecontrols: invalid length "+
			"\n\twant(%v) \n\thave(%v)", len(n.ControlMean),
			len(controls))
	}

	for i := range controls {
		controls[i] = (controls[i] - n.ControlMean[i]) /
			n.ControlStdDev[i]
	}
	return nil
}

// UnnormalizeControls maps a normalized flattened control trajectory
// back to plant units in place
func (n *Normalizer) UnnormalizeControls(controls []float64) error {
	if len(controls) != len(n.ControlMean) {
		return fmt.Errorf("unnormalizecontrols: invalid length "+
			"\n\twant(%v) \n\thave(%v)", len(n.ControlMean),
			len(controls))
	}

	for i := range controls {
		controls[i] = controls[i]*n.ControlStdDev[i] + n.ControlMean[i]
	}
	return nil
}

// Save writes the Normalizer to a gob file so that inference runs can
// reuse the statistics the training set was standardized with
func (n *Normalizer) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: could not create file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(n); err != nil {
		return fmt.Errorf("save: could not encode normalizer: %v", err)
	}
	return nil
}

// LoadNormalizer reads a Normalizer from a gob file previously written
// with Save
func LoadNormalizer(path string) (*Normalizer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadnormalizer: could not open file: %v",
			err)
	}
	defer file.Close()

	n := &Normalizer{}
	if err := gob.NewDecoder(file).Decode(n); err != nil {
		return nil, fmt.Errorf("loadnormalizer: could not decode "+
			"normalizer: %v", err)
	}
	return n, nil
}

// NormalizeDataset standardizes every pair of d in place
func (n *Normalizer) NormalizeDataset(d *Dataset) error {
	for i := range d.Conditions {
		if err := n.NormalizeCondition(d.Conditions[i]); err != nil {
			return fmt.Errorf("normalizedataset: pair %v: %v", i, err)
		}
		if err := n.NormalizeControls(d.Controls[i]); err != nil {
			return fmt.Errorf("normalizedataset: pair %v: %v", i, err)
		}
	}
	return nil
}
