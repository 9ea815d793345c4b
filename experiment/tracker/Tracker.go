// Package tracker implements trackers that record time series from a
// control run and save them to disk after the run has finished.
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"diffmpc/timestep"
)

// Tick holds everything a tracker may want to record about a single
// control tick
type Tick struct {
	Step   timestep.TimeStep
	Action *mat.VecDense

	// EEPos is the end-effector position after the tick
	EEPos []float64

	// Distance is the end-effector distance to the target after the
	// tick
	Distance float64

	// PlanCost is the quadratic cost of the plan behind the applied
	// action, zero for controllers that do not price their plans
	PlanCost float64

	// SampleTime is the wall time in seconds the controller spent
	// generating the plan
	SampleTime float64
}

// Tracker records data from control ticks and saves it after the run
type Tracker interface {
	Track(Tick)
	Save() error
}

// LoadSeries loads and returns the series saved by a series Tracker
func LoadSeries(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadseries: could not open data file: %v",
			err)
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadseries: could not decode data: %v",
			err)
	}

	return data, nil
}
