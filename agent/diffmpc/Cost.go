package diffmpc

import "fmt"

// Weights holds the quadratic cost weights of the planner. Q weighs
// the tracking error of intermediate states, P the tracking error of
// the final state, and R the change in control between consecutive
// horizon steps.
type Weights struct {
	Q []float64
	R float64
	P []float64
}

// DefaultWeights returns the cost weights used throughout this module
// for a dims-dimensional end-effector position
func DefaultWeights(dims int) Weights {
	q := make([]float64, dims)
	p := make([]float64, dims)
	for i := range q {
		q[i] = 10
		p[i] = 10
	}
	return Weights{Q: q, R: 0.5, P: p}
}

// TrajectoryCost evaluates the quadratic planning cost of a rollout.
// The states slice holds the predicted end-effector positions along
// the rollout, one entry per horizon step plus the state the rollout
// started from. The controls slice is the flattened control
// trajectory of horizon rows of actionDims inputs.
//
// The cost is the tracking error of the initial state under Q, plus a
// stage term for each subsequent state under Q with an R-weighted
// penalty on the change in control, plus the tracking error of the
// final state under P.
func TrajectoryCost(states [][]float64, controls []float64,
	actionDims int, target []float64, w Weights) (float64, error) {
	if len(states) < 2 {
		return 0, fmt.Errorf("trajectorycost: need at least two states "+
			"\n\thave(%v)", len(states))
	}
	horizon := len(states) - 1
	if len(controls) != horizon*actionDims {
		return 0, fmt.Errorf("trajectorycost: invalid controls length "+
			"\n\twant(%v) \n\thave(%v)", horizon*actionDims,
			len(controls))
	}

	quad := func(state, weights []float64) float64 {
		total := 0.0
		for i := range target {
			diff := state[i] - target[i]
			total += weights[i] * diff * diff
		}
		return total
	}

	// Initial state
	cost := quad(states[0], w.Q)

	// Stage terms with the control-change penalty
	for i := 0; i < horizon-1; i++ {
		cost += quad(states[i+1], w.Q)

		deltaSq := 0.0
		for j := 0; j < actionDims; j++ {
			delta := controls[(i+1)*actionDims+j] - controls[i*actionDims+j]
			deltaSq += delta * delta
		}
		cost += w.R * deltaSq
	}

	// Terminal state
	cost += quad(states[horizon], w.P)

	return cost, nil
}
