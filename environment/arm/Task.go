package arm

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"

	"diffmpc/environment"
	"diffmpc/timestep"
)

// Reach implements the reaching task for the planar arm. The
// controller must place the arm's end effector within a fixed radius
// of a target point. The per-tick cost is a function of the distance
// between the end effector and the target as well as a function of the
// action taken. This encourages reaching the target fast while
// penalizing very large torques. Runs are ended after a tick limit.
type Reach struct {
	environment.Starter
	environment.StepLimit

	target     *mat.VecDense
	goalRadius float64
	ctrlWeight float64
}

// NewReach returns a new Reach task with a fixed target position
func NewReach(starter environment.Starter, target *mat.VecDense,
	cutoff int, goalRadius, ctrlWeight float64) *Reach {
	if target.Len() != 2 {
		panic(fmt.Sprintf("newReach: target should be an (x, y) "+
			"coordinate \n\thave(%v)", target.Len()))
	}

	return &Reach{
		Starter:    starter,
		StepLimit:  environment.NewStepLimit(cutoff),
		target:     mat.VecDenseCopyOf(target),
		goalRadius: goalRadius,
		ctrlWeight: ctrlWeight,
	}
}

// NewReachRandomTarget returns a new Reach task whose target is drawn
// uniformly from the annulus reachable by the arm
func NewReachRandomTarget(starter environment.Starter, seed uint64,
	cutoff int, goalRadius, ctrlWeight float64) *Reach {
	reach := LinkLength1 + LinkLength2
	bounds := []r1.Interval{
		{Min: -reach, Max: reach},
		{Min: -reach, Max: reach},
	}
	goalRng := distmv.NewUniform(bounds, rand.NewSource(seed))

	// Rejection sample until the target is reachable but not
	// degenerate at the base
	var goal []float64
	for {
		goal = goalRng.Rand(nil)
		norm := mat.Norm(mat.NewVecDense(2, goal), 2)
		if norm < reach*0.9 && norm > reach*0.2 {
			break
		}
	}

	return NewReach(starter, mat.NewVecDense(2, goal), cutoff, goalRadius,
		ctrlWeight)
}

// Target returns the target end-effector position
func (r *Reach) Target() mat.Vector {
	return r.target
}

// AtGoal returns whether the (x, y) end-effector position determined
// by the argument matrix is within the goal radius of the target
func (r *Reach) AtGoal(eePos mat.Matrix) bool {
	rows, c := eePos.Dims()
	if c != 1 || rows != 2 {
		panic("atGoal: argument should be an (x, y) coordinate")
	}

	dist := mat.NewVecDense(2, []float64{
		eePos.At(0, 0) - r.target.AtVec(0),
		eePos.At(1, 0) - r.target.AtVec(1),
	})

	return mat.Norm(dist, 2) < r.goalRadius
}

// Cost returns the stage cost for some transition. The cost is
// computed from the end-effector position in nextState, together with
// a quadratic penalty on the (unclipped) action.
func (r *Reach) Cost(state, action, nextState mat.Vector) float64 {
	if nextState.Len() != ObservationDims {
		panic(fmt.Sprintf("cost: nextState should be a full context "+
			"vector \n\twant(%v) \n\thave(%v)", ObservationDims,
			nextState.Len()))
	}

	distVec := mat.NewVecDense(2, []float64{
		nextState.AtVec(4) - r.target.AtVec(0),
		nextState.AtVec(5) - r.target.AtVec(1),
	})
	costDist := mat.Norm(distVec, 2)

	costCtrl := mat.Dot(action, action)

	return costDist + r.ctrlWeight*costCtrl
}

// End calls the embedded StepLimit's End method
func (r *Reach) End(t *timestep.TimeStep) bool {
	return r.StepLimit.End(t)
}
