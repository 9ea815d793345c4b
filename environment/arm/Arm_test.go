package arm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"diffmpc/environment"
)

// newTestArm returns an arm starting at rest pointing along the
// positive x-axis
func newTestArm(t *testing.T) *Arm {
	t.Helper()

	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: 0.0, Max: 0.0},
		{Min: 0.0, Max: 0.0},
		{Min: 0.0, Max: 0.0},
		{Min: 0.0, Max: 0.0},
	}, 42)
	task := NewReach(starter, mat.NewVecDense(2, []float64{0.5, 1.0}),
		200, 0.05, 0.001)

	a, _, err := New(task, 10)
	if err != nil {
		t.Fatalf("could not create arm: %v", err)
	}
	return a
}

func TestObservationLayout(t *testing.T) {
	a := newTestArm(t)
	obs := a.CurrentTimeStep().Observation

	if obs.Len() != ObservationDims {
		t.Fatalf("observation has %v dims, want %v", obs.Len(),
			ObservationDims)
	}

	// Fully extended along x: end effector at (l1+l2, 0)
	if math.Abs(obs.AtVec(4)-(LinkLength1+LinkLength2)) > 1e-12 {
		t.Errorf("end effector x = %v, want %v", obs.AtVec(4),
			LinkLength1+LinkLength2)
	}
	if math.Abs(obs.AtVec(5)) > 1e-12 {
		t.Errorf("end effector y = %v, want 0", obs.AtVec(5))
	}
	for i := 6; i < 8; i++ {
		if obs.AtVec(i) != 0.0 {
			t.Errorf("end effector velocity component %v = %v, want 0",
				i, obs.AtVec(i))
		}
	}
}

func TestStepAdvancesState(t *testing.T) {
	a := newTestArm(t)

	step, last := a.Step(mat.NewVecDense(2, []float64{0.0, 0.0}))
	if last {
		t.Fatal("run ended after a single tick")
	}
	if step.Number != 1 {
		t.Errorf("tick number = %v, want 1", step.Number)
	}

	// With zero torque and gravity, the extended arm must fall: the
	// joint velocities cannot remain zero
	_, qvel := a.State()
	if qvel[0] == 0.0 && qvel[1] == 0.0 {
		t.Error("gravity did not accelerate the arm")
	}
}

func TestStepLimitEndsRun(t *testing.T) {
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: 0.0, Max: 0.0}, {Min: 0.0, Max: 0.0},
		{Min: 0.0, Max: 0.0}, {Min: 0.0, Max: 0.0},
	}, 13)
	task := NewReach(starter, mat.NewVecDense(2, []float64{0.5, 1.0}),
		3, 0.05, 0.001)
	a, _, err := New(task, 2)
	if err != nil {
		t.Fatalf("could not create arm: %v", err)
	}

	action := mat.NewVecDense(2, []float64{0.1, -0.1})
	var last bool
	for i := 0; i < 3; i++ {
		if last {
			t.Fatalf("run ended early at tick %v", i)
		}
		_, last = a.Step(action)
	}
	if !last {
		t.Error("run did not end at the tick limit")
	}
}

func TestCopyDoesNotAlias(t *testing.T) {
	a := newTestArm(t)
	clone := a.Copy()

	cq, cv := clone.State()
	aq, av := a.State()
	for i := range cq {
		if cq[i] != aq[i] || cv[i] != av[i] {
			t.Fatal("copy does not preserve state")
		}
	}

	// Stepping the copy must leave the original untouched
	for i := 0; i < 5; i++ {
		clone.Step(mat.NewVecDense(2, []float64{5.0, -5.0}))
	}
	aq2, av2 := a.State()
	for i := range aq {
		if aq[i] != aq2[i] || av[i] != av2[i] {
			t.Fatal("stepping a copy mutated the original plant")
		}
	}
}

func TestSetState(t *testing.T) {
	a := newTestArm(t)

	qpos := []float64{0.3, -0.7}
	qvel := []float64{0.1, 0.2}
	if err := a.SetState(qpos, qvel); err != nil {
		t.Fatalf("setState failed: %v", err)
	}

	gotPos, gotVel := a.State()
	for i := range qpos {
		if gotPos[i] != qpos[i] || gotVel[i] != qvel[i] {
			t.Errorf("state not set: got (%v, %v), want (%v, %v)",
				gotPos, gotVel, qpos, qvel)
		}
	}

	if err := a.SetState([]float64{1}, qvel); err == nil {
		t.Error("expected error for invalid position dimensions")
	}
}

func TestEnergyDissipatesAtRest(t *testing.T) {
	// Starting hanging straight down with no velocity and no torque,
	// the arm is at a stable equilibrium and should stay there
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: -math.Pi / 2, Max: -math.Pi / 2},
		{Min: 0.0, Max: 0.0},
		{Min: 0.0, Max: 0.0},
		{Min: 0.0, Max: 0.0},
	}, 7)
	task := NewReach(starter, mat.NewVecDense(2, []float64{0.5, 1.0}),
		1000, 0.05, 0.001)
	a, _, err := New(task, 10)
	if err != nil {
		t.Fatalf("could not create arm: %v", err)
	}

	zero := mat.NewVecDense(2, nil)
	for i := 0; i < 50; i++ {
		a.Step(zero)
	}

	qpos, qvel := a.State()
	if math.Abs(qpos[0]+math.Pi/2) > 1e-6 || math.Abs(qpos[1]) > 1e-6 {
		t.Errorf("arm left the hanging equilibrium: q = %v", qpos)
	}
	if math.Abs(qvel[0]) > 1e-6 || math.Abs(qvel[1]) > 1e-6 {
		t.Errorf("arm accelerated at equilibrium: q̇ = %v", qvel)
	}
}

func TestAtGoal(t *testing.T) {
	a := newTestArm(t)

	onTarget := mat.NewDense(2, 1, []float64{0.5, 1.0})
	if !a.AtGoal(onTarget) {
		t.Error("position at the target not recognized as the goal")
	}

	offTarget := mat.NewDense(2, 1, []float64{-1.0, -1.0})
	if a.AtGoal(offTarget) {
		t.Error("far position recognized as the goal")
	}
}
