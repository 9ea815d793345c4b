package diffmpc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"diffmpc/agent"
	"diffmpc/dataset"
	"diffmpc/diffusion"
	"diffmpc/environment"
	"diffmpc/environment/arm"
)

// stubDenoiser predicts noise proportional to the iterate, giving a
// deterministic contraction for the reverse process
type stubDenoiser struct {
	dims int
}

func (s *stubDenoiser) Epsilon(trajectory, context []float64,
	t int) ([]float64, error) {
	eps := make([]float64, len(trajectory))
	for i := range eps {
		eps[i] = 0.1 * trajectory[i]
	}
	return eps, nil
}

func (s *stubDenoiser) Dims() int { return s.dims }

func identityNormalizer(conditionDims, controlDims int) *dataset.Normalizer {
	ones := func(n int) []float64 {
		s := make([]float64, n)
		for i := range s {
			s[i] = 1
		}
		return s
	}
	return &dataset.Normalizer{
		ConditionMean:   make([]float64, conditionDims),
		ConditionStdDev: ones(conditionDims),
		ControlMean:     make([]float64, controlDims),
		ControlStdDev:   ones(controlDims),
	}
}

func newTestController(t *testing.T, horizon int) (*Controller,
	environment.Simulator) {
	t.Helper()

	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: -0.1, Max: 0.1},
		{Min: -0.1, Max: 0.1},
		{Min: 0, Max: 0},
		{Min: 0, Max: 0},
	}, 29)
	target := mat.NewVecDense(2, []float64{1.0, 1.0})
	task := arm.NewReach(starter, target, 500, 0.05, 0.001)

	sim, _, err := arm.New(task, 10)
	if err != nil {
		t.Fatal(err)
	}

	sched, err := diffusion.NewExponential(10, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	dims := horizon * arm.ActionDims
	sampler, err := diffusion.NewSampler(sched, &stubDenoiser{dims: dims},
		0.01, 2, 43)
	if err != nil {
		t.Fatal(err)
	}

	controller, err := New(sim, sampler,
		identityNormalizer(arm.ObservationDims, dims), horizon,
		arm.ActionDims, DefaultWeights(2))
	if err != nil {
		t.Fatal(err)
	}
	return controller, sim
}

func TestSelectActionShapes(t *testing.T) {
	controller, sim := newTestController(t, 8)
	defer controller.Close()

	action, err := controller.SelectAction(sim.CurrentTimeStep())
	if err != nil {
		t.Fatal(err)
	}

	if action.Len() != arm.ActionDims {
		t.Errorf("action length: got %v, want %v", action.Len(),
			arm.ActionDims)
	}
	if len(controller.Plan()) != 8*arm.ActionDims {
		t.Errorf("plan length: got %v, want %v", len(controller.Plan()),
			8*arm.ActionDims)
	}
	if len(controller.PredictedPath()) != 9 {
		t.Errorf("predicted path length: got %v, want 9",
			len(controller.PredictedPath()))
	}
	if controller.PlanCost() <= 0 {
		t.Errorf("plan cost: got %v, want positive", controller.PlanCost())
	}
}

func TestSelectActionReturnsFirstPlanControl(t *testing.T) {
	controller, sim := newTestController(t, 8)
	defer controller.Close()

	action, err := controller.SelectAction(sim.CurrentTimeStep())
	if err != nil {
		t.Fatal(err)
	}

	plan := controller.Plan()
	for i := 0; i < arm.ActionDims; i++ {
		if action.AtVec(i) != plan[i] {
			t.Errorf("action[%d]: got %v, want plan[%d] = %v", i,
				action.AtVec(i), i, plan[i])
		}
	}
}

func TestPlanningDoesNotMoveLivePlant(t *testing.T) {
	controller, sim := newTestController(t, 8)
	defer controller.Close()

	beforePos, beforeVel := sim.State()
	if _, err := controller.SelectAction(sim.CurrentTimeStep()); err != nil {
		t.Fatal(err)
	}
	afterPos, afterVel := sim.State()

	for i := range beforePos {
		if beforePos[i] != afterPos[i] || beforeVel[i] != afterVel[i] {
			t.Fatal("planning mutated the live plant state")
		}
	}
}

func TestTrajectoryCostHandComputed(t *testing.T) {
	// Two-step horizon in one dimension: states 0, 1, 2 tracking a
	// target at 0, controls 1 then 3
	states := [][]float64{{0}, {1}, {2}}
	controls := []float64{1, 3}
	w := Weights{Q: []float64{10}, R: 0.5, P: []float64{10}}

	got, err := TrajectoryCost(states, controls, 1, []float64{0}, w)
	if err != nil {
		t.Fatal(err)
	}

	// Initial: 10*0^2. Stage: 10*1^2 + 0.5*(3-1)^2. Terminal: 10*2^2.
	want := 0.0 + 10.0 + 0.5*4.0 + 40.0
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("cost: got %v, want %v", got, want)
	}
}

func TestTrajectoryCostRejectsBadShapes(t *testing.T) {
	w := DefaultWeights(1)

	_, err := TrajectoryCost([][]float64{{0}}, nil, 1, []float64{0}, w)
	if err == nil {
		t.Error("expected an error with a single state")
	}

	_, err = TrajectoryCost([][]float64{{0}, {1}}, []float64{1, 2}, 1,
		[]float64{0}, w)
	if err == nil {
		t.Error("expected an error with mismatched controls length")
	}
}

// TestSelectActionClipsToActuatorBounds drives the plan far above the
// torque limit and checks that the returned control is clipped while
// the plan itself stays raw for pricing.
func TestSelectActionClipsToActuatorBounds(t *testing.T) {
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: -0.1, Max: 0.1},
		{Min: -0.1, Max: 0.1},
		{Min: 0, Max: 0},
		{Min: 0, Max: 0},
	}, 29)
	target := mat.NewVecDense(2, []float64{1.0, 1.0})
	task := arm.NewReach(starter, target, 500, 0.05, 0.001)

	sim, _, err := arm.New(task, 10)
	if err != nil {
		t.Fatal(err)
	}

	sched, err := diffusion.NewExponential(10, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	horizon := 8
	dims := horizon * arm.ActionDims
	sampler, err := diffusion.NewSampler(sched, &stubDenoiser{dims: dims},
		0.01, 2, 43)
	if err != nil {
		t.Fatal(err)
	}

	// Shifting the control mean far past MaxTorque forces every
	// unnormalized plan value out of bounds
	norm := identityNormalizer(arm.ObservationDims, dims)
	for i := range norm.ControlMean {
		norm.ControlMean[i] = 10 * arm.MaxTorque
	}

	controller, err := New(sim, sampler, norm, horizon, arm.ActionDims,
		DefaultWeights(2))
	if err != nil {
		t.Fatal(err)
	}
	defer controller.Close()

	action, err := controller.SelectAction(sim.CurrentTimeStep())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < action.Len(); i++ {
		if action.AtVec(i) != arm.MaxTorque {
			t.Errorf("control %d not clipped \n\twant(%v) \n\thave(%v)",
				i, arm.MaxTorque, action.AtVec(i))
		}
	}
	for i, u := range controller.Plan() {
		if u <= arm.MaxTorque {
			t.Errorf("plan value %d should stay raw \n\thave(%v)", i, u)
		}
	}
	if controller.PlanCost() <= 0 {
		t.Errorf("plan cost: got %v, want positive", controller.PlanCost())
	}
}

func TestControllerSatisfiesPlanner(t *testing.T) {
	controller, sim := newTestController(t, 8)

	// Dataset collection holds the controller behind the Planner
	// interface
	var planner agent.Planner = controller
	defer planner.Close()

	step := sim.Reset()
	action, err := planner.SelectAction(step)
	if err != nil {
		t.Fatal(err)
	}
	if action.Len() != arm.ActionDims {
		t.Errorf("action length: got %v, want %v", action.Len(),
			arm.ActionDims)
	}
	if len(planner.Plan()) != 8*arm.ActionDims {
		t.Errorf("plan length: got %v, want %v", len(planner.Plan()),
			8*arm.ActionDims)
	}
}
