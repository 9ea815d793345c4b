package ampc

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"diffmpc/dataset"
	"diffmpc/network"
	"diffmpc/timestep"
)

func newTestController(t *testing.T, horizon, actionDims int) *Controller {
	t.Helper()

	g := G.NewGraph()
	net, err := network.NewAMPCNet(4, 1, horizon, actionDims, g,
		G.GlorotU(1.0))
	if err != nil {
		t.Fatal(err)
	}

	ones := func(n int) []float64 {
		s := make([]float64, n)
		for i := range s {
			s[i] = 1
		}
		return s
	}
	norm := &dataset.Normalizer{
		ConditionMean:   make([]float64, 4),
		ConditionStdDev: ones(4),
		ControlMean:     make([]float64, horizon*actionDims),
		ControlStdDev:   ones(horizon * actionDims),
	}

	controller, err := New(net, norm, horizon, actionDims, -10.0, 10.0)
	if err != nil {
		t.Fatal(err)
	}
	return controller
}

func TestSelectActionShapes(t *testing.T) {
	controller := newTestController(t, 6, 2)
	defer controller.Close()

	obs := mat.NewVecDense(4, []float64{0.1, -0.2, 0.3, 0.0})
	step := timestep.New(timestep.First, 0, obs, 0)

	action, err := controller.SelectAction(step)
	if err != nil {
		t.Fatal(err)
	}

	if action.Len() != 2 {
		t.Errorf("action length: got %v, want 2", action.Len())
	}
	if len(controller.Plan()) != 12 {
		t.Errorf("plan length: got %v, want 12", len(controller.Plan()))
	}
	if action.AtVec(0) != controller.Plan()[0] {
		t.Errorf("action should be the first plan control")
	}
}

func TestSelectActionIsDeterministic(t *testing.T) {
	controller := newTestController(t, 6, 2)
	defer controller.Close()

	obs := mat.NewVecDense(4, []float64{0.1, -0.2, 0.3, 0.0})
	step := timestep.New(timestep.First, 0, obs, 0)

	first, err := controller.SelectAction(step)
	if err != nil {
		t.Fatal(err)
	}
	a0, a1 := first.AtVec(0), first.AtVec(1)

	second, err := controller.SelectAction(step)
	if err != nil {
		t.Fatal(err)
	}

	if second.AtVec(0) != a0 || second.AtVec(1) != a1 {
		t.Error("repeated calls on the same observation should agree")
	}
}

func TestRejectsMismatchedNetwork(t *testing.T) {
	g := G.NewGraph()
	net, err := network.NewAMPCNet(4, 1, 6, 2, g, G.GlorotU(1.0))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := New(net, nil, 5, 2, -10.0, 10.0); err == nil {
		t.Error("expected an error for a horizon mismatch")
	}
}

// TestSelectActionClipsToBounds shifts the whole plan past the bounds
// and checks that only the returned control is clipped
func TestSelectActionClipsToBounds(t *testing.T) {
	g := G.NewGraph()
	net, err := network.NewAMPCNet(4, 1, 6, 2, g, G.GlorotU(1.0))
	if err != nil {
		t.Fatal(err)
	}

	ones := func(n int) []float64 {
		s := make([]float64, n)
		for i := range s {
			s[i] = 1
		}
		return s
	}
	norm := &dataset.Normalizer{
		ConditionMean:   make([]float64, 4),
		ConditionStdDev: ones(4),
		ControlMean:     make([]float64, 12),
		ControlStdDev:   ones(12),
	}
	// A control mean far past the upper bound pushes every
	// unnormalized plan value out of range
	for i := range norm.ControlMean {
		norm.ControlMean[i] = 100
	}

	controller, err := New(net, norm, 6, 2, -10.0, 10.0)
	if err != nil {
		t.Fatal(err)
	}
	defer controller.Close()

	obs := mat.NewVecDense(4, []float64{0.1, -0.2, 0.3, 0.0})
	action, err := controller.SelectAction(timestep.New(timestep.First,
		0, obs, 0))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < action.Len(); i++ {
		if action.AtVec(i) != 10.0 {
			t.Errorf("control %d not clipped \n\twant(10) \n\thave(%v)",
				i, action.AtVec(i))
		}
	}
	for i, u := range controller.Plan() {
		if u <= 10.0 {
			t.Errorf("plan value %d should stay raw \n\thave(%v)", i, u)
		}
	}
}
