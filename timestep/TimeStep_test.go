package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStepTypePredicates(t *testing.T) {
	obs := mat.NewVecDense(2, []float64{0.1, -0.2})

	first := New(First, 0.0, obs, 0)
	if !first.First() || first.Mid() || first.Last() {
		t.Errorf("first step misclassified: %v", first)
	}

	mid := New(Mid, 1.5, obs, 3)
	if mid.First() || !mid.Mid() || mid.Last() {
		t.Errorf("mid step misclassified: %v", mid)
	}

	last := New(Last, 0.7, obs, 199)
	if last.First() || last.Mid() || !last.Last() {
		t.Errorf("last step misclassified: %v", last)
	}
}

func TestStepTypeString(t *testing.T) {
	tests := []struct {
		stepType StepType
		want     string
	}{
		{First, "First"},
		{Mid, "Mid"},
		{Last, "Last"},
	}

	for _, test := range tests {
		if got := test.stepType.String(); got != test.want {
			t.Errorf("got %v, want %v", got, test.want)
		}
	}
}
