package solver

import (
	"encoding/json"
	"testing"
)

func TestAdamJSONRoundTrip(t *testing.T) {
	s, err := NewAdam(3e-3, 1e-8, 0.9, 0.999, 512, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Solver
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Type != Adam {
		t.Errorf("type: got %v, want %v", decoded.Type, Adam)
	}
	if decoded.Solver == nil {
		t.Error("decoded wrapper should hold a usable Solver")
	}
}

func TestNewSolverRejectsMismatchedType(t *testing.T) {
	if _, err := newSolver(Vanilla, AdamConfig{}); err == nil {
		t.Error("expected an error creating a Vanilla solver from an " +
			"Adam config")
	}
}
