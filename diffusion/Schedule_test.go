package diffusion

import (
	"math"
	"testing"
)

func TestExponentialScheduleEndpoints(t *testing.T) {
	sched, err := NewExponential(25, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	if sched.Steps() != 25 {
		t.Errorf("steps: got %v, want 25", sched.Steps())
	}
	if math.Abs(sched.Beta(0)-1e-4) > 1e-12 {
		t.Errorf("first beta: got %v, want 1e-4", sched.Beta(0))
	}
	if math.Abs(sched.Beta(24)-0.02) > 1e-12 {
		t.Errorf("last beta: got %v, want 0.02", sched.Beta(24))
	}
}

func TestBetasIncrease(t *testing.T) {
	for _, schedType := range []ScheduleType{Exponential, Cosine} {
		sched, err := NewSchedule(schedType, 25)
		if err != nil {
			t.Fatal(err)
		}

		for i := 1; i < sched.Steps(); i++ {
			if sched.Beta(i) <= sched.Beta(i-1) {
				t.Errorf("%v: beta[%d]=%v not greater than beta[%d]=%v",
					schedType, i, sched.Beta(i), i-1, sched.Beta(i-1))
			}
		}
	}
}

func TestAlphaBarDecreasesToNearZero(t *testing.T) {
	sched, err := NewCosine(50, 0.008)
	if err != nil {
		t.Fatal(err)
	}

	prev := 1.0
	for i := 0; i < sched.Steps(); i++ {
		ab := sched.AlphaBar(i)
		if ab >= prev {
			t.Fatalf("alphaBar[%d]=%v did not decrease from %v", i, ab,
				prev)
		}
		if ab <= 0 || ab > 1 {
			t.Fatalf("alphaBar[%d]=%v outside (0, 1]", i, ab)
		}
		prev = ab
	}

	if last := sched.AlphaBar(sched.Steps() - 1); last > 0.01 {
		t.Errorf("final alphaBar: got %v, want near zero", last)
	}
}

func TestForwardNoiseCoefficients(t *testing.T) {
	sched, err := NewExponential(10, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < sched.Steps(); i++ {
		a, b := sched.ForwardNoise(i)
		// a^2 + b^2 = alphaBar + (1 - alphaBar) = 1
		if math.Abs(a*a+b*b-1) > 1e-12 {
			t.Errorf("step %d: a^2+b^2 = %v, want 1", i, a*a+b*b)
		}
	}
}

func TestNewScheduleUnknownType(t *testing.T) {
	if _, err := NewSchedule("Linear", 25); err == nil {
		t.Error("expected an error for an unknown schedule type")
	}
}
