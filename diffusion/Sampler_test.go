package diffusion

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"

	"diffmpc/network"
)

// scaleDenoiser is a fixed denoiser predicting noise proportional to
// the current iterate. It records whether it ever saw a nil context.
type scaleDenoiser struct {
	dims        int
	scale       float64
	uncondCalls int
	condCalls   int
}

func (s *scaleDenoiser) Epsilon(trajectory, context []float64,
	t int) ([]float64, error) {
	if context == nil {
		s.uncondCalls++
	} else {
		s.condCalls++
	}

	eps := make([]float64, len(trajectory))
	for i := range eps {
		eps[i] = s.scale * trajectory[i]
	}
	return eps, nil
}

func (s *scaleDenoiser) Dims() int { return s.dims }

func TestSampleChainLength(t *testing.T) {
	sched, err := NewExponential(25, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	denoiser := &scaleDenoiser{dims: 6, scale: 0.1}
	sampler, err := NewSampler(sched, denoiser, 0.01, 5, 17)
	if err != nil {
		t.Fatal(err)
	}

	chain, err := sampler.Sample(make([]float64, 4))
	if err != nil {
		t.Fatal(err)
	}

	if want := 25 + 5 + 1; len(chain) != want {
		t.Errorf("chain length: got %v, want %v", len(chain), want)
	}
	for i, iter := range chain {
		if len(iter) != 6 {
			t.Fatalf("iterate %d length: got %v, want 6", i, len(iter))
		}
	}
}

func TestSampleRunsUnconditionalPass(t *testing.T) {
	sched, err := NewExponential(10, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	denoiser := &scaleDenoiser{dims: 4, scale: 0.1}
	sampler, err := NewSampler(sched, denoiser, 0.01, 2, 17)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sampler.Sample(make([]float64, 3)); err != nil {
		t.Fatal(err)
	}

	wantCalls := 10 + 2
	if denoiser.condCalls != wantCalls {
		t.Errorf("conditional calls: got %v, want %v",
			denoiser.condCalls, wantCalls)
	}
	if denoiser.uncondCalls != wantCalls {
		t.Errorf("unconditional calls: got %v, want %v",
			denoiser.uncondCalls, wantCalls)
	}
}

func TestZeroGuidanceSkipsUnconditionalPass(t *testing.T) {
	sched, err := NewExponential(10, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	denoiser := &scaleDenoiser{dims: 4, scale: 0.1}
	sampler, err := NewSampler(sched, denoiser, 0.0, 0, 17)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sampler.Sample(make([]float64, 3)); err != nil {
		t.Fatal(err)
	}

	if denoiser.uncondCalls != 0 {
		t.Errorf("unconditional calls: got %v, want 0",
			denoiser.uncondCalls)
	}
}

func TestNoiseFreeStepsAreDeterministic(t *testing.T) {
	sched, err := NewExponential(5, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	// A denoiser that predicts exactly the scaled iterate makes the
	// noise-free refinement a fixed linear map, so running it on the
	// same iterate twice must give the same result
	denoiser := &scaleDenoiser{dims: 3, scale: 0.5}
	sampler, err := NewSampler(sched, denoiser, 0.0, 0, 91)
	if err != nil {
		t.Fatal(err)
	}

	x := []float64{0.3, -0.2, 1.1}
	a, err := sampler.reverseStep(x, nil, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := sampler.reverseStep(x, nil, 0, false)
	if err != nil {
		t.Fatal(err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Errorf("element %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestNetDenoiserShapes(t *testing.T) {
	g := G.NewGraph()
	net, err := network.NewDenoiserNet(4, 2, 8, 8, 1, []int{16}, g,
		G.GlorotU(1.0))
	if err != nil {
		t.Fatal(err)
	}

	denoiser, err := NewNetDenoiser(net, 8, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer denoiser.Close()

	if denoiser.Dims() != 8 {
		t.Errorf("dims: got %v, want 8", denoiser.Dims())
	}

	eps, err := denoiser.Epsilon(make([]float64, 8), make([]float64, 8),
		3)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 8 {
		t.Errorf("epsilon length: got %v, want 8", len(eps))
	}

	// Unconditional pass with a nil context
	if _, err := denoiser.Epsilon(make([]float64, 8), nil, 3); err != nil {
		t.Fatal(err)
	}
}

func TestTimeEmbedding(t *testing.T) {
	out := make([]float64, 8)
	TimeEmbedding(0, out)

	for i := 0; i < 4; i++ {
		if out[i] != 0 {
			t.Errorf("sin component %d at t=0: got %v, want 0", i, out[i])
		}
		if math.Abs(out[4+i]-1) > 1e-12 {
			t.Errorf("cos component %d at t=0: got %v, want 1", i,
				out[4+i])
		}
	}

	other := make([]float64, 8)
	TimeEmbedding(7, other)
	same := true
	for i := range out {
		if out[i] != other[i] {
			same = false
		}
	}
	if same {
		t.Error("embeddings of different steps should differ")
	}
}

// splitDenoiser predicts one fixed noise value on conditional passes
// and another on unconditional passes
type splitDenoiser struct {
	dims   int
	cond   float64
	uncond float64
}

func (s *splitDenoiser) Epsilon(trajectory, context []float64,
	t int) ([]float64, error) {
	v := s.cond
	if context == nil {
		v = s.uncond
	}
	eps := make([]float64, len(trajectory))
	for i := range eps {
		eps[i] = v
	}
	return eps, nil
}

func (s *splitDenoiser) Dims() int { return s.dims }

// TestGuidedEpsilonMixesPredictions checks that the conditional and
// unconditional noise predictions combine as (1+w)*cond - w*uncond
func TestGuidedEpsilonMixesPredictions(t *testing.T) {
	sched, err := NewExponential(10, 1e-4, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	const cond, uncond = 2.0, -1.0
	tests := []struct {
		weight float64
		want   float64
	}{
		{0.0, cond},
		{0.01, 1.01*cond - 0.01*uncond},
		{0.5, 1.5*cond - 0.5*uncond},
		{1.0, 2.0*cond - 1.0*uncond},
	}

	for _, test := range tests {
		denoiser := &splitDenoiser{dims: 4, cond: cond, uncond: uncond}
		sampler, err := NewSampler(sched, denoiser, test.weight, 0, 13)
		if err != nil {
			t.Fatal(err)
		}

		eps, err := sampler.guidedEpsilon(make([]float64, 4),
			make([]float64, 2), 3)
		if err != nil {
			t.Fatal(err)
		}

		for i := range eps {
			if math.Abs(eps[i]-test.want) > 1e-12 {
				t.Errorf("weight %v element %d: got %v, want %v",
					test.weight, i, eps[i], test.want)
			}
		}
	}
}
