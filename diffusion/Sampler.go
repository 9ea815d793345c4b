package diffusion

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Denoiser predicts the noise added to a flattened control trajectory
// at diffusion step t. A nil context requests the unconditional
// prediction used by classifier-free guidance.
type Denoiser interface {
	Epsilon(trajectory, context []float64, t int) ([]float64, error)

	// Dims returns the length of the flattened trajectories the
	// Denoiser operates on
	Dims() int
}

// Sampler runs the reverse diffusion process. Each reverse step mixes
// the conditional and unconditional noise predictions of the denoiser
// with guidance weight w:
//
//	eps = (1+w)*eps_cond - w*eps_uncond
//
// After the noisy reverse steps, extraSteps additional denoising steps
// are run at t = 0 with no noise injected, sharpening the final
// iterate.
type Sampler struct {
	schedule       *Schedule
	denoiser       Denoiser
	guidanceWeight float64
	extraSteps     int

	rng *rand.Rand
}

// NewSampler returns a new Sampler
func NewSampler(schedule *Schedule, denoiser Denoiser,
	guidanceWeight float64, extraSteps int, seed uint64) (*Sampler,
	error) {
	if schedule == nil {
		return nil, fmt.Errorf("newsampler: schedule cannot be nil")
	}
	if denoiser == nil {
		return nil, fmt.Errorf("newsampler: denoiser cannot be nil")
	}
	if extraSteps < 0 {
		return nil, fmt.Errorf("newsampler: extraSteps cannot be "+
			"negative \n\thave(%v)", extraSteps)
	}

	return &Sampler{
		schedule:       schedule,
		denoiser:       denoiser,
		guidanceWeight: guidanceWeight,
		extraSteps:     extraSteps,
		rng:            rand.New(rand.NewSource(seed)),
	}, nil
}

// Sample draws a trajectory conditioned on context and returns the
// full chain of iterates, from the initial noise to the final
// denoised trajectory. The chain has Steps() + extraSteps + 1 entries
// and the last entry is the sample to use.
func (s *Sampler) Sample(context []float64) ([][]float64, error) {
	dims := s.denoiser.Dims()

	x := make([]float64, dims)
	for i := range x {
		x[i] = s.rng.NormFloat64()
	}

	chain := make([][]float64, 0, s.schedule.Steps()+s.extraSteps+1)
	chain = append(chain, clone(x))

	for t := s.schedule.Steps() - 1; t >= 0; t-- {
		next, err := s.reverseStep(x, context, t, t > 0)
		if err != nil {
			return nil, fmt.Errorf("sample: %v", err)
		}
		x = next
		chain = append(chain, clone(x))
	}

	// Noise-free refinement at the final step
	for i := 0; i < s.extraSteps; i++ {
		next, err := s.reverseStep(x, context, 0, false)
		if err != nil {
			return nil, fmt.Errorf("sample: %v", err)
		}
		x = next
		chain = append(chain, clone(x))
	}

	return chain, nil
}

// reverseStep runs one step of the reverse process at diffusion step t
func (s *Sampler) reverseStep(x, context []float64, t int,
	withNoise bool) ([]float64, error) {
	eps, err := s.guidedEpsilon(x, context, t)
	if err != nil {
		return nil, err
	}

	sched := s.schedule
	next := make([]float64, len(x))
	for i := range x {
		mean := sched.sqrtRecipAlphas[t] * (x[i] -
			sched.betas[t]/sched.sqrtOneMinusABars[t]*eps[i])
		next[i] = mean
		if withNoise {
			next[i] += sched.posteriorStdDevs[t] * s.rng.NormFloat64()
		}
	}

	return next, nil
}

// guidedEpsilon combines the conditional and unconditional noise
// predictions with the guidance weight
func (s *Sampler) guidedEpsilon(x, context []float64,
	t int) ([]float64, error) {
	cond, err := s.denoiser.Epsilon(x, context, t)
	if err != nil {
		return nil, fmt.Errorf("guidedepsilon: conditional pass: %v", err)
	}

	if s.guidanceWeight == 0 {
		return cond, nil
	}

	uncond, err := s.denoiser.Epsilon(x, nil, t)
	if err != nil {
		return nil, fmt.Errorf("guidedepsilon: unconditional pass: %v",
			err)
	}

	w := s.guidanceWeight
	eps := make([]float64, len(cond))
	for i := range eps {
		eps[i] = (1+w)*cond[i] - w*uncond[i]
	}
	return eps, nil
}

func clone(x []float64) []float64 {
	c := make([]float64, len(x))
	copy(c, x)
	return c
}
