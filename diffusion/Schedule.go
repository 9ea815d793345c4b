// Package diffusion implements denoising diffusion over flattened
// control trajectories. A Schedule fixes the variance schedule of the
// forward noising process, and a Sampler runs the reverse process with
// classifier-free guidance to draw trajectories conditioned on a plant
// observation.
package diffusion

import (
	"fmt"
	"math"
)

// ScheduleType names the available variance schedules
type ScheduleType string

const (
	Exponential ScheduleType = "Exponential"
	Cosine      ScheduleType = "Cosine"
)

// Default exponential schedule endpoints
const (
	DefaultBetaStart float64 = 1e-4
	DefaultBetaEnd   float64 = 0.02
)

// Schedule holds a variance schedule and the terms derived from it
// that the reverse process needs. All slices have one entry per
// diffusion step.
type Schedule struct {
	scheduleType ScheduleType
	steps        int

	betas     []float64
	alphas    []float64
	alphaBars []float64

	sqrtRecipAlphas   []float64
	sqrtOneMinusABars []float64
	posteriorStdDevs  []float64
}

// NewExponential returns a Schedule whose betas are log-linearly
// spaced between betaStart and betaEnd
func NewExponential(steps int, betaStart, betaEnd float64) (*Schedule,
	error) {
	if steps <= 0 {
		return nil, fmt.Errorf("newexponential: steps must be positive "+
			"\n\thave(%v)", steps)
	}
	if betaStart <= 0 || betaEnd <= betaStart {
		return nil, fmt.Errorf("newexponential: need 0 < betaStart < "+
			"betaEnd \n\thave(%v, %v)", betaStart, betaEnd)
	}

	betas := make([]float64, steps)
	logStart, logEnd := math.Log(betaStart), math.Log(betaEnd)
	for t := 0; t < steps; t++ {
		frac := 0.0
		if steps > 1 {
			frac = float64(t) / float64(steps-1)
		}
		betas[t] = math.Exp(logStart + frac*(logEnd-logStart))
	}

	return newSchedule(Exponential, betas), nil
}

// NewCosine returns a Schedule following the cosine alpha-bar curve
// with offset s. Betas are capped at 0.999 to keep the reverse process
// stable near the end of the chain.
func NewCosine(steps int, s float64) (*Schedule, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("newcosine: steps must be positive "+
			"\n\thave(%v)", steps)
	}
	if s <= 0 {
		return nil, fmt.Errorf("newcosine: offset must be positive "+
			"\n\thave(%v)", s)
	}

	alphaBar := func(t float64) float64 {
		x := (t/float64(steps) + s) / (1 + s) * math.Pi / 2
		return math.Cos(x) * math.Cos(x)
	}

	betas := make([]float64, steps)
	for t := 0; t < steps; t++ {
		beta := 1 - alphaBar(float64(t+1))/alphaBar(float64(t))
		betas[t] = math.Min(beta, 0.999)
	}

	return newSchedule(Cosine, betas), nil
}

// NewSchedule returns the Schedule of the named type with default
// parameters
func NewSchedule(t ScheduleType, steps int) (*Schedule, error) {
	switch t {
	case Exponential:
		return NewExponential(steps, DefaultBetaStart, DefaultBetaEnd)

	case Cosine:
		return NewCosine(steps, 0.008)
	}

	return nil, fmt.Errorf("newschedule: no such schedule type %v", t)
}

func newSchedule(t ScheduleType, betas []float64) *Schedule {
	steps := len(betas)
	sched := &Schedule{
		scheduleType:      t,
		steps:             steps,
		betas:             betas,
		alphas:            make([]float64, steps),
		alphaBars:         make([]float64, steps),
		sqrtRecipAlphas:   make([]float64, steps),
		sqrtOneMinusABars: make([]float64, steps),
		posteriorStdDevs:  make([]float64, steps),
	}

	alphaBar := 1.0
	for i, beta := range betas {
		alpha := 1 - beta
		prevAlphaBar := alphaBar
		alphaBar *= alpha

		sched.alphas[i] = alpha
		sched.alphaBars[i] = alphaBar
		sched.sqrtRecipAlphas[i] = 1 / math.Sqrt(alpha)
		sched.sqrtOneMinusABars[i] = math.Sqrt(1 - alphaBar)
		sched.posteriorStdDevs[i] = math.Sqrt(beta * (1 - prevAlphaBar) /
			(1 - alphaBar))
	}

	return sched
}

// Steps returns the number of diffusion steps in the schedule
func (s *Schedule) Steps() int {
	return s.steps
}

// Type returns the type of the schedule
func (s *Schedule) Type() ScheduleType {
	return s.scheduleType
}

// Beta returns the forward process variance at step t
func (s *Schedule) Beta(t int) float64 {
	return s.betas[t]
}

// AlphaBar returns the cumulative product of alphas through step t
func (s *Schedule) AlphaBar(t int) float64 {
	return s.alphaBars[t]
}

// ForwardNoise returns the coefficients of the closed-form forward
// process at step t: x_t = a*x_0 + b*eps with eps standard normal
func (s *Schedule) ForwardNoise(t int) (a, b float64) {
	return math.Sqrt(s.alphaBars[t]), s.sqrtOneMinusABars[t]
}
