// Package arm implements a torque-controlled planar two-link arm. The
// arm hangs in a vertical plane under gravity. Both joints are
// actuated, making this the fully-actuated cousin of the classic
// acrobot.
//
// State observations are 8-dimensional vectors consisting of the
// following features:
//
//	v⃗ = [q1, q2, q̇1, q̇2, x, y, ẋ, ẏ], where:
//	q1 = angle of the first link measured from the positive x-axis
//	q2 = angle of the second link measured relative to the first
//	q̇1, q̇2 = joint angular velocities
//	x, y = end-effector position from forward kinematics
//	ẋ, ẏ = end-effector velocity J(q)·q̇
//
// This layout is exactly the conditioning context consumed by the
// diffusion sampler, so an observation can be fed to the sampler
// without reshaping.
//
// Actions are 2-dimensional continuous torque vectors, one torque per
// joint. Torques are clipped to [MinTorque, MaxTorque] element-wise
// before being sent to the integrator, but costs are calculated based
// on the unclipped actions. Each call to Step integrates the dynamics
// for FrameSkip RK4 substeps of DtPhysics seconds, so one control tick
// spans FrameSkip physics frames.
package arm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"diffmpc/environment"
	"diffmpc/timestep"
	"diffmpc/utils/floatutils"
)

const (
	// Physical constants
	LinkLength1  float64 = 1.0 // Metres, length of link 1
	LinkLength2  float64 = 1.0 // Metres, length of link 2
	LinkMass1    float64 = 1.0 // Kg, mass of link 1
	LinkMass2    float64 = 1.0 // Kg, mass of link 2
	LinkCOMPos1  float64 = 0.5 // Metres, centre of mass link 1
	LinkCOMPos2  float64 = 0.5 // Metres, centre of mass link 2
	JointDamping float64 = 0.1
	Gravity      float64 = 9.8

	MaxVel    float64 = 8.0
	MinVel    float64 = -MaxVel
	MaxAngle  float64 = math.Pi
	MinAngle  float64 = -MaxAngle
	MaxTorque float64 = 10.0
	MinTorque float64 = -MaxTorque

	// Environment constants
	NumJoints       int = 2
	ObservationDims int = 8
	ActionDims      int = NumJoints

	// DtPhysics is the integration step of a single physics frame
	DtPhysics float64 = 0.01
)

// Moments of inertia of each link about its centre of mass, modelling
// the links as uniform rods
var (
	linkInertia1 = LinkMass1 * LinkLength1 * LinkLength1 / 12.0
	linkInertia2 = LinkMass2 * LinkLength2 * LinkLength2 / 12.0
)

// Arm implements the planar two-link arm plant. Arm satisfies the
// environment.Simulator interface.
type Arm struct {
	environment.Task
	frameSkip int

	qpos [NumJoints]float64
	qvel [NumJoints]float64

	angleBounds r1.Interval
	velBounds   r1.Interval

	lastStep timestep.TimeStep
}

// New returns a new Arm with the argument task registered. The
// frameSkip argument controls how many physics frames a single
// control tick spans.
func New(t environment.Task, frameSkip int) (*Arm, timestep.TimeStep,
	error) {
	if frameSkip <= 0 {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: frameSkip must "+
			"be positive \n\thave(%v)", frameSkip)
	}

	a := &Arm{
		Task:        t,
		frameSkip:   frameSkip,
		angleBounds: r1.Interval{Min: MinAngle, Max: MaxAngle},
		velBounds:   r1.Interval{Min: MinVel, Max: MaxVel},
	}

	firstStep := a.Reset()

	return a, firstStep, nil
}

// Reset resets the plant, drawing new starting joint positions and
// velocities from the task's Starter, and returns the first timestep
// of the new run
func (a *Arm) Reset() timestep.TimeStep {
	start := a.Start()
	if start.Len() != 2*NumJoints {
		panic(fmt.Sprintf("reset: illegal start state length \n\twant(%v) "+
			"\n\thave(%v)", 2*NumJoints, start.Len()))
	}

	for i := 0; i < NumJoints; i++ {
		a.qpos[i] = start.AtVec(i)
		a.qvel[i] = start.AtVec(NumJoints + i)
	}

	firstStep := timestep.New(timestep.First, 0, a.observe(), 0)
	a.lastStep = firstStep

	return firstStep
}

// Step applies a torque vector to the joints and advances the
// simulation by one control tick (frameSkip physics frames). The
// returned bool indicates whether the run has hit its tick limit.
func (a *Arm) Step(action mat.Vector) (timestep.TimeStep, bool) {
	if action.Len() != ActionDims {
		panic(fmt.Sprintf("step: invalid action dimensions \n\twant(%v) "+
			"\n\thave(%v)", ActionDims, action.Len()))
	}

	// Clip the torques sent to the integrator. The cost below is
	// computed with the unclipped action.
	tau1 := floatutils.Clip(action.AtVec(0), MinTorque, MaxTorque)
	tau2 := floatutils.Clip(action.AtVec(1), MinTorque, MaxTorque)

	for i := 0; i < a.frameSkip; i++ {
		a.advance(tau1, tau2)
	}

	cost := a.Cost(a.lastStep.Observation, action, a.observe())
	nextStep := timestep.New(timestep.Mid, cost, a.observe(),
		a.lastStep.Number+1)
	a.End(&nextStep)

	a.lastStep = nextStep
	return nextStep, nextStep.Last()
}

// CurrentTimeStep returns the last TimeStep of the plant
func (a *Arm) CurrentTimeStep() timestep.TimeStep {
	return a.lastStep
}

// State returns copies of the current joint positions and velocities
func (a *Arm) State() (qpos, qvel []float64) {
	qpos = make([]float64, NumJoints)
	qvel = make([]float64, NumJoints)
	copy(qpos, a.qpos[:])
	copy(qvel, a.qvel[:])
	return
}

// SetState overwrites the joint positions and velocities
func (a *Arm) SetState(qpos, qvel []float64) error {
	if len(qpos) != NumJoints {
		return fmt.Errorf("setState: invalid position dimensions "+
			"\n\thave(%v) \n\twant(%v)", len(qpos), NumJoints)
	}
	if len(qvel) != NumJoints {
		return fmt.Errorf("setState: invalid velocity dimensions "+
			"\n\thave(%v) \n\twant(%v)", len(qvel), NumJoints)
	}

	copy(a.qpos[:], qpos)
	copy(a.qvel[:], qvel)
	a.lastStep = timestep.New(timestep.First, 0, a.observe(), 0)
	return nil
}

// EEPos returns the current end-effector position
func (a *Arm) EEPos() []float64 {
	x, y := EEPosition(LinkLength1, LinkLength2, a.qpos[0], a.qpos[1])
	return []float64{x, y}
}

// Copy returns an independent arm with the same task, parameters, and
// physical state. The returned simulator shares no mutable state with
// the receiver, so it can be stepped freely in rollouts.
func (a *Arm) Copy() environment.Simulator {
	clone := &Arm{
		Task:        a.Task,
		frameSkip:   a.frameSkip,
		qpos:        a.qpos,
		qvel:        a.qvel,
		angleBounds: a.angleBounds,
		velBounds:   a.velBounds,
	}
	clone.lastStep = timestep.New(timestep.First, 0, clone.observe(), 0)
	return clone
}

// Dt returns the wall-clock duration of a single control tick
func (a *Arm) Dt() float64 {
	return DtPhysics * float64(a.frameSkip)
}

// ObservationSpec returns the observation specification of the plant
func (a *Arm) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	reach := LinkLength1 + LinkLength2
	eeVelBound := reach * 2 * MaxVel

	lowerBound := mat.NewVecDense(ObservationDims, []float64{
		MinAngle, MinAngle, MinVel, MinVel,
		-reach, -reach, -eeVelBound, -eeVelBound,
	})
	upperBound := mat.NewVecDense(ObservationDims, []float64{
		MaxAngle, MaxAngle, MaxVel, MaxVel,
		reach, reach, eeVelBound, eeVelBound,
	})

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Continuous)
}

// ActionSpec returns the action specification of the plant
func (a *Arm) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims,
		[]float64{MinTorque, MinTorque})
	upperBound := mat.NewVecDense(ActionDims,
		[]float64{MaxTorque, MaxTorque})

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Continuous)
}

// String converts the plant to a string representation
func (a *Arm) String() string {
	str := "Arm  |  q: (%.4f, %.4f)  |  q̇: (%.4f, %.4f)"
	return fmt.Sprintf(str, a.qpos[0], a.qpos[1], a.qvel[0], a.qvel[1])
}

// observe constructs the full 8-dimensional conditioning context from
// the current physical state
func (a *Arm) observe() *mat.VecDense {
	x, y := EEPosition(LinkLength1, LinkLength2, a.qpos[0], a.qpos[1])
	vx, vy := EEVelocity(LinkLength1, LinkLength2, a.qpos[0], a.qpos[1],
		a.qvel[0], a.qvel[1])

	return mat.NewVecDense(ObservationDims, []float64{
		a.qpos[0], a.qpos[1],
		a.qvel[0], a.qvel[1],
		x, y, vx, vy,
	})
}

// advance integrates the equations of motion for a single physics
// frame using classic RK4
func (a *Arm) advance(tau1, tau2 float64) {
	s := [4]float64{a.qpos[0], a.qpos[1], a.qvel[0], a.qvel[1]}

	k1 := dynamics(s, tau1, tau2)
	k2 := dynamics(addScaled(s, k1, 0.5*DtPhysics), tau1, tau2)
	k3 := dynamics(addScaled(s, k2, 0.5*DtPhysics), tau1, tau2)
	k4 := dynamics(addScaled(s, k3, DtPhysics), tau1, tau2)

	for i := 0; i < 4; i++ {
		s[i] += (DtPhysics / 6.0) * (k1[i] + 2.0*k2[i] + 2.0*k3[i] + k4[i])
	}

	a.qpos[0] = floatutils.WrapInterval(s[0], a.angleBounds)
	a.qpos[1] = floatutils.WrapInterval(s[1], a.angleBounds)
	a.qvel[0] = floatutils.ClipInterval(s[2], a.velBounds)
	a.qvel[1] = floatutils.ClipInterval(s[3], a.velBounds)
}

// addScaled returns s + h·k element-wise
func addScaled(s, k [4]float64, h float64) [4]float64 {
	var out [4]float64
	for i := range s {
		out[i] = s[i] + h*k[i]
	}
	return out
}

// dynamics computes the time derivative of the state
// [q1, q2, q̇1, q̇2] under joint torques tau1 and tau2, using the
// standard manipulator equations M(q)q̈ + c(q, q̇) + g(q) + bq̇ = τ
func dynamics(s [4]float64, tau1, tau2 float64) [4]float64 {
	q2 := s[1]
	qd1, qd2 := s[2], s[3]

	s2, c2 := math.Sincos(q2)

	// Mass matrix
	m11 := LinkMass1*LinkCOMPos1*LinkCOMPos1 +
		LinkMass2*(LinkLength1*LinkLength1+LinkCOMPos2*LinkCOMPos2+
			2*LinkLength1*LinkCOMPos2*c2) +
		linkInertia1 + linkInertia2
	m12 := LinkMass2*(LinkCOMPos2*LinkCOMPos2+
		LinkLength1*LinkCOMPos2*c2) + linkInertia2
	m22 := LinkMass2*LinkCOMPos2*LinkCOMPos2 + linkInertia2

	// Coriolis and centrifugal terms
	h := -LinkMass2 * LinkLength1 * LinkCOMPos2 * s2
	c1 := h * (2*qd1*qd2 + qd2*qd2)
	cc2 := -h * qd1 * qd1

	// Gravity terms; angles measured from the positive x-axis with
	// gravity along -y
	g1 := (LinkMass1*LinkCOMPos1+LinkMass2*LinkLength1)*Gravity*
		math.Cos(s[0]) +
		LinkMass2*LinkCOMPos2*Gravity*math.Cos(s[0]+q2)
	g2 := LinkMass2 * LinkCOMPos2 * Gravity * math.Cos(s[0]+q2)

	// Generalized forces after damping
	f1 := tau1 - c1 - g1 - JointDamping*qd1
	f2 := tau2 - cc2 - g2 - JointDamping*qd2

	// Solve the 2x2 system M q̈ = f
	det := m11*m22 - m12*m12
	qdd1 := (m22*f1 - m12*f2) / det
	qdd2 := (m11*f2 - m12*f1) / det

	return [4]float64{qd1, qd2, qdd1, qdd2}
}
