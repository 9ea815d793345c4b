// Package box2darm implements the planar two-link arm on top of the
// Box2D rigid-body engine instead of the closed-form dynamics of the
// arm package. The two links are dynamic rod bodies connected by
// revolute joints; torques are applied directly to the link bodies
// with the matching reaction torque on the parent link.
//
// Observations, actions, and the task interface are identical to the
// arm package, so the two plants are interchangeable behind
// environment.Simulator. The Box2D dynamics differ slightly from the
// closed-form equations (the engine resolves joints iteratively), so
// trajectories are similar but not bit-identical.
package box2darm

import (
	"fmt"
	"math"

	"github.com/ByteArena/box2d"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"diffmpc/environment"
	"diffmpc/environment/arm"
	"diffmpc/timestep"
	"diffmpc/utils/floatutils"
)

const (
	// linkThickness is the half-height of the rod fixtures
	linkThickness float64 = 0.05

	// velocityIterations and positionIterations are the Box2D
	// constraint solver iteration counts per physics frame
	velocityIterations int = 8
	positionIterations int = 3
)

// Box2DArm implements the planar two-link arm backed by a Box2D world.
// Box2DArm satisfies the environment.Simulator interface.
type Box2DArm struct {
	environment.Task
	frameSkip int

	world box2d.B2World
	base  *box2d.B2Body
	link1 *box2d.B2Body
	link2 *box2d.B2Body

	angleBounds r1.Interval
	velBounds   r1.Interval

	lastStep timestep.TimeStep
}

// New returns a new Box2DArm with the argument task registered
func New(t environment.Task, frameSkip int) (*Box2DArm, timestep.TimeStep,
	error) {
	if frameSkip <= 0 {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: frameSkip must "+
			"be positive \n\thave(%v)", frameSkip)
	}

	b := &Box2DArm{
		Task:        t,
		frameSkip:   frameSkip,
		angleBounds: r1.Interval{Min: arm.MinAngle, Max: arm.MaxAngle},
		velBounds:   r1.Interval{Min: arm.MinVel, Max: arm.MaxVel},
	}

	firstStep := b.Reset()

	return b, firstStep, nil
}

// Reset rebuilds the Box2D world at a starting state drawn from the
// task's Starter and returns the first timestep of the new run
func (b *Box2DArm) Reset() timestep.TimeStep {
	start := b.Start()
	if start.Len() != 2*arm.NumJoints {
		panic(fmt.Sprintf("reset: illegal start state length \n\twant(%v) "+
			"\n\thave(%v)", 2*arm.NumJoints, start.Len()))
	}

	qpos := []float64{start.AtVec(0), start.AtVec(1)}
	qvel := []float64{start.AtVec(2), start.AtVec(3)}
	b.buildWorld(qpos, qvel)

	firstStep := timestep.New(timestep.First, 0, b.observe(), 0)
	b.lastStep = firstStep

	return firstStep
}

// Step applies a torque vector to the joints and advances the world by
// one control tick (frameSkip physics frames)
func (b *Box2DArm) Step(action mat.Vector) (timestep.TimeStep, bool) {
	if action.Len() != arm.ActionDims {
		panic(fmt.Sprintf("step: invalid action dimensions \n\twant(%v) "+
			"\n\thave(%v)", arm.ActionDims, action.Len()))
	}

	tau1 := floatutils.Clip(action.AtVec(0), arm.MinTorque, arm.MaxTorque)
	tau2 := floatutils.Clip(action.AtVec(1), arm.MinTorque, arm.MaxTorque)

	for i := 0; i < b.frameSkip; i++ {
		// Shoulder torque drives link 1. The elbow torque drives
		// link 2 with the reaction applied back on link 1.
		b.link1.ApplyTorque(tau1-tau2, true)
		b.link2.ApplyTorque(tau2, true)

		b.world.Step(arm.DtPhysics, velocityIterations, positionIterations)
	}

	cost := b.Cost(b.lastStep.Observation, action, b.observe())
	nextStep := timestep.New(timestep.Mid, cost, b.observe(),
		b.lastStep.Number+1)
	b.End(&nextStep)

	b.lastStep = nextStep
	return nextStep, nextStep.Last()
}

// CurrentTimeStep returns the last TimeStep of the plant
func (b *Box2DArm) CurrentTimeStep() timestep.TimeStep {
	return b.lastStep
}

// State returns the current joint positions and velocities read back
// from the Box2D bodies
func (b *Box2DArm) State() (qpos, qvel []float64) {
	q1 := floatutils.WrapInterval(b.link1.GetAngle(), b.angleBounds)
	q2 := floatutils.WrapInterval(b.link2.GetAngle()-b.link1.GetAngle(),
		b.angleBounds)

	// Joint velocities share the closed-form arm's bounds so the two
	// plants agree on the observation space
	qd1 := floatutils.ClipInterval(b.link1.GetAngularVelocity(),
		b.velBounds)
	qd2 := floatutils.ClipInterval(
		b.link2.GetAngularVelocity()-b.link1.GetAngularVelocity(),
		b.velBounds)

	return []float64{q1, q2}, []float64{qd1, qd2}
}

// SetState rebuilds the world at the argument joint positions and
// velocities. This mirrors how the reference-tracking rollout
// reconstructs a fresh simulator from a state snapshot.
func (b *Box2DArm) SetState(qpos, qvel []float64) error {
	if len(qpos) != arm.NumJoints {
		return fmt.Errorf("setState: invalid position dimensions "+
			"\n\thave(%v) \n\twant(%v)", len(qpos), arm.NumJoints)
	}
	if len(qvel) != arm.NumJoints {
		return fmt.Errorf("setState: invalid velocity dimensions "+
			"\n\thave(%v) \n\twant(%v)", len(qvel), arm.NumJoints)
	}

	b.buildWorld(qpos, qvel)
	b.lastStep = timestep.New(timestep.First, 0, b.observe(), 0)
	return nil
}

// EEPos returns the current end-effector position
func (b *Box2DArm) EEPos() []float64 {
	qpos, _ := b.State()
	x, y := arm.EEPosition(arm.LinkLength1, arm.LinkLength2, qpos[0],
		qpos[1])
	return []float64{x, y}
}

// Copy returns an independent Box2DArm with the same task, parameters,
// and physical state. Box2D worlds cannot be deep-copied, so the copy
// is built as a fresh world at the current state.
func (b *Box2DArm) Copy() environment.Simulator {
	clone := &Box2DArm{
		Task:        b.Task,
		frameSkip:   b.frameSkip,
		angleBounds: b.angleBounds,
		velBounds:   b.velBounds,
	}

	qpos, qvel := b.State()
	clone.buildWorld(qpos, qvel)
	clone.lastStep = timestep.New(timestep.First, 0, clone.observe(), 0)
	return clone
}

// Dt returns the wall-clock duration of a single control tick
func (b *Box2DArm) Dt() float64 {
	return arm.DtPhysics * float64(b.frameSkip)
}

// ObservationSpec returns the observation specification of the plant
func (b *Box2DArm) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(arm.ObservationDims, nil)

	reach := arm.LinkLength1 + arm.LinkLength2
	eeVelBound := reach * 2 * arm.MaxVel

	lowerBound := mat.NewVecDense(arm.ObservationDims, []float64{
		arm.MinAngle, arm.MinAngle, arm.MinVel, arm.MinVel,
		-reach, -reach, -eeVelBound, -eeVelBound,
	})
	upperBound := mat.NewVecDense(arm.ObservationDims, []float64{
		arm.MaxAngle, arm.MaxAngle, arm.MaxVel, arm.MaxVel,
		reach, reach, eeVelBound, eeVelBound,
	})

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Continuous)
}

// ActionSpec returns the action specification of the plant
func (b *Box2DArm) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(arm.ActionDims, nil)
	lowerBound := mat.NewVecDense(arm.ActionDims,
		[]float64{arm.MinTorque, arm.MinTorque})
	upperBound := mat.NewVecDense(arm.ActionDims,
		[]float64{arm.MaxTorque, arm.MaxTorque})

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Continuous)
}

// observe constructs the 8-dimensional conditioning context from the
// Box2D world state
func (b *Box2DArm) observe() *mat.VecDense {
	qpos, qvel := b.State()

	x, y := arm.EEPosition(arm.LinkLength1, arm.LinkLength2, qpos[0],
		qpos[1])
	vx, vy := arm.EEVelocity(arm.LinkLength1, arm.LinkLength2, qpos[0],
		qpos[1], qvel[0], qvel[1])

	return mat.NewVecDense(arm.ObservationDims, []float64{
		qpos[0], qpos[1],
		qvel[0], qvel[1],
		x, y, vx, vy,
	})
}

// buildWorld constructs a fresh Box2D world holding the two-link arm
// at the argument joint state
func (b *Box2DArm) buildWorld(qpos, qvel []float64) {
	b.world = box2d.MakeB2World(box2d.MakeB2Vec2(0, -arm.Gravity))

	// Static base the first link hinges on. The base only anchors the
	// shoulder joint so it carries no fixture.
	baseDef := box2d.NewB2BodyDef()
	baseDef.Position.Set(0, 0)
	b.base = b.world.CreateBody(baseDef)

	q1 := qpos[0]
	q12 := qpos[0] + qpos[1]
	qd1 := qvel[0]
	qd12 := qvel[0] + qvel[1]

	s1, c1 := math.Sincos(q1)
	s12, c12 := math.Sincos(q12)

	// Link 1: rod with its centre of mass at LinkCOMPos1 along the
	// link direction
	b.link1 = b.makeLink(
		arm.LinkCOMPos1*c1, arm.LinkCOMPos1*s1, q1,
		arm.LinkLength1, arm.LinkMass1,
	)
	b.link1.SetAngularVelocity(qd1)
	b.link1.SetLinearVelocity(box2d.MakeB2Vec2(
		-qd1*arm.LinkCOMPos1*s1,
		qd1*arm.LinkCOMPos1*c1,
	))

	// Link 2
	l2x := arm.LinkLength1*c1 + arm.LinkCOMPos2*c12
	l2y := arm.LinkLength1*s1 + arm.LinkCOMPos2*s12
	b.link2 = b.makeLink(l2x, l2y, q12, arm.LinkLength2, arm.LinkMass2)
	b.link2.SetAngularVelocity(qd12)
	b.link2.SetLinearVelocity(box2d.MakeB2Vec2(
		-qd1*arm.LinkLength1*s1-qd12*arm.LinkCOMPos2*s12,
		qd1*arm.LinkLength1*c1+qd12*arm.LinkCOMPos2*c12,
	))

	// Shoulder joint at the base
	shoulder := box2d.MakeB2RevoluteJointDef()
	shoulder.Initialize(b.base, b.link1, box2d.MakeB2Vec2(0, 0))
	b.world.CreateJoint(&shoulder)

	// Elbow joint between the links
	elbow := box2d.MakeB2RevoluteJointDef()
	elbow.Initialize(b.link1, b.link2,
		box2d.MakeB2Vec2(arm.LinkLength1*c1, arm.LinkLength1*s1))
	b.world.CreateJoint(&elbow)
}

// makeLink creates a single rod body centred at (cx, cy) with the
// given orientation, length, and mass
func (b *Box2DArm) makeLink(cx, cy, angle, length,
	mass float64) *box2d.B2Body {
	def := box2d.NewB2BodyDef()
	def.Type = box2d.B2BodyType.B2_dynamicBody
	def.Position.Set(cx, cy)
	def.Angle = angle
	def.AngularDamping = arm.JointDamping
	body := b.world.CreateBody(def)

	shape := box2d.NewB2PolygonShape()
	shape.SetAsBox(length/2, linkThickness)

	fix := box2d.MakeB2FixtureDef()
	fix.Shape = shape
	fix.Density = mass / (length * 2 * linkThickness)
	filter := box2d.MakeB2Filter()
	filter.GroupIndex = -1 // Links never collide with each other
	fix.Filter = filter
	body.CreateFixtureFromDef(&fix)

	return body
}
