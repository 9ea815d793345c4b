package experiment

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"diffmpc/agent"
	env "diffmpc/environment"
	"diffmpc/experiment/tracker"
	"diffmpc/utils/matutils"
)

// planCoster is a controller that prices its plans
type planCoster interface {
	PlanCost() float64
}

// sampleTimer is a controller that times its plan generation
type sampleTimer interface {
	SampleTime() time.Duration
}

// renderer is a plant that can draw itself
type renderer interface {
	Render(dir string, frame int) error
}

// MPC runs a receding-horizon control experiment: at every control
// tick the controller plans from the current observation and the
// first control of the plan is applied to the plant.
type MPC struct {
	sim        env.Simulator
	controller agent.Controller
	maxTicks   int
	trackers   []tracker.Tracker

	// renderDir enables frame rendering when non-empty
	renderDir   string
	renderEvery int

	finalDistance float64
	totalCost     float64
}

// NewMPC returns a new MPC experiment running controller against sim
// for at most maxTicks control ticks
func NewMPC(sim env.Simulator, controller agent.Controller,
	maxTicks int, trackers ...tracker.Tracker) (*MPC, error) {
	if maxTicks <= 0 {
		return nil, fmt.Errorf("newmpc: maxTicks must be positive "+
			"\n\thave(%v)", maxTicks)
	}

	return &MPC{
		sim:        sim,
		controller: controller,
		maxTicks:   maxTicks,
		trackers:   trackers,
	}, nil
}

// Render enables rendering a frame of the plant every renderEvery
// ticks into dir
func (m *MPC) Render(dir string, renderEvery int) error {
	if _, ok := m.sim.(renderer); !ok {
		return fmt.Errorf("render: plant cannot render itself")
	}
	if renderEvery <= 0 {
		return fmt.Errorf("render: renderEvery must be positive "+
			"\n\thave(%v)", renderEvery)
	}

	m.renderDir = dir
	m.renderEvery = renderEvery
	return nil
}

// Register adds a tracker to the experiment
func (m *MPC) Register(t tracker.Tracker) {
	m.trackers = append(m.trackers, t)
}

// Run runs the experiment until the plant ends the run or the tick
// limit is reached
func (m *MPC) Run() error {
	step := m.sim.Reset()
	m.totalCost = 0

	m.track(tracker.Tick{
		Step:     step,
		EEPos:    m.sim.EEPos(),
		Distance: m.distance(),
	})
	if err := m.render(0); err != nil {
		return fmt.Errorf("run: %v", err)
	}

	for tick := 1; tick <= m.maxTicks; tick++ {
		action, err := m.controller.SelectAction(step)
		if err != nil {
			return fmt.Errorf("run: tick %v: could not select action: %v",
				tick, err)
		}

		next, last := m.sim.Step(action)
		step = next
		m.totalCost += next.Cost

		t := tracker.Tick{
			Step:     next,
			Action:   action,
			EEPos:    m.sim.EEPos(),
			Distance: m.distance(),
		}
		if pc, ok := m.controller.(planCoster); ok {
			t.PlanCost = pc.PlanCost()
		}
		if st, ok := m.controller.(sampleTimer); ok {
			t.SampleTime = st.SampleTime().Seconds()
		}
		m.track(t)

		if err := m.render(tick); err != nil {
			return fmt.Errorf("run: %v", err)
		}

		if last {
			break
		}
	}

	m.finalDistance = m.distance()
	return nil
}

// Save writes all tracked data to disk
func (m *MPC) Save() error {
	for _, t := range m.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// FinalDistance returns the end-effector distance to target at the
// end of the run
func (m *MPC) FinalDistance() float64 {
	return m.finalDistance
}

// TotalCost returns the accumulated plant cost over the run
func (m *MPC) TotalCost() float64 {
	return m.totalCost
}

// track sends a tick to every registered tracker
func (m *MPC) track(t tracker.Tick) {
	for _, tr := range m.trackers {
		tr.Track(t)
	}
}

// render draws a frame of the plant when rendering is enabled
func (m *MPC) render(tick int) error {
	if m.renderDir == "" || tick%m.renderEvery != 0 {
		return nil
	}
	return m.sim.(renderer).Render(m.renderDir, tick/m.renderEvery)
}

// distance returns the current end-effector distance to the target
func (m *MPC) distance() float64 {
	ee := mat.NewVecDense(len(m.sim.EEPos()), m.sim.EEPos())
	diff := matutils.VecSub(ee, m.sim.Target())
	return mat.Norm(diff, 2)
}
