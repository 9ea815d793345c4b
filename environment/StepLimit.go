package environment

import "diffmpc/timestep"

// StepLimit ends runs at a fixed control-tick limit
type StepLimit struct {
	runSteps int
}

// NewStepLimit creates and returns a new step limit
func NewStepLimit(runSteps int) StepLimit {
	return StepLimit{runSteps}
}

// End determines whether or not the current run should end, returning
// a boolean to indicate termination. If the run should end, End
// modifies the timestep so that its StepType field is timestep.Last
func (s StepLimit) End(t *timestep.TimeStep) bool {
	if t.Number >= s.runSteps {
		t.StepType = timestep.Last
		return true
	}
	return false
}
