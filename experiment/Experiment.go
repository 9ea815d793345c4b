// Package experiment implements runners for control experiments. An
// experiment repeatedly asks a controller for an action, applies it to
// the plant, and records time series of the run through trackers.
package experiment

import (
	"diffmpc/experiment/tracker"
)

// Experiment runs a controller against a plant and records data
type Experiment interface {
	// Run runs the experiment to completion
	Run() error

	// Save writes all tracked data to disk
	Save() error

	// Register adds a tracker to the (possibly already running)
	// experiment
	Register(t tracker.Tracker)
}
