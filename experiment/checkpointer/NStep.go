package checkpointer

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	object   Serializable

	// filename returns the path of the file the next checkpoint is
	// saved to. Use FilenameEnumerator for numbered files or FileTimer
	// for timestamped files.
	filename func() string
}

// NewNStep returns a Checkpointer that saves object every n steps
func NewNStep(n int, object Serializable,
	filename func() string) Checkpointer {
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the tracked object if step falls on the interval
func (n *nStep) Checkpoint(step int) error {
	if step%n.interval == 0 {
		return write(n.filename(), n.object)
	}
	return nil
}
