// Package checkpointer implements periodic saving of serializable
// objects, keyed by optimizer or control step counts.
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Serializable is an object that can be saved with gob
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer saves serializable objects based on a step count
type Checkpointer interface {
	Checkpoint(step int) error
}

// write gob-encodes object to path, creating parent directories as
// needed
func write(path string, object Serializable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write: could not create directory: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write: could not create file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(object); err != nil {
		return fmt.Errorf("write: could not encode object: %v", err)
	}
	return nil
}

// Load gob-decodes the object saved at path into object
func Load(path string, object Serializable) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load: could not open file: %v", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(object); err != nil {
		return fmt.Errorf("load: could not decode object: %v", err)
	}
	return nil
}
