package plotutils

import (
	"os"
	"path/filepath"
	"testing"
)

// TestSaveLinePlot ensures a line plot is written to disk
func TestSaveLinePlot(t *testing.T) {
	dir := t.TempDir()

	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{1.0, 0.8, 0.5, 0.3, 0.1}
	err := SaveLinePlot(dir, "cost.png", "Cost", "tick", "cost", xs, ys)
	if err != nil {
		t.Fatalf("could not save line plot: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "cost.png"))
	if err != nil {
		t.Fatalf("plot file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}
}

// TestSaveLinePlotRejectsMismatchedData ensures invalid inputs error
func TestSaveLinePlotRejectsMismatchedData(t *testing.T) {
	dir := t.TempDir()

	err := SaveLinePlot(dir, "bad.png", "Bad", "x", "y",
		[]float64{1, 2}, []float64{1})
	if err == nil {
		t.Error("expected an error for mismatched data lengths")
	}

	err = SaveLinePlot(dir, "empty.png", "Empty", "x", "y", nil, nil)
	if err == nil {
		t.Error("expected an error for empty data")
	}
}

// TestSavePathPlot ensures the end effector path plot is written
func TestSavePathPlot(t *testing.T) {
	dir := t.TempDir()

	xs := []float64{0.0, 0.3, 0.6, 0.9, 1.0}
	ys := []float64{1.8, 1.6, 1.4, 1.2, 1.0}
	err := SavePathPlot(dir, "path.png", xs, ys, []float64{1.0, 1.0})
	if err != nil {
		t.Fatalf("could not save path plot: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "path.png"))
	if err != nil {
		t.Fatalf("plot file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}

	err = SavePathPlot(dir, "bad.png", xs, ys, []float64{1.0})
	if err == nil {
		t.Error("expected an error for a non-planar target")
	}
}
