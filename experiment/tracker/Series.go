package tracker

import (
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Series tracks a single scalar per control tick, selected from the
// Tick by a selector function. The backing slice is preallocated for
// the expected run length so tracking never allocates during the run.
type Series struct {
	name     string
	filename string
	selector func(Tick) float64
	data     []float64

	// writeCSV additionally saves the series as a two-column CSV next
	// to the gob file
	writeCSV bool
}

// NewSeries returns a Series tracker saving to filename. The maxTicks
// parameter sizes the preallocated backing slice.
func NewSeries(name, filename string, maxTicks int,
	writeCSV bool, selector func(Tick) float64) *Series {
	return &Series{
		name:     name,
		filename: filename,
		selector: selector,
		data:     make([]float64, 0, maxTicks),
		writeCSV: writeCSV,
	}
}

// Common selectors for Series trackers
var (
	// CostSelector records the running cost reported by the plant
	CostSelector = func(t Tick) float64 { return t.Step.Cost }

	// DistanceSelector records the end-effector distance to target
	DistanceSelector = func(t Tick) float64 { return t.Distance }

	// PlanCostSelector records the quadratic cost of the applied plan
	PlanCostSelector = func(t Tick) float64 { return t.PlanCost }

	// SampleTimeSelector records the plan generation time in seconds
	SampleTimeSelector = func(t Tick) float64 { return t.SampleTime }
)

// Track records the selected scalar of the tick
func (s *Series) Track(t Tick) {
	s.data = append(s.data, s.selector(t))
}

// Data returns the recorded series
func (s *Series) Data() []float64 {
	return s.data
}

// Save writes the recorded series to disk with gob, and as CSV when
// configured
func (s *Series) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.filename), 0o755); err != nil {
		return fmt.Errorf("save: could not create directory: %v", err)
	}

	file, err := os.Create(s.filename)
	if err != nil {
		return fmt.Errorf("save: could not create data file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(s.data); err != nil {
		return fmt.Errorf("save: could not encode data: %v", err)
	}

	if s.writeCSV {
		csvName := s.filename + ".csv"
		if err := s.saveCSV(csvName); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}

	return nil
}

// saveCSV writes the series as a (tick, value) CSV file
func (s *Series) saveCSV(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create CSV file: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"tick", s.name}); err != nil {
		return fmt.Errorf("could not write CSV header: %v", err)
	}
	for i, v := range s.data {
		record := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(v, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("could not write CSV row %v: %v", i, err)
		}
	}

	return nil
}

// Path tracks the end-effector position per control tick and saves it
// as an (x, y) CSV, for plotting the executed trajectory
type Path struct {
	filename string
	xs       []float64
	ys       []float64
}

// NewPath returns a Path tracker saving to filename
func NewPath(filename string, maxTicks int) *Path {
	return &Path{
		filename: filename,
		xs:       make([]float64, 0, maxTicks),
		ys:       make([]float64, 0, maxTicks),
	}
}

// Track records the end-effector position of the tick
func (p *Path) Track(t Tick) {
	p.xs = append(p.xs, t.EEPos[0])
	p.ys = append(p.ys, t.EEPos[1])
}

// XY returns the recorded coordinates
func (p *Path) XY() (xs, ys []float64) {
	return p.xs, p.ys
}

// Save writes the recorded path as a two-column CSV
func (p *Path) Save() error {
	if err := os.MkdirAll(filepath.Dir(p.filename), 0o755); err != nil {
		return fmt.Errorf("save: could not create directory: %v", err)
	}

	f, err := os.Create(p.filename)
	if err != nil {
		return fmt.Errorf("save: could not create CSV file: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"x", "y"}); err != nil {
		return fmt.Errorf("save: could not write CSV header: %v", err)
	}
	for i := range p.xs {
		record := []string{
			strconv.FormatFloat(p.xs[i], 'g', -1, 64),
			strconv.FormatFloat(p.ys[i], 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("save: could not write CSV row %v: %v", i,
				err)
		}
	}

	return nil
}
