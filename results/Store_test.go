package results

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestSaveAndGet ensures that a saved run can be read back with its
// fields intact.
func TestSaveAndGet(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("could not open store: %v", err)
	}
	defer store.Close()

	run, err := store.NewRun("infer", `{"controlRate": 10}`, dir)
	if err != nil {
		t.Fatalf("could not create run: %v", err)
	}
	run.FinalDistance = 0.03
	run.TotalCost = 123.5
	run.Steps = 200
	run.WallTime = 42 * time.Second

	if err := store.Save(run); err != nil {
		t.Fatalf("could not save run: %v", err)
	}

	got, ok, err := store.Get(run.ID)
	if err != nil {
		t.Fatalf("could not get run: %v", err)
	}
	if !ok {
		t.Fatalf("run %v not found after save", run.ID)
	}

	if got.Kind != "infer" {
		t.Errorf("wrong kind \n\twant(infer) \n\thave(%v)", got.Kind)
	}
	if got.Config != run.Config {
		t.Errorf("wrong config \n\twant(%v) \n\thave(%v)", run.Config,
			got.Config)
	}
	if math.Abs(got.FinalDistance-0.03) > 1e-12 {
		t.Errorf("wrong final distance \n\twant(0.03) \n\thave(%v)",
			got.FinalDistance)
	}
	if got.Steps != 200 {
		t.Errorf("wrong steps \n\twant(200) \n\thave(%v)", got.Steps)
	}
	if got.WallTime != 42*time.Second {
		t.Errorf("wrong wall time \n\twant(42s) \n\thave(%v)", got.WallTime)
	}
}

// TestGetMissing ensures that looking up an unknown ID reports not
// found without an error.
func TestGetMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("could not open store: %v", err)
	}
	defer store.Close()

	_, ok, err := store.Get("no-such-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("found a run that was never saved")
	}
}

// TestListFiltersByKind ensures List returns only runs of the
// requested kind, newest first.
func TestListFiltersByKind(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("could not open store: %v", err)
	}
	defer store.Close()

	for _, kind := range []string{"train", "infer", "train"} {
		run, err := store.NewRun(kind, "{}", dir)
		if err != nil {
			t.Fatalf("could not create run: %v", err)
		}
		if err := store.Save(run); err != nil {
			t.Fatalf("could not save run: %v", err)
		}
	}

	trains, err := store.List("train")
	if err != nil {
		t.Fatalf("could not list runs: %v", err)
	}
	if len(trains) != 2 {
		t.Fatalf("wrong number of train runs \n\twant(2) \n\thave(%v)",
			len(trains))
	}
	for _, run := range trains {
		if run.Kind != "train" {
			t.Errorf("wrong kind in filtered list \n\twant(train) "+
				"\n\thave(%v)", run.Kind)
		}
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("could not list all runs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("wrong number of runs \n\twant(3) \n\thave(%v)", len(all))
	}
}

// TestRunDirName checks the timestamped directory naming
func TestRunDirName(t *testing.T) {
	started := time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)
	name := RunDirName("infer", "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		started)

	if name != "infer_2024-06-01_15-04-05_1b4e28ba" {
		t.Errorf("wrong run directory name "+
			"\n\twant(infer_2024-06-01_15-04-05_1b4e28ba) \n\thave(%v)",
			name)
	}
	if strings.ContainsAny(name, " :") {
		t.Errorf("run directory name contains unsafe characters: %v", name)
	}
}
