package checkpointer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	G "gorgonia.org/gorgonia"

	"diffmpc/network"
)

func newTestNet(t *testing.T) network.NeuralNet {
	t.Helper()

	g := G.NewGraph()
	net, err := network.NewMLP(2, 1, 3, g, []int{4}, []bool{true},
		G.GlorotU(1.0), []*network.Activation{network.TanH()})
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func TestNStepSavesOnInterval(t *testing.T) {
	net := newTestNet(t)
	dir := t.TempDir()

	check := NewNStep(10, net.(Serializable),
		FilenameEnumerator(0, filepath.Join(dir, "model"), ".bin"))

	for step := 1; step <= 25; step++ {
		if err := check.Checkpoint(step); err != nil {
			t.Fatal(err)
		}
	}

	// Steps 10 and 20 fall on the interval
	for _, name := range []string{"model1.bin", "model2.bin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected checkpoint file %v: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "model3.bin")); err == nil {
		t.Error("unexpected third checkpoint file")
	}
}

func TestLoadRestoresNetwork(t *testing.T) {
	net := newTestNet(t)
	path := filepath.Join(t.TempDir(), "model.bin")

	check := NewNStep(1, net.(Serializable), func() string { return path })
	if err := check.Checkpoint(1); err != nil {
		t.Fatal(err)
	}

	restored := newTestNet(t)
	if err := Load(path, restored.(Serializable)); err != nil {
		t.Fatal(err)
	}

	want := net.Learnables()
	got := restored.Learnables()
	for i := range want {
		wantData := want[i].Value().Data().([]float64)
		gotData := got[i].Value().Data().([]float64)
		for j := range wantData {
			if gotData[j] != wantData[j] {
				t.Fatalf("learnable %v element %v: got %v, want %v", i,
					j, gotData[j], wantData[j])
			}
		}
	}
}

// TestFilenameHelpers checks the enumerated and timestamped filename
// generators
func TestFilenameHelpers(t *testing.T) {
	enum := FilenameEnumerator(0, "model", ".bin")
	if name := enum(); name != "model1.bin" {
		t.Errorf("wrong enumerated filename \n\twant(model1.bin) "+
			"\n\thave(%v)", name)
	}
	if name := enum(); name != "model2.bin" {
		t.Errorf("wrong enumerated filename \n\twant(model2.bin) "+
			"\n\thave(%v)", name)
	}

	timer := FileTimer("model", ".bin")
	name := timer()
	if !strings.HasPrefix(name, "model-") ||
		!strings.HasSuffix(name, ".bin") {
		t.Errorf("wrong timestamped filename format \n\thave(%v)", name)
	}
	if second := timer(); second == name {
		t.Error("consecutive timestamped filenames should differ")
	}
}
