package trainer

import (
	"testing"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"

	"diffmpc/dataset"
	"diffmpc/network"
	"diffmpc/solver"
)

// linearDataset builds pairs whose controls are a fixed linear map of
// the conditions, an easy target for the imitation loss
func linearDataset(t *testing.T, n, condDims, ctrlDims int,
	rng *rand.Rand) *dataset.Dataset {
	t.Helper()

	d, err := dataset.New(condDims, ctrlDims)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n; i++ {
		cond := make([]float64, condDims)
		for j := range cond {
			cond[j] = rng.NormFloat64()
		}
		ctrl := make([]float64, ctrlDims)
		for j := range ctrl {
			ctrl[j] = 0.5 * cond[j%condDims]
		}
		if err := d.Add(cond, ctrl); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func newTestTrainer(t *testing.T, conf Config,
	checkpoint CheckpointFn) *Trainer {
	t.Helper()

	g := G.NewGraph()
	net, err := network.NewMLP(3, conf.BatchSize, 6, g, []int{16},
		[]bool{true}, G.GlorotU(1.0),
		[]*network.Activation{network.TanH()})
	if err != nil {
		t.Fatal(err)
	}

	sol, err := solver.NewDefaultAdam(3e-3, conf.BatchSize)
	if err != nil {
		t.Fatal(err)
	}

	tr, err := New(net, sol, conf, checkpoint)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestTrainReducesLoss(t *testing.T) {
	conf := Config{
		BatchSize:      16,
		Epochs:         20,
		EMADecay:       0.995,
		EMAStartStep:   10,
		EMAUpdateEvery: 2,
	}
	tr := newTestTrainer(t, conf, nil)
	defer tr.Close()

	rng := rand.New(rand.NewSource(3))
	train := linearDataset(t, 160, 3, 6, rng)
	val := linearDataset(t, 32, 3, 6, rng)

	if err := tr.Train(train, val, rng); err != nil {
		t.Fatal(err)
	}

	losses := tr.TrainLoss()
	// 160 pairs at batch 16 gives 10 steps per epoch
	if len(losses) != 10*20 {
		t.Fatalf("loss series length: got %v, want %v", len(losses),
			10*20)
	}
	if losses[len(losses)-1] >= losses[0] {
		t.Errorf("loss did not decrease: first %v, last %v", losses[0],
			losses[len(losses)-1])
	}
}

func TestValidationAndCheckpointCadence(t *testing.T) {
	checkpoints := []int{}
	conf := Config{
		BatchSize:            16,
		Epochs:               4,
		EMADecay:             0.995,
		EMAStartStep:         5,
		EMAUpdateEvery:       2,
		ValidateEvery:        10,
		MaxValidationBatches: 1,
		CheckpointEvery:      15,
	}
	tr := newTestTrainer(t, conf,
		func(step int, net, ema network.NeuralNet) error {
			checkpoints = append(checkpoints, step)
			return nil
		})
	defer tr.Close()

	rng := rand.New(rand.NewSource(5))
	train := linearDataset(t, 160, 3, 6, rng)
	val := linearDataset(t, 32, 3, 6, rng)

	if err := tr.Train(train, val, rng); err != nil {
		t.Fatal(err)
	}

	// 40 total steps: validation at 10, 20, 30, 40 and checkpoints at
	// 15 and 30
	valLoss, valSteps := tr.ValidationLoss()
	if len(valLoss) != 4 {
		t.Errorf("validation count: got %v, want 4", len(valLoss))
	}
	for i, step := range valSteps {
		if step != 10*(i+1) {
			t.Errorf("validation step %d: got %v, want %v", i, step,
				10*(i+1))
		}
	}
	if len(checkpoints) != 2 || checkpoints[0] != 15 ||
		checkpoints[1] != 30 {
		t.Errorf("checkpoint steps: got %v, want [15 30]", checkpoints)
	}
}

func TestTrainRejectsSmallDataset(t *testing.T) {
	conf := Config{
		BatchSize:      64,
		Epochs:         1,
		EMADecay:       0.995,
		EMAStartStep:   5,
		EMAUpdateEvery: 2,
	}
	tr := newTestTrainer(t, conf, nil)
	defer tr.Close()

	rng := rand.New(rand.NewSource(5))
	small := linearDataset(t, 10, 3, 6, rng)

	if err := tr.Train(small, small, rng); err == nil {
		t.Error("expected an error for a dataset smaller than one batch")
	}
}

func TestEMAShadowTracksThenLags(t *testing.T) {
	g := G.NewGraph()
	net, err := network.NewMLP(2, 1, 2, g, []int{4}, []bool{true},
		G.GlorotU(1.0), []*network.Activation{network.TanH()})
	if err != nil {
		t.Fatal(err)
	}

	ema, err := NewEMA(net, 0.9, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Before startStep the shadow copies the network exactly
	if err := ema.Update(net); err != nil {
		t.Fatal(err)
	}

	shadow := ema.Network().Learnables()
	live := net.Learnables()
	for i := range live {
		got := shadow[i].Value().Data().([]float64)
		want := live[i].Value().Data().([]float64)
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("shadow should equal live weights before "+
					"startStep, learnable %v element %v", i, j)
			}
		}
	}

	if ema.Steps() != 1 {
		t.Errorf("steps: got %v, want 1", ema.Steps())
	}
}

// TestTrainSkipsValidationOnSmallSet ensures a validation set smaller
// than a batch does not abort training: the run completes, no
// validation losses are recorded, and checkpoints still fire.
func TestTrainSkipsValidationOnSmallSet(t *testing.T) {
	checkpoints := 0
	checkpoint := func(step int, net, ema network.NeuralNet) error {
		checkpoints++
		return nil
	}

	conf := Config{
		BatchSize:       16,
		Epochs:          4,
		EMADecay:        0.995,
		EMAStartStep:    10,
		EMAUpdateEvery:  2,
		ValidateEvery:   5,
		CheckpointEvery: 10,
	}
	tr := newTestTrainer(t, conf, checkpoint)
	defer tr.Close()

	rng := rand.New(rand.NewSource(9))
	train := linearDataset(t, 80, 3, 6, rng)
	val := linearDataset(t, 10, 3, 6, rng)

	if err := tr.Train(train, val, rng); err != nil {
		t.Fatalf("training aborted on a small validation set: %v", err)
	}

	if got := tr.Steps(); got != 20 {
		t.Errorf("wrong number of steps \n\twant(20) \n\thave(%v)", got)
	}
	if losses, _ := tr.ValidationLoss(); len(losses) != 0 {
		t.Errorf("validation should have been skipped \n\thave(%v "+
			"losses)", len(losses))
	}
	if checkpoints != 2 {
		t.Errorf("wrong number of checkpoints \n\twant(2) \n\thave(%v)",
			checkpoints)
	}
}
