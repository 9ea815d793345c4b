// Trains the approximate-MPC network to imitate control trajectories
// collected from the diffusion controller. The dataset is standardized,
// split into training and validation sets, and fit with MSE under
// Adam. An exponential moving average of the weights is checkpointed
// alongside the live network.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"

	"diffmpc/dataset"
	"diffmpc/experiment/checkpointer"
	"diffmpc/initwfn"
	"diffmpc/network"
	"diffmpc/results"
	"diffmpc/solver"
	"diffmpc/trainer"
	"diffmpc/utils/plotutils"
)

func main() {
	data := flag.String("data", "dataset.bin", "imitation dataset")
	out := flag.String("out", "results", "base directory for run output")
	db := flag.String("db", "results/runs.db", "run metadata database")

	horizon := flag.Int("horizon", 128, "planned trajectory length")
	lr := flag.Float64("lr", 3e-3, "Adam step size")
	clip := flag.Float64("clip", 1.0, "gradient clip, non-positive disables")
	batch := flag.Int("batch", 512, "batch size")
	epochs := flag.Int("epochs", 100, "training epochs")
	trainFrac := flag.Float64("trainfrac", 0.9, "training split fraction")
	seed := flag.Uint64("seed", 192382, "random seed")
	flag.Parse()

	start := time.Now()

	// Load and standardize the dataset
	pairs, err := dataset.Load(*data)
	if err != nil {
		log.Fatalf("could not load dataset: %v", err)
	}
	log.Printf("loaded %v (condition, controls) pairs",
		humanize.Comma(int64(pairs.Len())))

	normalizer, err := dataset.NewNormalizer(pairs)
	if err != nil {
		log.Fatalf("could not fit normalizer: %v", err)
	}
	if err := normalizer.NormalizeDataset(pairs); err != nil {
		log.Fatalf("could not normalize dataset: %v", err)
	}

	train, val, err := pairs.Split(*trainFrac)
	if err != nil {
		log.Fatalf("could not split dataset: %v", err)
	}

	if pairs.ControlDims%*horizon != 0 {
		log.Fatalf("control dimension %v is not a multiple of horizon %v",
			pairs.ControlDims, *horizon)
	}
	actionDims := pairs.ControlDims / *horizon

	// Register a run and its output directory
	store, err := results.Open(*db)
	if err != nil {
		log.Fatalf("could not open run store: %v", err)
	}
	defer store.Close()

	conf := trainer.DefaultConfig()
	conf.BatchSize = *batch
	conf.Epochs = *epochs
	conf.ShowProgress = true

	confJSON, err := json.Marshal(conf)
	if err != nil {
		log.Fatalf("could not encode config: %v", err)
	}
	run, err := store.NewRun("train", string(confJSON), *out)
	if err != nil {
		log.Fatalf("could not register run: %v", err)
	}
	log.Printf("run %v writing to %v", run.ID, run.Dir)

	// The normalizer is saved with the run so inference can reuse the
	// statistics the network was trained under
	err = normalizer.Save(filepath.Join(run.Dir, "normalizer.bin"))
	if err != nil {
		log.Fatalf("could not save normalizer: %v", err)
	}

	// Build the network and the optimizer
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		log.Fatalf("could not create initializer: %v", err)
	}

	g := G.NewGraph()
	net, err := network.NewAMPCNet(pairs.ConditionDims, *batch, *horizon,
		actionDims, g, init.InitWFn())
	if err != nil {
		log.Fatalf("could not create network: %v", err)
	}

	sol, err := solver.NewAdam(*lr, 1e-8, 0.9, 0.999, *batch, *clip)
	if err != nil {
		log.Fatalf("could not create solver: %v", err)
	}

	// Checkpoint the live and EMA networks whenever the trainer calls
	// back. The trainer gates the cadence, so the checkpointers fire
	// on every call.
	var netCheck, emaCheck checkpointer.Checkpointer
	checkpoint := func(step int, _, _ network.NeuralNet) error {
		if err := netCheck.Checkpoint(step); err != nil {
			return err
		}
		return emaCheck.Checkpoint(step)
	}

	t, err := trainer.New(net, sol, conf, checkpoint)
	if err != nil {
		log.Fatalf("could not create trainer: %v", err)
	}
	defer t.Close()

	netCheck = checkpointer.NewNStep(1,
		t.Network().(checkpointer.Serializable),
		checkpointer.FilenameEnumerator(0,
			filepath.Join(run.Dir, "model"), ".bin"))
	emaCheck = checkpointer.NewNStep(1,
		t.EMANetwork().(checkpointer.Serializable),
		checkpointer.FilenameEnumerator(0,
			filepath.Join(run.Dir, "model_ema"), ".bin"))

	// Train
	rng := rand.New(rand.NewSource(*seed))
	err = t.Train(train, val, rng)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	// Final checkpoint of both networks
	if err := netCheck.Checkpoint(t.Steps()); err != nil {
		log.Fatalf("could not checkpoint network: %v", err)
	}
	if err := emaCheck.Checkpoint(t.Steps()); err != nil {
		log.Fatalf("could not checkpoint EMA network: %v", err)
	}

	// Plot the loss curves
	losses := t.TrainLoss()
	steps := make([]float64, len(losses))
	for i := range steps {
		steps[i] = float64(i + 1)
	}
	err = plotutils.SaveLinePlot(run.Dir, "train_loss.png",
		"Training Loss", "optimizer step", "MSE", steps, losses)
	if err != nil {
		log.Fatalf("could not plot training loss: %v", err)
	}

	valLosses, valSteps := t.ValidationLoss()
	if len(valLosses) > 0 {
		xs := make([]float64, len(valSteps))
		for i := range xs {
			xs[i] = float64(valSteps[i])
		}
		err = plotutils.SaveLinePlot(run.Dir, "validation_loss.png",
			"Validation Loss", "optimizer step", "MSE", xs, valLosses)
		if err != nil {
			log.Fatalf("could not plot validation loss: %v", err)
		}
	}

	// Record the run row. The cost columns hold the final losses.
	run.FinalDistance = math.NaN()
	run.TotalCost = losses[len(losses)-1]
	run.Steps = t.Steps()
	run.WallTime = time.Since(start)
	if err := store.Save(run); err != nil {
		log.Fatalf("could not save run: %v", err)
	}

	log.Printf("trained for %v optimizer steps in %v",
		humanize.Comma(int64(t.Steps())),
		run.WallTime.Round(time.Second))
	log.Printf("final training loss: %.6f", run.TotalCost)
}
