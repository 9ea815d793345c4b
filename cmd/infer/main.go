// Runs the receding-horizon diffusion controller against a simulated
// two-link arm. Every control tick samples a control trajectory from a
// trained denoising network conditioned on the plant state, prices it
// on a scratch rollout, and applies only the first control. The run's
// time series, plots and metadata are written to a timestamped
// directory under -out.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	G "gorgonia.org/gorgonia"

	"diffmpc/agent"
	"diffmpc/agent/ampc"
	"diffmpc/agent/diffmpc"
	"diffmpc/dataset"
	"diffmpc/diffusion"
	"diffmpc/environment/envconfig"
	"diffmpc/experiment"
	"diffmpc/experiment/checkpointer"
	"diffmpc/experiment/tracker"
	"diffmpc/initwfn"
	"diffmpc/network"
	"diffmpc/results"
	"diffmpc/utils/plotutils"
)

func main() {
	controllerName := flag.String("controller", "diffusion",
		"controller to run (diffusion or ampc)")
	model := flag.String("model", "denoiser.bin", "trained network")
	norm := flag.String("normalizer", "normalizer.bin", "dataset statistics")
	out := flag.String("out", "results", "base directory for run output")
	db := flag.String("db", "results/runs.db", "run metadata database")

	envName := flag.String("env", string(envconfig.Arm), "plant to control")
	taskName := flag.String("task", string(envconfig.Reach), "task to solve")
	targetX := flag.Float64("targetx", 1.0, "target x position")
	targetY := flag.Float64("targety", 1.0, "target y position")
	ticks := flag.Int("ticks", 200, "control ticks to run")
	controlRate := flag.Int("controlrate", 10, "physics frames per tick")

	horizon := flag.Int("horizon", 128, "planned trajectory length")
	steps := flag.Int("steps", 25, "diffusion denoising steps")
	schedule := flag.String("schedule", string(diffusion.Exponential),
		"variance schedule (Exponential or Cosine)")
	guidance := flag.Float64("guidance", 0.01, "classifier-free guidance weight")
	extraSteps := flag.Int("extrasteps", 5, "noise-free refinement steps")
	embedDims := flag.Int("embeddims", 16, "diffusion timestep embedding size")
	hidden := flag.String("hidden", "256,256,256", "denoiser hidden layer sizes")

	render := flag.Bool("render", false, "render frames of the run")
	renderEvery := flag.Int("renderevery", 5, "ticks between rendered frames")
	seed := flag.Uint64("seed", 192382, "random seed")
	flag.Parse()

	start := time.Now()

	// Create the plant
	conf := envconfig.Default()
	conf.Environment = envconfig.EnvName(*envName)
	conf.Task = envconfig.TaskName(*taskName)
	conf.ControlRate = *controlRate
	conf.EpisodeCutoff = *ticks
	conf.TargetX = *targetX
	conf.TargetY = *targetY

	sim, _, err := conf.Create(*seed)
	if err != nil {
		log.Fatalf("could not create plant: %v", err)
	}
	obsDims := sim.ObservationSpec().Shape.Len()
	actionDims := sim.ActionSpec().Shape.Len()

	// Load the dataset statistics and the trained denoiser
	normalizer, err := dataset.LoadNormalizer(*norm)
	if err != nil {
		log.Fatalf("could not load normalizer: %v", err)
	}

	var controller agent.Controller
	switch *controllerName {
	case "diffusion":
		net, err := loadDenoiser(*model, *horizon, actionDims, obsDims,
			*embedDims, parseSizes(*hidden))
		if err != nil {
			log.Fatalf("could not load denoiser: %v", err)
		}

		sched, err := diffusion.NewSchedule(
			diffusion.ScheduleType(*schedule), *steps)
		if err != nil {
			log.Fatalf("could not create schedule: %v", err)
		}

		trajectoryLen := *horizon * actionDims
		denoiser, err := diffusion.NewNetDenoiser(net, trajectoryLen,
			obsDims, *embedDims)
		if err != nil {
			log.Fatalf("could not create denoiser: %v", err)
		}

		sampler, err := diffusion.NewSampler(sched, denoiser, *guidance,
			*extraSteps, *seed+1)
		if err != nil {
			log.Fatalf("could not create sampler: %v", err)
		}

		controller, err = diffmpc.New(sim, sampler, normalizer, *horizon,
			actionDims, diffmpc.DefaultWeights(len(sim.EEPos())))
		if err != nil {
			log.Fatalf("could not create controller: %v", err)
		}

	case "ampc":
		net, err := loadAMPC(*model, obsDims, *horizon, actionDims)
		if err != nil {
			log.Fatalf("could not load imitation network: %v", err)
		}

		controller, err = ampc.New(net, normalizer, *horizon, actionDims,
			sim.ActionSpec().LowerBound.AtVec(0),
			sim.ActionSpec().UpperBound.AtVec(0))
		if err != nil {
			log.Fatalf("could not create controller: %v", err)
		}

	default:
		log.Fatalf("unknown controller %q", *controllerName)
	}
	defer controller.Close()

	// Register a run and its output directory
	store, err := results.Open(*db)
	if err != nil {
		log.Fatalf("could not open run store: %v", err)
	}
	defer store.Close()

	confJSON, err := json.Marshal(conf)
	if err != nil {
		log.Fatalf("could not encode config: %v", err)
	}
	run, err := store.NewRun("infer", string(confJSON), *out)
	if err != nil {
		log.Fatalf("could not register run: %v", err)
	}
	log.Printf("run %v writing to %v", run.ID, run.Dir)

	// Track per-tick series. Buffers are sized for the whole run up
	// front.
	n := *ticks + 1
	distance := tracker.NewSeries("distance",
		filepath.Join(run.Dir, "distance.bin"), n, true,
		tracker.DistanceSelector)
	planCost := tracker.NewSeries("planCost",
		filepath.Join(run.Dir, "plan_cost.bin"), n, true,
		tracker.PlanCostSelector)
	sampleTime := tracker.NewSeries("sampleTime",
		filepath.Join(run.Dir, "sample_time.bin"), n, true,
		tracker.SampleTimeSelector)
	cost := tracker.NewSeries("cost",
		filepath.Join(run.Dir, "cost.bin"), n, true, tracker.CostSelector)
	path := tracker.NewPath(filepath.Join(run.Dir, "ee_path.csv"), n)

	exp, err := experiment.NewMPC(sim, controller, *ticks, distance,
		planCost, sampleTime, cost, path)
	if err != nil {
		log.Fatalf("could not create experiment: %v", err)
	}

	// Joint angles come straight off the observation; the applied
	// control is absent on the reset tick.
	for i := 0; i < actionDims; i++ {
		exp.Register(tracker.NewSeries(fmt.Sprintf("q%d", i+1),
			filepath.Join(run.Dir, fmt.Sprintf("q%d.bin", i+1)), n, true,
			func(t tracker.Tick) float64 {
				return t.Step.Observation.AtVec(i)
			}))
		exp.Register(tracker.NewSeries(fmt.Sprintf("u%d", i+1),
			filepath.Join(run.Dir, fmt.Sprintf("u%d.bin", i+1)), n, true,
			func(t tracker.Tick) float64 {
				if t.Action == nil {
					return 0
				}
				return t.Action.AtVec(i)
			}))
	}

	if *render {
		err := exp.Render(filepath.Join(run.Dir, "frames"), *renderEvery)
		if err != nil {
			log.Fatalf("could not enable rendering: %v", err)
		}
	}

	// Run the control loop
	if err := runAndSave(exp); err != nil {
		log.Fatal(err)
	}

	// Plot the recorded series and the executed path
	if err := savePlots(run.Dir, distance, planCost, cost, path,
		sim.Target().AtVec(0), sim.Target().AtVec(1)); err != nil {
		log.Fatalf("could not save plots: %v", err)
	}

	// Record the run row
	run.FinalDistance = exp.FinalDistance()
	run.TotalCost = exp.TotalCost()
	run.Steps = *ticks
	run.WallTime = time.Since(start)
	if err := store.Save(run); err != nil {
		log.Fatalf("could not save run: %v", err)
	}

	log.Printf("ran %v control ticks in %v", humanize.Comma(int64(*ticks)),
		run.WallTime.Round(time.Millisecond))
	log.Printf("final distance to target: %v",
		humanize.SIWithDigits(run.FinalDistance, 3, "m"))
	log.Printf("total cost: %.4f", run.TotalCost)
}

// loadDenoiser constructs a denoising network of the given
// architecture and restores its weights from path. The architecture
// stored in the checkpoint replaces the constructed one on decode.
// runAndSave runs any experiment to completion and flushes its
// trackers
func runAndSave(e experiment.Experiment) error {
	if err := e.Run(); err != nil {
		return fmt.Errorf("run failed: %v", err)
	}
	if err := e.Save(); err != nil {
		return fmt.Errorf("could not save series: %v", err)
	}
	return nil
}

func loadDenoiser(path string, horizon, actionDims, obsDims, embedDims int,
	hidden []int) (network.NeuralNet, error) {
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		return nil, err
	}

	g := G.NewGraph()
	net, err := network.NewDenoiserNet(horizon, actionDims, obsDims,
		embedDims, 1, hidden, g, init.InitWFn())
	if err != nil {
		return nil, err
	}

	err = checkpointer.Load(path, net.(checkpointer.Serializable))
	if err != nil {
		return nil, err
	}
	return net, nil
}

// loadAMPC restores a trained imitation network and rebuilds it at
// batch size 1 for online control. Checkpoints carry the training
// batch size.
func loadAMPC(path string, features, horizon,
	actionDims int) (network.NeuralNet, error) {
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		return nil, err
	}

	g := G.NewGraph()
	net, err := network.NewAMPCNet(features, 1, horizon, actionDims, g,
		init.InitWFn())
	if err != nil {
		return nil, err
	}

	err = checkpointer.Load(path, net.(checkpointer.Serializable))
	if err != nil {
		return nil, err
	}

	if net.BatchSize() != 1 {
		return net.CloneWithBatch(1)
	}
	return net, nil
}

func savePlots(dir string, distance, planCost, cost *tracker.Series,
	path *tracker.Path, targetX, targetY float64) error {
	ticks := make([]float64, len(distance.Data()))
	for i := range ticks {
		ticks[i] = float64(i)
	}

	err := plotutils.SaveLinePlot(dir, "distance.png",
		"Distance to Target", "tick", "distance (m)", ticks,
		distance.Data())
	if err != nil {
		return err
	}
	err = plotutils.SaveLinePlot(dir, "plan_cost.png", "Plan Cost",
		"tick", "cost", ticks, planCost.Data())
	if err != nil {
		return err
	}
	err = plotutils.SaveLinePlot(dir, "cost.png", "Stage Cost", "tick",
		"cost", ticks, cost.Data())
	if err != nil {
		return err
	}

	xs, ys := path.XY()
	return plotutils.SavePathPlot(dir, "ee_path.png", xs, ys,
		[]float64{targetX, targetY})
}

// parseSizes parses a comma-separated list of layer sizes
func parseSizes(s string) []int {
	var sizes []int
	for _, field := range strings.Split(s, ",") {
		size, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || size <= 0 {
			log.Fatalf("invalid hidden layer size %q", field)
		}
		sizes = append(sizes, size)
	}
	return sizes
}
