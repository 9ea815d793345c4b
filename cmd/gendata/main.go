// Collects an imitation dataset for the approximate-MPC network by
// running the diffusion controller and recording, for every control
// tick, the conditioning observation together with the full control
// trajectory the sampler produced for it. Pairs are stored raw; the
// training program fits its own statistics.
package main

import (
	"flag"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"diffmpc/agent"
	"diffmpc/agent/diffmpc"
	"diffmpc/dataset"
	"diffmpc/diffusion"
	"diffmpc/environment/envconfig"
	"diffmpc/experiment/checkpointer"
	"diffmpc/initwfn"
	"diffmpc/network"
	"diffmpc/utils/progressbar"
)

func main() {
	model := flag.String("model", "denoiser.bin", "trained denoiser network")
	norm := flag.String("normalizer", "normalizer.bin", "dataset statistics")
	out := flag.String("out", "dataset.bin", "output dataset file")

	envName := flag.String("env", string(envconfig.Arm), "plant to control")
	taskName := flag.String("task", string(envconfig.Reach), "task to solve")
	targetX := flag.Float64("targetx", 1.0, "target x position")
	targetY := flag.Float64("targety", 1.0, "target y position")
	episodes := flag.Int("episodes", 25, "episodes to collect")
	ticks := flag.Int("ticks", 200, "control ticks per episode")
	controlRate := flag.Int("controlrate", 10, "physics frames per tick")

	horizon := flag.Int("horizon", 128, "planned trajectory length")
	steps := flag.Int("steps", 25, "diffusion denoising steps")
	schedule := flag.String("schedule", string(diffusion.Exponential),
		"variance schedule (Exponential or Cosine)")
	guidance := flag.Float64("guidance", 0.01, "classifier-free guidance weight")
	extraSteps := flag.Int("extrasteps", 5, "noise-free refinement steps")
	embedDims := flag.Int("embeddims", 16, "diffusion timestep embedding size")
	hidden := flag.String("hidden", "256,256,256", "denoiser hidden layer sizes")

	seed := flag.Uint64("seed", 192382, "random seed")
	flag.Parse()

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

	net, err := loadDenoiser(*model, *horizon, actionDims, obsDims,
		*embedDims, parseSizes(*hidden))
	if err != nil {
		log.Fatalf("could not load denoiser: %v", err)
	}

	// Create the diffusion sampler and the controller
	sched, err := diffusion.NewSchedule(diffusion.ScheduleType(*schedule),
		*steps)
	if err != nil {
		log.Fatalf("could not create schedule: %v", err)
	}

	trajectoryLen := *horizon * actionDims
	denoiser, err := diffusion.NewNetDenoiser(net, trajectoryLen, obsDims,
		*embedDims)
	if err != nil {
		log.Fatalf("could not create denoiser: %v", err)
	}
	defer denoiser.Close()

	sampler, err := diffusion.NewSampler(sched, denoiser, *guidance,
		*extraSteps, *seed+1)
	if err != nil {
		log.Fatalf("could not create sampler: %v", err)
	}

	// Only the Planner surface is needed here: the action to advance
	// the plant and the full plan to record
	var planner agent.Planner
	planner, err = diffmpc.New(sim, sampler, normalizer, *horizon,
		actionDims, diffmpc.DefaultWeights(len(sim.EEPos())))
	if err != nil {
		log.Fatalf("could not create controller: %v", err)
	}
	defer planner.Close()

	// Collect pairs
	pairs, err := dataset.New(obsDims, trajectoryLen)
	if err != nil {
		log.Fatalf("could not create dataset: %v", err)
	}

	totalTicks := *episodes * *ticks
	pbar := progressbar.New(50, totalTicks, time.Second, false)
	pbar.Display()

	condition := make([]float64, obsDims)
	for ep := 0; ep < *episodes; ep++ {
		step := sim.Reset()

		for tick := 0; tick < *ticks; tick++ {
			action, err := planner.SelectAction(step)
			if err != nil {
				log.Fatalf("episode %v tick %v: could not plan: %v", ep,
					tick, err)
			}

			// The pair holds the raw observation the plan was
			// conditioned on and the unnormalized plan itself
			vecToSlice(step.Observation, condition)
			if err := pairs.Add(condition, planner.Plan()); err != nil {
				log.Fatalf("could not record pair: %v", err)
			}

			var last bool
			step, last = sim.Step(action)
			pbar.Increment()
			if last {
				break
			}
		}
	}
	pbar.Close()

	if err := pairs.Save(*out); err != nil {
		log.Fatalf("could not save dataset: %v", err)
	}
	log.Printf("saved %v (condition, controls) pairs to %v",
		humanize.Comma(int64(pairs.Len())), *out)
}

// loadDenoiser constructs a denoising network of the given
// architecture and restores its weights from path. The architecture
// stored in the checkpoint replaces the constructed one on decode.
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

func vecToSlice(v mat.Vector, out []float64) {
	for i := 0; i < v.Len(); i++ {
		out[i] = v.AtVec(i)
	}
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
