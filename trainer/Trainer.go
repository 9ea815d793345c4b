// Package trainer implements the supervised imitation loop for the
// one-shot approximate controller. The network is trained with MSE to
// reproduce normalized control trajectories from their conditioning
// observations, with an EMA shadow model, periodic validation, and
// periodic checkpointing.
package trainer

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"diffmpc/dataset"
	"diffmpc/network"
	"diffmpc/solver"
	"diffmpc/utils/progressbar"
)

// Config holds the hyperparameters of a training run
type Config struct {
	BatchSize int
	Epochs    int

	EMADecay       float64
	EMAStartStep   int
	EMAUpdateEvery int

	// ValidateEvery is the number of optimizer steps between
	// validation passes. Non-positive disables validation.
	ValidateEvery int

	// MaxValidationBatches caps the number of batches of a validation
	// pass. Non-positive means the whole validation set.
	MaxValidationBatches int

	// CheckpointEvery is the number of optimizer steps between
	// checkpoint callbacks. Non-positive disables checkpointing.
	CheckpointEvery int

	// ShowProgress draws a progress bar over the optimizer steps of
	// the run
	ShowProgress bool
}

// DefaultConfig returns the training hyperparameters used throughout
// this module
func DefaultConfig() Config {
	return Config{
		BatchSize:            512,
		Epochs:               100,
		EMADecay:             0.995,
		EMAStartStep:         1000,
		EMAUpdateEvery:       10,
		ValidateEvery:        500,
		MaxValidationBatches: 10,
		CheckpointEvery:      2000,
	}
}

// CheckpointFn is called periodically with the current training and
// EMA networks
type CheckpointFn func(step int, net, ema network.NeuralNet) error

// Trainer runs the imitation loop on a network
type Trainer struct {
	conf   Config
	net    network.NeuralNet
	ema    *EMA
	solver *solver.Solver

	targets *G.Node
	lossVal G.Value
	vm      G.VM

	steps      int
	trainLoss  []float64
	valLoss    []float64
	valSteps   []int
	checkpoint CheckpointFn
}

// New returns a new Trainer around net. The network's batch size must
// equal conf.BatchSize; its input is the conditioning observation
// batch and its output the flattened control trajectory batch. The
// MSE loss and its gradient are added to the network's graph here, so
// the network must not be wired to another VM.
func New(net network.NeuralNet, sol *solver.Solver, conf Config,
	checkpoint CheckpointFn) (*Trainer, error) {
	if net.BatchSize() != conf.BatchSize {
		return nil, fmt.Errorf("new: network batch size does not match "+
			"config \n\twant(%v) \n\thave(%v)", conf.BatchSize,
			net.BatchSize())
	}
	if conf.Epochs <= 0 {
		return nil, fmt.Errorf("new: epochs must be positive "+
			"\n\thave(%v)", conf.Epochs)
	}

	ema, err := NewEMA(net, conf.EMADecay, conf.EMAStartStep,
		conf.EMAUpdateEvery)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	g := net.Graph()
	targets := G.NewMatrix(g, tensor.Float64,
		G.WithShape(conf.BatchSize, net.Outputs()),
		G.WithName("targets"), G.WithInit(G.Zeroes()))

	losses := G.Must(G.Sub(net.Prediction(), targets))
	losses = G.Must(G.Square(losses))
	loss := G.Must(G.Mean(losses))

	t := &Trainer{
		conf:       conf,
		net:        net,
		ema:        ema,
		solver:     sol,
		targets:    targets,
		checkpoint: checkpoint,
	}
	G.Read(loss, &t.lossVal)

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}

	t.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	return t, nil
}

// Train runs the imitation loop over train for the configured number
// of epochs, validating on val. Both datasets must already be
// normalized. The per-step training losses are recorded and returned
// by TrainLoss after the run.
func (t *Trainer) Train(train, val *dataset.Dataset,
	rng *rand.Rand) error {
	stepsPerEpoch := train.Len() / t.conf.BatchSize
	if stepsPerEpoch == 0 {
		return fmt.Errorf("train: dataset of %v pairs cannot fill a "+
			"batch of %v", train.Len(), t.conf.BatchSize)
	}
	totalSteps := stepsPerEpoch * t.conf.Epochs
	t.trainLoss = make([]float64, 0, totalSteps)

	// A validation set smaller than a batch cannot be evaluated, since
	// the loss graph has a fixed batch size. Skip validation instead of
	// failing the run.
	validate := t.conf.ValidateEvery > 0
	if validate && val.Len() < t.conf.BatchSize {
		log.Printf("validation set of %v pairs cannot fill a batch of "+
			"%v, skipping validation", val.Len(), t.conf.BatchSize)
		validate = false
	}

	var pbar *progressbar.ProgressBar
	if t.conf.ShowProgress {
		pbar = progressbar.New(50, totalSteps, time.Second, false)
		pbar.Display()
		defer pbar.Close()
	}

	start := time.Now()
	for epoch := 0; epoch < t.conf.Epochs; epoch++ {
		batches, err := train.Batches(t.conf.BatchSize, rng)
		if err != nil {
			return fmt.Errorf("train: %v", err)
		}

		for _, batch := range batches {
			loss, err := t.step(batch)
			if err != nil {
				return fmt.Errorf("train: epoch %v step %v: %v", epoch,
					t.steps, err)
			}
			t.trainLoss = append(t.trainLoss, loss)

			if pbar != nil {
				pbar.Increment()
			}

			if validate && t.steps%t.conf.ValidateEvery == 0 {
				valLoss, err := t.Validate(val, rng)
				if err != nil {
					return fmt.Errorf("train: %v", err)
				}
				t.valLoss = append(t.valLoss, valLoss)
				t.valSteps = append(t.valSteps, t.steps)
				log.Printf("step %v/%v: train loss %.6f, validation "+
					"loss %.6f, elapsed %v", t.steps, totalSteps, loss,
					valLoss, time.Since(start).Round(time.Second))
			}

			if t.checkpoint != nil && t.conf.CheckpointEvery > 0 &&
				t.steps%t.conf.CheckpointEvery == 0 {
				err := t.checkpoint(t.steps, t.net, t.ema.Network())
				if err != nil {
					return fmt.Errorf("train: could not checkpoint: %v",
						err)
				}
			}
		}
	}

	return nil
}

// step runs one optimizer step on a minibatch and returns its loss
func (t *Trainer) step(batch dataset.Batch) (float64, error) {
	if err := t.net.SetInput(batch.Conditions); err != nil {
		return 0, err
	}
	if err := t.setTargets(batch.Controls); err != nil {
		return 0, err
	}

	if err := t.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("could not run forward pass: %v", err)
	}
	loss := t.lossVal.Data().(float64)

	if err := t.solver.Step(t.net.Model()); err != nil {
		return 0, fmt.Errorf("could not step solver: %v", err)
	}
	t.vm.Reset()

	t.steps++
	if err := t.ema.Update(t.net); err != nil {
		return 0, fmt.Errorf("could not update EMA: %v", err)
	}

	return loss, nil
}

// Validate runs a forward-only pass over val and returns the mean
// batch loss. The number of batches is capped by the config.
func (t *Trainer) Validate(val *dataset.Dataset,
	rng *rand.Rand) (float64, error) {
	batches, err := val.Batches(t.conf.BatchSize, rng)
	if err != nil {
		return 0, fmt.Errorf("validate: %v", err)
	}
	if len(batches) == 0 {
		return 0, fmt.Errorf("validate: validation set of %v pairs "+
			"cannot fill a batch of %v", val.Len(), t.conf.BatchSize)
	}
	if t.conf.MaxValidationBatches > 0 &&
		len(batches) > t.conf.MaxValidationBatches {
		batches = batches[:t.conf.MaxValidationBatches]
	}

	total := 0.0
	for _, batch := range batches {
		if err := t.net.SetInput(batch.Conditions); err != nil {
			return 0, fmt.Errorf("validate: %v", err)
		}
		if err := t.setTargets(batch.Controls); err != nil {
			return 0, fmt.Errorf("validate: %v", err)
		}
		if err := t.vm.RunAll(); err != nil {
			return 0, fmt.Errorf("validate: could not run forward "+
				"pass: %v", err)
		}
		total += t.lossVal.Data().(float64)
		t.vm.Reset()
	}

	return total / float64(len(batches)), nil
}

// setTargets sets the target trajectories of the loss
func (t *Trainer) setTargets(controls []float64) error {
	targetTensor := tensor.New(
		tensor.WithBacking(controls),
		tensor.WithShape(t.targets.Shape()...),
	)
	return G.Let(t.targets, targetTensor)
}

// Steps returns the number of optimizer steps run so far
func (t *Trainer) Steps() int {
	return t.steps
}

// TrainLoss returns the recorded per-step training losses
func (t *Trainer) TrainLoss() []float64 {
	return t.trainLoss
}

// ValidationLoss returns the recorded validation losses and the
// optimizer steps they were measured at
func (t *Trainer) ValidationLoss() ([]float64, []int) {
	return t.valLoss, t.valSteps
}

// Network returns the training network
func (t *Trainer) Network() network.NeuralNet {
	return t.net
}

// EMANetwork returns the EMA shadow network
func (t *Trainer) EMANetwork() network.NeuralNet {
	return t.ema.Network()
}

// Close releases the virtual machine of the trainer
func (t *Trainer) Close() error {
	return t.vm.Close()
}
