// Package train holds the outer loops that drive the gradient-estimation
// layer: direct minimisation of test functions (Minimizer) and training of a
// meta-solver network on linear-system tasks (MetaTrainer).
//
// Steps run on a recording autodiff backend whose tape is cleared at the
// start of every step. Panics raised inside a step are returned as errors.
package train

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/internal/config"
	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/optim"
	"github.com/born-ml/nigbms/internal/solver"
	"github.com/born-ml/nigbms/internal/tensor"
)

// Backend is the backend training runs on.
type Backend = autodiff.AutodiffBackend[*cpu.CPUBackend]

// StepHook is called after every completed step with the step number and
// the statistics of the objective at that step.
type StepHook func(step int, y Stats, sim float64)

// NewBackend returns a recording autodiff backend over the CPU backend.
func NewBackend() *Backend {
	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()
	return b
}

// NewRand returns the generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func newSurrogate(cfg *config.Config, featureDim, encDim int, b tensor.Backend, rng *rand.Rand) (*solver.SurrogateSolver, error) {
	return solver.NewSurrogateSolver(solver.SurrogateConfig{
		FeatureDim: featureDim,
		EncDim:     encDim,
		Hidden:     cfg.Surrogate.Hidden,
		Activation: cfg.Surrogate.Activation,
	}, b, rng)
}

func constructorFor(base solver.Solver) (*constructor.ThetaConstructor, error) {
	c, err := constructor.New(base.Learnable()...)
	return c, errors.WithMessage(err, "theta constructor")
}

func newOptimizer(c config.OptConfig, params []*nn.Parameter) (optim.Optimizer, error) {
	opt, err := optim.New(c.Name, params, c.LR)
	return opt, errors.WithMessage(err, "optimizer")
}

func parameterTensors(params []*nn.Parameter) []*tensor.RawTensor {
	out := make([]*tensor.RawTensor, len(params))
	for i, p := range params {
		out[i] = p.Tensor()
	}
	return out
}
