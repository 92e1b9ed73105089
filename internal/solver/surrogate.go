package solver

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

// SurrogateConfig configures a SurrogateSolver.
type SurrogateConfig struct {
	// FeatureDim is the width of tau.Features(), zero when tasks carry none.
	FeatureDim int
	// EncDim is the width of theta.
	EncDim     int
	Hidden     []int
	Activation string
}

// SurrogateSolver is an MLP f_hat(tau, theta) on [features ‖ theta] with a
// single output. Built on an autodiff backend it is exactly differentiable
// with respect to theta and its own weights.
type SurrogateSolver struct {
	cfg     SurrogateConfig
	mlp     *nn.Sequential
	backend tensor.Backend
}

// NewSurrogateSolver builds the network.
func NewSurrogateSolver(cfg SurrogateConfig, backend tensor.Backend, rng *rand.Rand) (*SurrogateSolver, error) {
	if cfg.EncDim <= 0 || cfg.FeatureDim < 0 {
		return nil, errors.Errorf("surrogate: invalid input widths features=%d enc=%d", cfg.FeatureDim, cfg.EncDim)
	}
	if cfg.Activation == "" {
		cfg.Activation = "relu"
	}
	sizes := append([]int{cfg.FeatureDim + cfg.EncDim}, cfg.Hidden...)
	sizes = append(sizes, 1)
	mlp, err := nn.NewMLP(sizes, cfg.Activation, backend, rng)
	if err != nil {
		return nil, errors.Wrap(err, "surrogate")
	}
	return &SurrogateSolver{cfg: cfg, mlp: mlp, backend: backend}, nil
}

// Solve evaluates the network on the task features and the reserved
// encoding entry of params.
func (s *SurrogateSolver) Solve(tau task.Task, params constructor.Params) *tensor.RawTensor {
	enc := params.Enc()
	batch := enc.Shape()[0]
	input := s.backend.Reshape(enc, tensor.Shape{batch, s.cfg.EncDim})
	if s.cfg.FeatureDim > 0 {
		input = s.backend.Cat([]*tensor.RawTensor{tau.Features(), input}, 1)
	}
	return s.mlp.Forward(input)
}

// Learnable returns nil: the surrogate reads the whole encoding.
func (s *SurrogateSolver) Learnable() []constructor.ParamSpec { return nil }

// Parameters returns the network weights.
func (s *SurrogateSolver) Parameters() []*nn.Parameter { return s.mlp.Parameters() }

// Model returns the underlying network.
func (s *SurrogateSolver) Model() *nn.Sequential { return s.mlp }
