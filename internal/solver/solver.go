// Package solver defines the solver contract and the solvers shipped with
// nigbms.
//
// A solver maps a task batch tau and constructed parameters to one objective
// value per instance, shape [batch, 1]. Solvers that compute through their
// tensor.Backend are differentiable when that backend is an autodiff backend,
// in both reverse mode and with dual numbers. Opaque solvers compute outside
// the backend; their outputs carry no tangent and have no gradient path.
package solver

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

// ErrUnknownSolver is returned by New for unregistered names.
var ErrUnknownSolver = errors.New("unknown solver")

// ErrTaskType is the panic value when a solver receives a task it cannot solve.
var ErrTaskType = errors.New("unsupported task type")

// Solver is the contract shared by base and surrogate solvers.
type Solver interface {
	// Solve returns one objective per instance of tau, shape [batch, 1].
	Solve(tau task.Task, params constructor.Params) *tensor.RawTensor

	// Learnable lists the parameters the solver reads from theta.
	Learnable() []constructor.ParamSpec

	// Parameters returns the solver's own trainable weights, if any.
	Parameters() []*nn.Parameter
}

// Config selects and configures a base solver.
type Config struct {
	// Function is the test function for "testfunction".
	Function string `yaml:"function"`
	// Dim is the problem dimension.
	Dim int `yaml:"dim"`
	// Omega is the fixed Jacobi relaxation factor; zero means 2/3.
	Omega float64 `yaml:"omega"`
	// LearnOmega makes omega a learnable parameter.
	LearnOmega bool `yaml:"learn_omega"`
	// Iterations overrides the task's iteration budget when positive.
	Iterations int `yaml:"iterations"`
	// Codec optionally encodes the initial guess ("sin", "ifft", ...).
	Codec string `yaml:"codec"`
	// CodecDim is the encoding width used with Codec.
	CodecDim int `yaml:"codec_dim"`
}

// New builds a base solver by name: "testfunction", "jacobi" or "cg".
func New(name string, cfg Config, backend tensor.Backend) (Solver, error) {
	switch strings.ToLower(name) {
	case "testfunction", "test_function":
		s, err := NewTestFunctionSolver(cfg.Function, cfg.Dim, backend)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "jacobi":
		spec, err := initialGuessSpec(cfg)
		if err != nil {
			return nil, err
		}
		return NewJacobiSolver(JacobiConfig{
			Guess:      spec,
			Omega:      cfg.Omega,
			LearnOmega: cfg.LearnOmega,
			Iterations: cfg.Iterations,
		}, backend), nil
	case "cg", "conjugate_gradient":
		spec, err := initialGuessSpec(cfg)
		if err != nil {
			return nil, err
		}
		return NewConjugateGradientSolver(spec, cfg.Iterations), nil
	default:
		return nil, errors.Wrapf(ErrUnknownSolver, "%q", name)
	}
}

// initialGuessSpec returns the "x0" spec for a linear solver of dimension
// cfg.Dim.
func initialGuessSpec(cfg Config) (constructor.ParamSpec, error) {
	if cfg.Dim <= 0 {
		return constructor.ParamSpec{}, errors.Errorf("solver dimension must be positive, got %d", cfg.Dim)
	}
	spec := constructor.ParamSpec{Name: "x0", Shape: tensor.Shape{cfg.Dim}}
	if cfg.Codec != "" {
		codec, err := constructor.NewCodec(cfg.Codec, cfg.CodecDim, cfg.Dim)
		if err != nil {
			return constructor.ParamSpec{}, err
		}
		spec.Codec = codec
	}
	return spec, nil
}

func batchOf(tau task.Task) *task.Batch {
	switch t := tau.(type) {
	case *task.Batch:
		return t
	case *task.DenseLinearSystemTask:
		return t.Repeat(1).(*task.Batch)
	default:
		panic(errors.Wrapf(ErrTaskType, "%T, want a linear system", tau))
	}
}

// rowNorms2 returns the squared Euclidean norm of each row of b [batch, n]
// as [batch, 1].
func rowNorms2(b *tensor.RawTensor) *tensor.RawTensor {
	shape := b.Shape()
	out := tensor.Zeros(tensor.Shape{shape[0], 1})
	n := shape[1]
	for i := range out.Data() {
		row := b.Data()[i*n : (i+1)*n]
		out.Data()[i] = floats.Dot(row, row)
	}
	return out
}
