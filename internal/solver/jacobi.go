package solver

import (
	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

// DefaultOmega is the damping used when none is configured.
const DefaultOmega = 2.0 / 3.0

// JacobiConfig configures a JacobiSolver.
type JacobiConfig struct {
	// Guess describes the initial guess parameter, normally "x0" of shape [n].
	Guess      constructor.ParamSpec
	Omega      float64
	LearnOmega bool
	// Iterations overrides the task budget when positive.
	Iterations int
}

// JacobiSolver runs weighted Jacobi
//
//	x_{k+1} = x_k + omega D^{-1} (b - A x_k)
//
// for a fixed number of sweeps from the initial guess "x0" and reports the
// relative squared residual ||b - A x_K||^2 / ||b||^2. It is built from
// backend operations, so it differentiates with respect to x0 and omega.
type JacobiSolver struct {
	cfg     JacobiConfig
	backend tensor.Backend
}

// NewJacobiSolver creates the solver.
func NewJacobiSolver(cfg JacobiConfig, backend tensor.Backend) *JacobiSolver {
	if cfg.Omega == 0 {
		cfg.Omega = DefaultOmega
	}
	return &JacobiSolver{cfg: cfg, backend: backend}
}

// Solve runs the sweeps on every instance of tau.
func (s *JacobiSolver) Solve(tau task.Task, params constructor.Params) *tensor.RawTensor {
	batch := batchOf(tau)
	b := s.backend
	x := params[s.cfg.Guess.Name]
	n := batch.Dim()

	invDiag := tensor.Zeros(tensor.Shape{batch.Size(), n})
	a := batch.A.Data()
	for i := 0; i < batch.Size(); i++ {
		for j := 0; j < n; j++ {
			invDiag.Data()[i*n+j] = 1 / a[(i*n+j)*n+j]
		}
	}

	var step *tensor.RawTensor
	if omega, ok := params["omega"]; ok && s.cfg.LearnOmega {
		step = b.Mul(invDiag, omega)
	} else {
		step = b.MulScalar(invDiag, s.cfg.Omega)
	}

	iters := s.cfg.Iterations
	if iters <= 0 {
		iters = batch.Maxiter
	}
	for k := 0; k < iters; k++ {
		r := b.Sub(batch.B, b.BatchMatVec(batch.A, x))
		x = b.Add(x, b.Mul(step, r))
	}

	r := b.Sub(batch.B, b.BatchMatVec(batch.A, x))
	return b.Div(b.SumDim(tensor.Square(b, r), 1, true), rowNorms2(batch.B))
}

// Learnable returns the initial guess and, when enabled, omega.
func (s *JacobiSolver) Learnable() []constructor.ParamSpec {
	specs := []constructor.ParamSpec{s.cfg.Guess}
	if s.cfg.LearnOmega {
		specs = append(specs, constructor.ParamSpec{Name: "omega", Shape: tensor.Shape{1}})
	}
	return specs
}

// Parameters returns nil.
func (s *JacobiSolver) Parameters() []*nn.Parameter { return nil }
