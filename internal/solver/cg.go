package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

// ConjugateGradientSolver runs conjugate gradients with gonum from the
// initial guess "x0" until the relative residual drops below the task's rtol
// or the iteration budget is spent, and reports the final relative residual
// ||b - A x|| / ||b||.
//
// It reads parameter values and returns a fresh tensor: the result has no
// gradient path and no tangent. Use a finite-difference JVP with it.
type ConjugateGradientSolver struct {
	guess      constructor.ParamSpec
	iterations int
}

// NewConjugateGradientSolver creates the solver. iterations overrides the
// task budget when positive.
func NewConjugateGradientSolver(guess constructor.ParamSpec, iterations int) *ConjugateGradientSolver {
	return &ConjugateGradientSolver{guess: guess, iterations: iterations}
}

// Solve runs CG on every instance of tau.
func (s *ConjugateGradientSolver) Solve(tau task.Task, params constructor.Params) *tensor.RawTensor {
	batch := batchOf(tau)
	n, size := batch.Dim(), batch.Size()
	x0 := params[s.guess.Name]
	if x0.NumElements() != size*n {
		tensor.PanicShape("cg: initial guess shape %v for %d systems of size %d", x0.Shape(), size, n)
	}

	maxiter := s.iterations
	if maxiter <= 0 {
		maxiter = batch.Maxiter
	}
	out := tensor.Zeros(tensor.Shape{size, 1})
	for i := 0; i < size; i++ {
		a := mat.NewDense(n, n, append([]float64(nil), batch.A.Data()[i*n*n:(i+1)*n*n]...))
		b := mat.NewVecDense(n, append([]float64(nil), batch.B.Data()[i*n:(i+1)*n]...))
		x := mat.NewVecDense(n, append([]float64(nil), x0.Data()[i*n:(i+1)*n]...))
		out.Data()[i] = conjugateGradient(a, b, x, batch.Rtol.Data()[i], maxiter)
	}
	return out
}

// conjugateGradient iterates in place on x and returns ||b - A x|| / ||b||.
func conjugateGradient(a mat.Matrix, b, x *mat.VecDense, rtol float64, maxiter int) float64 {
	n := b.Len()
	bnorm := mat.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}

	r := mat.NewVecDense(n, nil)
	r.MulVec(a, x)
	r.SubVec(b, r)
	p := mat.VecDenseCopyOf(r)
	ap := mat.NewVecDense(n, nil)
	rs := mat.Dot(r, r)

	for k := 0; k < maxiter && math.Sqrt(rs) > rtol*bnorm; k++ {
		ap.MulVec(a, p)
		pap := mat.Dot(p, ap)
		if pap == 0 {
			break
		}
		alpha := rs / pap
		x.AddScaledVec(x, alpha, p)
		r.AddScaledVec(r, -alpha, ap)
		next := mat.Dot(r, r)
		p.AddScaledVec(r, next/rs, p)
		rs = next
	}
	return math.Sqrt(rs) / bnorm
}

// Learnable returns the initial guess.
func (s *ConjugateGradientSolver) Learnable() []constructor.ParamSpec {
	return []constructor.ParamSpec{s.guess}
}

// Parameters returns nil.
func (s *ConjugateGradientSolver) Parameters() []*nn.Parameter { return nil }
