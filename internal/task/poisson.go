package task

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Poisson1DConfig describes the -u'' = f problem on (0, 1) with zero
// Dirichlet boundaries, discretised on N interior points.
type Poisson1DConfig struct {
	N       int
	Rtol    float64
	Maxiter int
	// Modes is the number of sine modes in the random source term.
	Modes int
}

// Poisson1D draws one task. A is tridiag(-1, 2, -1), b = h^2 f where
// f(x) = sum_k a_k sin(k pi x) with a_k ~ N(0, 1)/k, and X is the exact
// discrete solution.
func Poisson1D(cfg Poisson1DConfig, rng *rand.Rand) (*SparseLinearSystemTask, error) {
	n := cfg.N
	if n < 2 || cfg.Modes < 1 {
		return nil, errors.Wrapf(ErrInvalidTask, "poisson1d: need N >= 2 and Modes >= 1, got N=%d Modes=%d", n, cfg.Modes)
	}
	h := 1 / float64(n+1)

	rowPtr := make([]int, n+1)
	var colIdx []int
	var values []float64
	for i := 0; i < n; i++ {
		if i > 0 {
			colIdx, values = append(colIdx, i-1), append(values, -1)
		}
		colIdx, values = append(colIdx, i), append(values, 2)
		if i < n-1 {
			colIdx, values = append(colIdx, i+1), append(values, -1)
		}
		rowPtr[i+1] = len(values)
	}
	a, err := NewCSR(n, n, rowPtr, colIdx, values)
	if err != nil {
		return nil, err
	}

	params := TaskParams{"N": float64(n)}
	coef := make([]float64, cfg.Modes)
	for k := range coef {
		coef[k] = rng.NormFloat64() / float64(k+1)
		params[fmt.Sprintf("a%d", k+1)] = coef[k]
	}
	b := make([]float64, n)
	for i := range b {
		x := float64(i+1) * h
		var f float64
		for k, c := range coef {
			f += c * math.Sin(float64(k+1)*math.Pi*x)
		}
		b[i] = h * h * f
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a.ToDense(), mat.NewVecDense(n, b)); err != nil {
		return nil, errors.Wrap(err, "poisson1d: solving for the ground truth")
	}

	return &SparseLinearSystemTask{
		Params:  params,
		A:       a,
		B:       b,
		X:       mat.Col(nil, 0, &sol),
		Rtol:    cfg.Rtol,
		Maxiter: cfg.Maxiter,
	}, nil
}
