package solver_test

import (
	"math/rand/v2"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/solver"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

func rows(shape tensor.Shape, values ...float64) *tensor.RawTensor {
	return must.M1(tensor.FromSlice(values, shape))
}

func TestTestFunctions(t *testing.T) {
	b := cpu.New()
	tests := []struct {
		name string
		x    *tensor.RawTensor
		want []float64
	}{
		{"sphere", rows(tensor.Shape{2, 2}, 3, 4, 0, 1), []float64{25, 1}},
		{"rosenbrock", rows(tensor.Shape{2, 3}, 1, 1, 1, 0, 0, 0), []float64{0, 2}},
		{"rosenbrock_separate", rows(tensor.Shape{1, 4}, 1, 1, 0, 0), []float64{1}},
		{"rastrigin", rows(tensor.Shape{2, 1}, 0, 1), []float64{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := solver.LookupTestFunc(tt.name)
			require.NoError(t, err)
			y := f(b, tt.x)
			assert.Equal(t, tensor.Shape{tt.x.Shape()[0], 1}, y.Shape())
			assert.InDeltaSlice(t, tt.want, y.Data(), 1e-9)
		})
	}

	_, err := solver.LookupTestFunc("ackley")
	assert.Error(t, err)
	assert.Equal(t, []string{"rastrigin", "rosenbrock", "rosenbrock_separate", "sphere"}, solver.TestFunctionNames())
}

func TestTestFunctionSolverGradient(t *testing.T) {
	ad := autodiff.New(cpu.New())
	ad.Tape().StartRecording()
	s, err := solver.NewTestFunctionSolver("sphere", 2, ad)
	require.NoError(t, err)
	assert.Equal(t, []constructor.ParamSpec{{Name: "x", Shape: tensor.Shape{2}}}, s.Learnable())
	assert.Nil(t, s.Parameters())

	x := rows(tensor.Shape{1, 2}, 3, 4)
	y := s.Solve(&task.MinimizeTestFunctionTask{Function: "sphere"}, constructor.Params{"x": x})
	assert.Equal(t, 25.0, y.Item())

	grads, err := ad.Gradient(y, tensor.Ones(y.Shape()), x)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 8}, grads[0].Data())

	_, err = solver.NewTestFunctionSolver("rosenbrock_separate", 3, ad)
	assert.Error(t, err)
	_, err = solver.NewTestFunctionSolver("rosenbrock", 1, ad)
	assert.Error(t, err)
}

func diagBatch(t *testing.T) *task.Batch {
	t.Helper()
	a := must.M1(task.NewCSR(3, 3, []int{0, 1, 2, 3}, []int{0, 1, 2}, []float64{1, 2, 3}))
	sparse := &task.SparseLinearSystemTask{A: a, B: []float64{1, 2, 3}, X: []float64{1, 1, 1}, Rtol: 1e-10, Maxiter: 5}
	return must.M1(task.NewBatch([]*task.DenseLinearSystemTask{task.SparseToDense(sparse)}))
}

func TestJacobiSolver(t *testing.T) {
	b := cpu.New()
	tau := diagBatch(t)
	guess := constructor.ParamSpec{Name: "x0", Shape: tensor.Shape{3}}

	s := solver.NewJacobiSolver(solver.JacobiConfig{Guess: guess, Iterations: -1}, b)
	zero := constructor.Params{"x0": tensor.Zeros(tensor.Shape{1, 3})}

	// Iterations 0 falls back to the task budget.
	undamped := solver.NewJacobiSolver(solver.JacobiConfig{Guess: guess, Omega: 1}, b)
	assert.Less(t, undamped.Solve(tau, zero).Item(), 1e-20, "undamped Jacobi solves a diagonal system")

	// One damped sweep leaves (1-omega)^2 of the residual energy.
	one := solver.NewJacobiSolver(solver.JacobiConfig{Guess: guess, Iterations: 1}, b)
	assert.InDelta(t, 1.0/9, one.Solve(tau, zero).Item(), 1e-12)

	y := s.Solve(tau, zero)
	assert.Equal(t, tensor.Shape{1, 1}, y.Shape())
	assert.InDelta(t, 1.0/59049, y.Item(), 1e-12) // (1/3)^(2*5)

	learn := solver.NewJacobiSolver(solver.JacobiConfig{Guess: guess, LearnOmega: true, Iterations: 1}, b)
	require.Len(t, learn.Learnable(), 2)
	omega := rows(tensor.Shape{1, 1}, 1)
	assert.Less(t, learn.Solve(tau, constructor.Params{"x0": zero["x0"], "omega": omega}).Item(), 1e-20)
}

func TestJacobiSolverDirectionalDerivative(t *testing.T) {
	tau := diagBatch(t)
	guess := constructor.ParamSpec{Name: "x0", Shape: tensor.Shape{3}}
	ad := autodiff.New(cpu.New())
	ad.Tape().StartRecording()
	s := solver.NewJacobiSolver(solver.JacobiConfig{Guess: guess, Iterations: 2}, ad)

	x0 := rows(tensor.Shape{1, 3}, 0.3, -0.2, 0.5)
	v := rows(tensor.Shape{1, 3}, 1, 2, -1)
	_, dy := ad.UnpackDual(s.Solve(tau, constructor.Params{"x0": ad.MakeDual(x0, v)}))
	require.NotNil(t, dy)

	plain := solver.NewJacobiSolver(solver.JacobiConfig{Guess: guess, Iterations: 2}, cpu.New())
	const eps = 1e-5
	c := cpu.New()
	yp := plain.Solve(tau, constructor.Params{"x0": c.Add(x0, c.MulScalar(v, eps))}).Item()
	ym := plain.Solve(tau, constructor.Params{"x0": c.Sub(x0, c.MulScalar(v, eps))}).Item()
	assert.InDelta(t, (yp-ym)/(2*eps), dy.Item(), 1e-7)
}

func TestConjugateGradientIsOpaque(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	p := must.M1(task.Poisson1D(task.Poisson1DConfig{N: 8, Rtol: 1e-10, Maxiter: 20, Modes: 3}, rng))
	tau := task.SparseToDense(p)

	guess := constructor.ParamSpec{Name: "x0", Shape: tensor.Shape{8}}
	s := solver.NewConjugateGradientSolver(guess, 0)
	y := s.Solve(tau, constructor.Params{"x0": tensor.Zeros(tensor.Shape{1, 8})})
	assert.Less(t, y.Item(), 1e-9)

	// Starting from the exact solution the residual is already zero.
	exact := must.M1(tensor.FromSlice(p.X, tensor.Shape{1, 8}))
	assert.Less(t, s.Solve(tau, constructor.Params{"x0": exact}).Item(), 1e-12)

	// A budget of one step leaves a large residual.
	short := solver.NewConjugateGradientSolver(guess, 1)
	assert.Greater(t, short.Solve(tau, constructor.Params{"x0": tensor.Zeros(tensor.Shape{1, 8})}).Item(), 1e-3)

	ad := autodiff.New(cpu.New())
	ad.Tape().StartRecording()
	x0 := tensor.Zeros(tensor.Shape{1, 8})
	out := s.Solve(tau, constructor.Params{"x0": ad.MakeDual(x0, tensor.Ones(tensor.Shape{1, 8}))})
	assert.False(t, out.IsDual())
	_, err := ad.Gradient(out, tensor.Ones(out.Shape()), x0)
	assert.ErrorIs(t, err, autodiff.ErrNoGradientPath)
}

func TestSurrogateSolver(t *testing.T) {
	ad := autodiff.New(cpu.New())
	ad.Tape().StartRecording()
	rng := rand.New(rand.NewPCG(9, 9))
	s, err := solver.NewSurrogateSolver(solver.SurrogateConfig{FeatureDim: 3, EncDim: 2, Hidden: []int{8}}, ad, rng)
	require.NoError(t, err)
	assert.Len(t, s.Parameters(), 4)
	assert.Nil(t, s.Learnable())

	tau := diagBatch(t).Repeat(2)
	c := must.M1(constructor.New(constructor.ParamSpec{Name: "x0", Shape: tensor.Shape{2}}))
	theta := tensor.Randn(tensor.Shape{2, 2}, rng)
	v := tensor.Randn(tensor.Shape{2, 2}, rng)

	y, dy := ad.UnpackDual(s.Solve(tau, c.Construct(ad, ad.MakeDual(theta, v))))
	assert.Equal(t, tensor.Shape{2, 1}, y.Shape())
	require.NotNil(t, dy)

	grads, err := ad.Gradient(y, tensor.Ones(y.Shape()), theta)
	require.NoError(t, err)
	// The directional derivative is the gradient projected on v.
	for i := 0; i < 2; i++ {
		want := grads[0].At(i, 0)*v.At(i, 0) + grads[0].At(i, 1)*v.At(i, 1)
		assert.InDelta(t, want, dy.At(i, 0), 1e-10)
	}

	_, err = solver.NewSurrogateSolver(solver.SurrogateConfig{EncDim: 0}, ad, rng)
	assert.Error(t, err)
}

func TestNewByName(t *testing.T) {
	b := cpu.New()
	s, err := solver.New("testfunction", solver.Config{Function: "rastrigin", Dim: 4}, b)
	require.NoError(t, err)
	assert.IsType(t, &solver.TestFunctionSolver{}, s)

	s, err = solver.New("jacobi", solver.Config{Dim: 8, Codec: "sin", CodecDim: 4, LearnOmega: true}, b)
	require.NoError(t, err)
	specs := s.Learnable()
	require.Len(t, specs, 2)
	assert.Equal(t, 4, specs[0].Codec.EncDim())

	s, err = solver.New("CG", solver.Config{Dim: 8}, b)
	require.NoError(t, err)
	assert.IsType(t, &solver.ConjugateGradientSolver{}, s)

	_, err = solver.New("gmres", solver.Config{Dim: 8}, b)
	assert.ErrorIs(t, err, solver.ErrUnknownSolver)
	_, err = solver.New("jacobi", solver.Config{}, b)
	assert.Error(t, err)
}
