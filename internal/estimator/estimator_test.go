package estimator_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/estimator"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/optim"
	"github.com/born-ml/nigbms/internal/solver"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

func fromSlice(data []float64, shape ...int) *tensor.RawTensor {
	return must.M1(tensor.FromSlice(data, tensor.Shape(shape)))
}

func newBackend() *autodiff.AutodiffBackend[*cpu.CPUBackend] {
	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()
	return b
}

var sphereTask = &task.MinimizeTestFunctionTask{Function: "sphere"}

func sphereSolver(t *testing.T, b tensor.Backend) *solver.TestFunctionSolver {
	t.Helper()
	return must.M1(solver.NewTestFunctionSolver("sphere", 2, b))
}

// wrapped builds a wrapped sphere solver, using sphere as its own surrogate
// when the grad type needs one.
func wrapped(t *testing.T, b *autodiff.AutodiffBackend[*cpu.CPUBackend], cfg estimator.Config) *estimator.WrappedSolver {
	t.Helper()
	var surrogate solver.Solver
	if cfg.GradType.NeedsSurrogate() {
		surrogate = sphereSolver(t, b)
	}
	w, err := estimator.NewWrappedSolver(sphereSolver(t, b), surrogate, nil, b, cfg, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	return w
}

// gradient backpropagates sum(y) to theta.
func gradient(t *testing.T, b *autodiff.AutodiffBackend[*cpu.CPUBackend], y, theta *tensor.RawTensor) *tensor.RawTensor {
	t.Helper()
	loss := tensor.Sum(b, y)
	grads, err := b.Gradient(loss, tensor.Ones(loss.Shape()), theta)
	require.NoError(t, err)
	return grads[0]
}

func TestJVP(t *testing.T) {
	b := newBackend()
	sphere := func(x *tensor.RawTensor) *tensor.RawTensor {
		return b.SumDim(b.Mul(x, x), 1, true)
	}
	x := fromSlice([]float64{3, 4}, 1, 2)
	v := fromSlice([]float64{1, 0}, 1, 2)

	y, dvf, err := estimator.JVP(b, sphere, x, v, estimator.ForwardAD, 0)
	require.NoError(t, err)
	assert.Equal(t, 25.0, y.Item())
	assert.Equal(t, 6.0, dvf.Item())

	_, dvf, err = estimator.JVP(b, sphere, x, v, estimator.ForwardFD, 1e-3)
	require.NoError(t, err)
	assert.InDelta(t, 6.001, dvf.Item(), 1e-9)

	_, dvf, err = estimator.JVP(b, sphere, x, v, estimator.CentralFD, 1e-3)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, dvf.Item(), 1e-9)

	// The directional derivative stays on the tape.
	grads, err := b.Gradient(dvf, tensor.Ones(dvf.Shape()), x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 0}, grads[0].Data(), 1e-6)

	_, _, err = estimator.JVP(b, sphere, x, v, estimator.JVPType(7), 1e-3)
	assert.ErrorIs(t, err, estimator.ErrUnsupportedJVPType)
}

func TestJVPFiniteDifferenceOrder(t *testing.T) {
	b := newBackend()
	f := func(x *tensor.RawTensor) *tensor.RawTensor { return b.Exp(x) }
	x := fromSlice([]float64{0.5}, 1, 1)
	v := fromSlice([]float64{1}, 1, 1)
	want := math.Exp(0.5)

	errAt := func(method estimator.JVPType, eps float64) float64 {
		_, dvf, err := estimator.JVP(b, f, x, v, method, eps)
		require.NoError(t, err)
		return math.Abs(dvf.Item() - want)
	}

	// Forward differences are first order, central differences second.
	forward := errAt(estimator.ForwardFD, 1e-2) / errAt(estimator.ForwardFD, 1e-3)
	assert.InDelta(t, 10, forward, 1)
	central := errAt(estimator.CentralFD, 1e-2) / errAt(estimator.CentralFD, 1e-3)
	assert.InDelta(t, 100, central, 10)
}

func TestJVPOpaqueFunction(t *testing.T) {
	b := newBackend()
	opaque := func(x *tensor.RawTensor) *tensor.RawTensor {
		return tensor.Full(tensor.Shape{1, 1}, x.Data()[0])
	}
	x := fromSlice([]float64{1, 2}, 1, 2)
	_, _, err := estimator.JVP(b, opaque, x, tensor.Ones(x.Shape()), estimator.ForwardAD, 0)
	assert.ErrorIs(t, err, estimator.ErrNoTangent)

	_, dvf, err := estimator.JVP(b, opaque, x, tensor.Ones(x.Shape()), estimator.ForwardFD, 1e-4)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, dvf.Item(), 1e-9)
}

func TestForwardShapes(t *testing.T) {
	for _, gt := range estimator.GradTypes() {
		t.Run(gt.String(), func(t *testing.T) {
			b := newBackend()
			cfg := estimator.DefaultConfig()
			cfg.GradType = gt
			cfg.Nv = 4
			w := wrapped(t, b, cfg)

			theta := fromSlice([]float64{3, 4, 1, 2}, 2, 2)
			out, err := w.Forward(sphereTask, theta)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{8, 1}, out.Y.Shape())
			assert.Equal(t, tensor.Shape{8, 1}, out.DVF.Shape())
			assert.Equal(t, tensor.Shape{8, 2}, out.V.Shape())
			assert.False(t, out.Y.IsDual())
			for k := 0; k < 4; k++ {
				assert.InDelta(t, 25.0, out.Y.At(2*k, 0), 1e-12)
				assert.InDelta(t, 5.0, out.Y.At(2*k+1, 0), 1e-12)
			}

			grad := gradient(t, b, out.Y, theta)
			assert.Equal(t, tensor.Shape{2, 2}, grad.Shape())
		})
	}
}

func TestFTrue(t *testing.T) {
	b := newBackend()
	cfg := estimator.DefaultConfig()
	cfg.GradType = estimator.FTrue
	cfg.Nv = 3
	w := wrapped(t, b, cfg)

	theta := fromSlice([]float64{3, 4, 1, 2}, 2, 2)
	out, err := w.Forward(sphereTask, theta)
	require.NoError(t, err)

	// Summed over the Nv replicas, not averaged.
	grad := gradient(t, b, out.Y, theta)
	assert.InDeltaSlice(t, []float64{18, 24, 6, 12}, grad.Data(), 1e-9)

	plain := sphereSolver(t, b)
	x := fromSlice([]float64{3, 4, 1, 2}, 2, 2)
	y := plain.Solve(sphereTask, constructor.Params{"x": x})
	want := gradient(t, b, y, x)
	for i, g := range want.Data() {
		assert.InDelta(t, 3*g, grad.Data()[i], 1e-9)
	}
	assert.Zero(t, w.Fallbacks())
}

func TestFFwd(t *testing.T) {
	b := newBackend()
	cfg := estimator.DefaultConfig()
	cfg.GradType = estimator.FFwd
	cfg.VScale = 2
	w := wrapped(t, b, cfg)

	theta := fromSlice([]float64{3, 4}, 1, 2)
	out, err := w.Forward(sphereTask, theta)
	require.NoError(t, err)
	grad := gradient(t, b, out.Y, theta)

	v0, v1 := out.V.At(0, 0), out.V.At(0, 1)
	s := 2 * (6*v0 + 8*v1)
	assert.InDeltaSlice(t, []float64{s * v0, s * v1}, grad.Data(), 1e-9)
}

func TestFFwdIsUnbiased(t *testing.T) {
	b := newBackend()
	cfg := estimator.DefaultConfig()
	cfg.GradType = estimator.FFwd
	cfg.Nv = 20000
	w := wrapped(t, b, cfg)

	theta := fromSlice([]float64{3, 4}, 1, 2)
	out, err := w.Forward(sphereTask, theta)
	require.NoError(t, err)

	// Averaged over the probes, the forward gradient approaches [6, 8].
	grad := gradient(t, b, out.Y, theta)
	assert.InDelta(t, 6, grad.At(0, 0), 0.5)
	assert.InDelta(t, 8, grad.At(0, 1), 0.5)
}

func TestPerfectSurrogate(t *testing.T) {
	// With f_hat == f the forward terms cancel and only the exact surrogate
	// gradient divided by Nv remains.
	for _, gt := range []estimator.GradType{estimator.FHatTrue, estimator.CVFwd} {
		t.Run(gt.String(), func(t *testing.T) {
			b := newBackend()
			cfg := estimator.DefaultConfig()
			cfg.GradType = gt
			cfg.Nv = 3
			w := wrapped(t, b, cfg)

			theta := fromSlice([]float64{3, 4, 1, 2}, 2, 2)
			out, err := w.Forward(sphereTask, theta)
			require.NoError(t, err)
			grad := gradient(t, b, out.Y, theta)
			assert.InDeltaSlice(t, []float64{6, 8, 2, 4}, grad.Data(), 1e-9)
		})
	}
}

func TestControlVariateIdentity(t *testing.T) {
	b := newBackend()
	rng := rand.New(rand.NewPCG(3, 4))
	surrogate := must.M1(solver.NewSurrogateSolver(solver.SurrogateConfig{EncDim: 2, Hidden: []int{8}, Activation: "tanh"}, b, rng))
	cfg := estimator.DefaultConfig()
	cfg.Nv = 2
	w, err := estimator.NewWrappedSolver(sphereSolver(t, b), surrogate, nil, b, cfg, rng)
	require.NoError(t, err)

	theta := fromSlice([]float64{3, 4, 1, 2}, 2, 2)
	out, err := w.Forward(sphereTask, theta)
	require.NoError(t, err)
	require.NotNil(t, out.YHat)

	ctx := out.Context
	gradY := tensor.Ones(out.Y.Shape())
	est := w.Estimator()
	fFwd := must.M1(est.Estimate(ctx, gradY, estimator.FFwd))
	fHatTrue := must.M1(est.Estimate(ctx, gradY, estimator.FHatTrue))
	cv := must.M1(est.Estimate(ctx, gradY, estimator.CVFwd))

	hatCtx := *ctx
	hatCtx.DVF = ctx.DVFHat
	fHatFwd := must.M1(est.Estimate(&hatCtx, gradY, estimator.FFwd))

	for i := range cv.Data() {
		want := fFwd.Data()[i] - (fHatFwd.Data()[i] - fHatTrue.Data()[i])
		assert.InDelta(t, want, cv.Data()[i], 1e-12)
	}
	assert.False(t, ctx.Consumed(), "Estimate does not consume the context")
}

func TestContextIsConsumedOnce(t *testing.T) {
	b := newBackend()
	w := wrapped(t, b, estimator.DefaultConfig())

	theta := fromSlice([]float64{3, 4}, 1, 2)
	out, err := w.Forward(sphereTask, theta)
	require.NoError(t, err)
	loss := tensor.Sum(b, out.Y)

	_, err = b.Gradient(loss, tensor.Ones(loss.Shape()), theta)
	require.NoError(t, err)
	assert.True(t, out.Context.Consumed())
	assert.Nil(t, out.Context.Y)

	err = exceptions.TryCatch[error](func() {
		_, _ = b.Gradient(loss, tensor.Ones(loss.Shape()), theta)
	})
	assert.ErrorIs(t, err, estimator.ErrContextConsumed)
	assert.True(t, b.Tape().IsRecording(), "recording is restored after the panic")
}

func TestUnsupportedGradType(t *testing.T) {
	b := newBackend()
	cfg := estimator.DefaultConfig()
	cfg.GradType = estimator.GradType(42)
	w := wrapped(t, b, cfg)

	theta := fromSlice([]float64{3, 4}, 1, 2)
	out, err := w.Forward(sphereTask, theta)
	require.NoError(t, err, "the grad type is only read by the backward rule")

	loss := tensor.Sum(b, out.Y)
	err = exceptions.TryCatch[error](func() {
		_, _ = b.Gradient(loss, tensor.Ones(loss.Shape()), theta)
	})
	assert.ErrorIs(t, err, estimator.ErrUnsupportedGradType)

	_, err = estimator.ParseGradType("f_exact")
	assert.ErrorIs(t, err, estimator.ErrUnsupportedGradType)
	gt, err := estimator.ParseGradType("cv_fwd")
	require.NoError(t, err)
	assert.Equal(t, estimator.CVFwd, gt)
	jt, err := estimator.ParseJVPType("CentralFD")
	require.NoError(t, err)
	assert.Equal(t, estimator.CentralFD, jt)
	assert.Equal(t, "GradType(42)", cfg.GradType.String())
}

func TestNewWrappedSolverValidation(t *testing.T) {
	b := newBackend()
	rng := rand.New(rand.NewPCG(1, 1))

	cfg := estimator.DefaultConfig()
	_, err := estimator.NewWrappedSolver(sphereSolver(t, b), nil, nil, b, cfg, rng)
	assert.ErrorIs(t, err, estimator.ErrNoSurrogate)

	cfg.GradType = estimator.FTrue
	cfg.Nv = 0
	_, err = estimator.NewWrappedSolver(sphereSolver(t, b), nil, nil, b, cfg, rng)
	assert.Error(t, err)

	_, err = estimator.NewWrappedSolver(nil, nil, nil, b, estimator.DefaultConfig(), rng)
	assert.Error(t, err)
}

func TestOpaqueSolverFallsBackToZero(t *testing.T) {
	b := newBackend()
	rng := rand.New(rand.NewPCG(5, 6))
	p := must.M1(task.Poisson1D(task.Poisson1DConfig{N: 8, Rtol: 1e-10, Maxiter: 20, Modes: 3}, rng))
	tau := task.SparseToDense(p)

	cg := solver.NewConjugateGradientSolver(constructor.ParamSpec{Name: "x0", Shape: tensor.Shape{8}}, 2)
	cfg := estimator.DefaultConfig()
	cfg.GradType = estimator.FTrue
	cfg.JVPType = estimator.ForwardAD
	w, err := estimator.NewWrappedSolver(cg, nil, nil, b, cfg, rng)
	require.NoError(t, err)

	theta := tensor.Zeros(tensor.Shape{1, 8})
	_, err = w.Forward(tau, theta)
	assert.ErrorIs(t, err, estimator.ErrNoTangent, "forward mode needs a tangent-propagating solver")

	cfg.JVPType = estimator.CentralFD
	cfg.Eps = 1e-4
	w, err = estimator.NewWrappedSolver(cg, nil, nil, b, cfg, rng)
	require.NoError(t, err)
	out, err := w.Forward(tau, theta)
	require.NoError(t, err)
	assert.Greater(t, out.Y.Item(), 0.0)

	grad := gradient(t, b, out.Y, theta)
	assert.Equal(t, make([]float64, 8), grad.Data())
	assert.Equal(t, 1, w.Fallbacks())
}

func TestSurrogateLossTrains(t *testing.T) {
	b := newBackend()
	rng := rand.New(rand.NewPCG(11, 12))
	surrogate := must.M1(solver.NewSurrogateSolver(
		solver.SurrogateConfig{EncDim: 2, Hidden: []int{32}, Activation: "tanh"}, b, rng))
	cfg := estimator.DefaultConfig()
	cfg.GradType = estimator.CVFwd
	w, err := estimator.NewWrappedSolver(sphereSolver(t, b), surrogate, nil, b, cfg, rng)
	require.NoError(t, err)

	opt := optim.NewAdam(surrogate.Parameters(), optim.AdamConfig{LR: 1e-2})
	weights := estimator.LossWeights{Y: 1, DVF: 1}
	theta := tensor.Uniform(tensor.Shape{16, 2}, -1, 1, rng)

	step := func() float64 {
		b.Tape().Clear()
		out, err := w.Forward(sphereTask, theta)
		require.NoError(t, err)
		loss, err := estimator.SurrogateLoss(b, out, weights)
		require.NoError(t, err)

		params := surrogate.Parameters()
		tensors := make([]*tensor.RawTensor, len(params))
		for i, p := range params {
			tensors[i] = p.Tensor()
		}
		grads, err := b.Gradient(loss, tensor.Ones(loss.Shape()), tensors...)
		require.NoError(t, err)
		nn.SetGrads(params, grads)
		opt.Step()
		opt.ZeroGrad()
		return loss.Item()
	}

	first := step()
	var last float64
	for i := 0; i < 300; i++ {
		last = step()
	}
	assert.Less(t, last, first)

	_, err = estimator.SurrogateLoss(b, &estimator.Output{}, weights)
	assert.ErrorIs(t, err, estimator.ErrNoSurrogate)
}
