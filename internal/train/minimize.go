package train

import (
	"context"
	"math/rand/v2"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"

	"github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/internal/config"
	"github.com/born-ml/nigbms/internal/estimator"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/optim"
	"github.com/born-ml/nigbms/internal/solver"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

// similarityEps guards the cosine similarity against zero gradients.
const similarityEps = 1e-20

// Minimizer minimises a test function over NumSamples independent starting
// points, each updated with the configured gradient estimate.
type Minimizer struct {
	cfg      *config.Config
	backend  *Backend
	fn       solver.TestFunc
	tau      task.Task
	wrapper  *estimator.WrappedSolver
	gradType estimator.GradType
	weights  estimator.LossWeights

	x       *nn.Parameter
	sParams []*nn.Parameter
	mOpt    optim.Optimizer
	sOpt    optim.Optimizer
	traj    *Trajectories
	hooks   []StepHook
}

// NewMinimizer builds the problem described by cfg.Problem. The starting
// points are drawn uniformly from the initial range.
func NewMinimizer(cfg *config.Config, rng *rand.Rand) (*Minimizer, error) {
	est, err := cfg.Wrapper.Estimator()
	if err != nil {
		return nil, err
	}
	p := cfg.Problem
	b := NewBackend()

	base, err := solver.NewTestFunctionSolver(p.TestFunction, p.Dim, b)
	if err != nil {
		return nil, err
	}
	surrogate, err := newSurrogate(cfg, 0, p.Dim, b, rng)
	if err != nil {
		return nil, err
	}
	wrapper, err := estimator.NewWrappedSolver(base, surrogate, nil, b, est, rng)
	if err != nil {
		return nil, err
	}

	x := nn.NewParameter("x", tensor.Uniform(tensor.Shape{p.NumSamples, p.Dim}, p.InitialRange[0], p.InitialRange[1], rng))
	mOpt, err := newOptimizer(cfg.Optimizer.Meta, []*nn.Parameter{x})
	if err != nil {
		return nil, err
	}
	sOpt, err := newOptimizer(cfg.Optimizer.Surrogate, surrogate.Parameters())
	if err != nil {
		return nil, err
	}

	m := &Minimizer{
		cfg:      cfg,
		backend:  b,
		fn:       base.Func(),
		tau:      &task.MinimizeTestFunctionTask{Function: p.TestFunction},
		wrapper:  wrapper,
		gradType: est.GradType,
		weights:  cfg.Loss.Weights(),
		x:        x,
		sParams:  surrogate.Parameters(),
		mOpt:     mOpt,
		sOpt:     sOpt,
		traj:     NewTrajectories(p.TestFunction, p.Dim, est.GradType.String(), p.NumIter, p.NumSamples),
	}
	copy(m.traj.Ys[0], m.fn(cpu.New(), x.Tensor()).Data())
	return m, nil
}

// OnStep registers a hook run after every step.
func (m *Minimizer) OnStep(h StepHook) {
	m.hooks = append(m.hooks, h)
}

// X returns the current points, shape [NumSamples, Dim].
func (m *Minimizer) X() *tensor.RawTensor { return m.x.Tensor() }

// Wrapper returns the gradient-estimation layer.
func (m *Minimizer) Wrapper() *estimator.WrappedSolver { return m.wrapper }

// Trajectories returns what has been recorded so far.
func (m *Minimizer) Trajectories() *Trajectories { return m.traj }

// Run executes cfg.Problem.NumIter steps, stopping early when ctx is done.
func (m *Minimizer) Run(ctx context.Context) (*Trajectories, error) {
	for i := 1; i <= m.cfg.Problem.NumIter; i++ {
		if err := ctx.Err(); err != nil {
			return m.traj, errors.Wrapf(err, "stopped before step %d", i)
		}
		if err := m.Step(i); err != nil {
			return m.traj, err
		}
	}
	return m.traj, nil
}

// Step runs optimisation step i (1-based) and records it.
func (m *Minimizer) Step(i int) error {
	err := exceptions.TryCatch[error](func() { m.step(i) })
	return errors.WithMessagef(err, "step %d", i)
}

func (m *Minimizer) step(i int) {
	b := m.backend
	b.Tape().Clear()
	theta := m.x.Tensor()
	n := theta.Shape()[0]

	out := must.M1(m.wrapper.Forward(m.tau, theta))
	mLoss := tensor.Sum(b, out.Y)
	estimate := must.M1(b.Gradient(mLoss, tensor.Ones(mLoss.Shape()), theta))[0]
	m.x.SetGrad(estimate.Clone())

	if m.gradType.NeedsSurrogate() {
		sLoss := must.M1(estimator.SurrogateLoss(b, out, m.weights))
		grads := must.M1(b.Gradient(sLoss, tensor.Ones(sLoss.Shape()), parameterTensors(m.sParams)...))
		nn.SetGrads(m.sParams, grads)
	}
	exact := m.exactGradient(out, theta)

	if clip := m.cfg.Optimizer.MetaClip; clip > 0 {
		optim.ClipGradNorm([]*nn.Parameter{m.x}, clip)
	}
	if clip := m.cfg.Optimizer.SurrogateClip; clip > 0 {
		optim.ClipGradNorm(m.sParams, clip)
	}
	m.mOpt.Step()
	m.sOpt.Step()
	m.mOpt.ZeroGrad()
	m.sOpt.ZeroGrad()

	copy(m.traj.Ys[i], out.YRaw.Data()[:n])
	copy(m.traj.Sims[i], CosineSimilarity(exact, estimate, similarityEps))

	stats := Summarize(m.traj.Ys[i])
	sim := stat.Mean(m.traj.Sims[i], nil)
	if every := m.cfg.Problem.LogEvery; every > 0 && i%every == 0 {
		klog.Infof("%d: ymean=%.3g, ymax=%.3g, ymed=%.3g, ymin=%.3g, sim=%.3g",
			i, stats.Mean, stats.Max, stats.Median, stats.Min, sim)
	}
	for _, h := range m.hooks {
		h(i, stats, sim)
	}
}

// exactGradient differentiates the base solver's own output for the
// similarity metric; solvers without a gradient path give zeros.
func (m *Minimizer) exactGradient(out *estimator.Output, theta *tensor.RawTensor) *tensor.RawTensor {
	grads, err := m.backend.Gradient(out.YRaw, tensor.Ones(out.YRaw.Shape()), theta)
	if err != nil {
		klog.V(1).Infof("exact gradient unavailable for similarity: %v", err)
		return tensor.ZerosLike(theta)
	}
	return grads[0]
}
