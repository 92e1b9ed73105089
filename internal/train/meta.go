package train

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/nigbms/internal/config"
	"github.com/born-ml/nigbms/internal/estimator"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/optim"
	"github.com/born-ml/nigbms/internal/parallel"
	"github.com/born-ml/nigbms/internal/solver"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

// EpochResult reports the mean losses of one epoch.
type EpochResult struct {
	Epoch int
	Train float64
	Val   float64
}

// MetaTrainer trains a meta-solver network mapping task features to theta
// for a base linear solver. Training goes through the gradient-estimation
// layer; validation calls the base solver directly.
type MetaTrainer struct {
	cfg      *config.Config
	backend  *Backend
	rng      *rand.Rand
	meta     *nn.Sequential
	base     solver.Solver
	wrapper  *estimator.WrappedSolver
	gradType estimator.GradType
	weights  estimator.LossWeights

	sParams  []*nn.Parameter
	mOpt     optim.Optimizer
	sOpt     optim.Optimizer
	trainSet []*task.DenseLinearSystemTask
	valSet   []*task.DenseLinearSystemTask
	hooks    []func(EpochResult)
}

// NewMetaTrainer generates the Poisson data set and builds the networks.
// The base solver's dimension defaults to the Poisson grid size.
func NewMetaTrainer(cfg *config.Config, rng *rand.Rand) (*MetaTrainer, error) {
	est, err := cfg.Wrapper.Estimator()
	if err != nil {
		return nil, err
	}
	if name := strings.ToLower(cfg.Solver.Name); name == "testfunction" || name == "test_function" {
		return nil, errors.Errorf("meta training needs a linear-system solver, got %q", cfg.Solver.Name)
	}
	b := NewBackend()
	n := cfg.Poisson.N

	solverCfg := cfg.Solver.Config
	if solverCfg.Dim == 0 {
		solverCfg.Dim = n
	}
	base, err := solver.New(cfg.Solver.Name, solverCfg, b)
	if err != nil {
		return nil, err
	}
	c, err := constructorFor(base)
	if err != nil {
		return nil, err
	}
	surrogate, err := newSurrogate(cfg, n, c.EncDim(), b, rng)
	if err != nil {
		return nil, err
	}
	wrapper, err := estimator.NewWrappedSolver(base, surrogate, c, b, est, rng)
	if err != nil {
		return nil, err
	}

	sizes := append([]int{n}, cfg.Meta.Hidden...)
	sizes = append(sizes, c.EncDim())
	meta, err := nn.NewMLP(sizes, cfg.Meta.Activation, b, rng)
	if err != nil {
		return nil, errors.WithMessage(err, "meta solver")
	}
	mOpt, err := newOptimizer(cfg.Optimizer.Meta, meta.Parameters())
	if err != nil {
		return nil, err
	}
	sOpt, err := newOptimizer(cfg.Optimizer.Surrogate, surrogate.Parameters())
	if err != nil {
		return nil, err
	}

	trainSet, err := poissonSet(cfg.Poisson, cfg.Poisson.NumTrain, rng)
	if err != nil {
		return nil, err
	}
	valSet, err := poissonSet(cfg.Poisson, cfg.Poisson.NumVal, rng)
	if err != nil {
		return nil, err
	}
	return &MetaTrainer{
		cfg:      cfg,
		backend:  b,
		rng:      rng,
		meta:     meta,
		base:     base,
		wrapper:  wrapper,
		gradType: est.GradType,
		weights:  cfg.Loss.Weights(),
		sParams:  surrogate.Parameters(),
		mOpt:     mOpt,
		sOpt:     sOpt,
		trainSet: trainSet,
		valSet:   valSet,
	}, nil
}

// poissonSet draws count problems in order from rng and expands them to
// dense form in parallel.
func poissonSet(cfg config.PoissonConfig, count int, rng *rand.Rand) ([]*task.DenseLinearSystemTask, error) {
	sparse := make([]*task.SparseLinearSystemTask, count)
	for i := range sparse {
		p, err := task.Poisson1D(cfg.Task(), rng)
		if err != nil {
			return nil, err
		}
		sparse[i] = p
	}
	return parallel.Map(sparse, func(p *task.SparseLinearSystemTask) (*task.DenseLinearSystemTask, error) {
		return task.SparseToDense(p), nil
	}, parallel.DefaultConfig())
}

// Meta returns the meta-solver network.
func (t *MetaTrainer) Meta() *nn.Sequential { return t.meta }

// Wrapper returns the gradient-estimation layer.
func (t *MetaTrainer) Wrapper() *estimator.WrappedSolver { return t.wrapper }

// OnEpoch registers a hook run after every epoch.
func (t *MetaTrainer) OnEpoch(h func(EpochResult)) {
	t.hooks = append(t.hooks, h)
}

// Run trains for cfg.Meta.Epochs epochs.
func (t *MetaTrainer) Run(ctx context.Context) ([]EpochResult, error) {
	var results []EpochResult
	for epoch := 1; epoch <= t.cfg.Meta.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return results, errors.Wrapf(err, "stopped before epoch %d", epoch)
		}
		res, err := t.Epoch(epoch)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Epoch runs one pass over the shuffled training set followed by
// validation.
func (t *MetaTrainer) Epoch(epoch int) (EpochResult, error) {
	res := EpochResult{Epoch: epoch}
	perm := t.rng.Perm(len(t.trainSet))
	bs := t.cfg.Meta.BatchSize
	batches := 0
	for start := 0; start < len(perm); start += bs {
		tasks := make([]*task.DenseLinearSystemTask, 0, bs)
		for _, i := range perm[start:min(start+bs, len(perm))] {
			tasks = append(tasks, t.trainSet[i])
		}
		loss, err := t.Step(tasks)
		if err != nil {
			return res, errors.WithMessagef(err, "epoch %d", epoch)
		}
		res.Train += loss
		batches++
	}
	if batches > 0 {
		res.Train /= float64(batches)
	}

	val, err := t.Validate()
	if err != nil {
		return res, errors.WithMessagef(err, "epoch %d", epoch)
	}
	res.Val = val
	klog.Infof("epoch %d: train=%.4g val=%.4g", epoch, res.Train, res.Val)
	for _, h := range t.hooks {
		h(res)
	}
	return res, nil
}

// Step trains on one batch and returns its loss, mean(y).
func (t *MetaTrainer) Step(tasks []*task.DenseLinearSystemTask) (loss float64, err error) {
	err = exceptions.TryCatch[error](func() {
		loss = t.step(tasks)
	})
	return loss, err
}

func (t *MetaTrainer) step(tasks []*task.DenseLinearSystemTask) float64 {
	b := t.backend
	b.Tape().Clear()
	tau := must.M1(task.NewBatch(tasks))
	theta := t.meta.Forward(tau.Features())

	out := must.M1(t.wrapper.Forward(tau, theta))
	loss := tensor.Mean(b, out.Y)
	grads := must.M1(b.Gradient(loss, tensor.Ones(loss.Shape()), nn.Tensors(t.meta)...))
	nn.SetGrads(t.meta.Parameters(), grads)

	if t.gradType.NeedsSurrogate() {
		sLoss := must.M1(estimator.SurrogateLoss(b, out, t.weights))
		sGrads := must.M1(b.Gradient(sLoss, tensor.Ones(sLoss.Shape()), parameterTensors(t.sParams)...))
		nn.SetGrads(t.sParams, sGrads)
	}

	if clip := t.cfg.Optimizer.MetaClip; clip > 0 {
		optim.ClipGradNorm(t.meta.Parameters(), clip)
	}
	if clip := t.cfg.Optimizer.SurrogateClip; clip > 0 {
		optim.ClipGradNorm(t.sParams, clip)
	}
	t.mOpt.Step()
	t.sOpt.Step()
	t.mOpt.ZeroGrad()
	t.sOpt.ZeroGrad()
	return loss.Item()
}

// Validate returns the mean base-solver objective over the validation set,
// evaluated without the surrogate and without recording.
func (t *MetaTrainer) Validate() (float64, error) {
	if len(t.valSet) == 0 {
		return 0, nil
	}
	var loss float64
	err := exceptions.TryCatch[error](func() {
		b := t.backend
		b.Tape().Clear()
		b.NoGrad(func() {
			tau := must.M1(task.NewBatch(t.valSet))
			theta := t.meta.Forward(tau.Features())
			y := t.base.Solve(tau, t.wrapper.Constructor().Construct(b, theta))
			loss = tensor.Mean(b, y).Item()
		})
	})
	return loss, errors.WithMessage(err, "validation")
}

// SaveCheckpoint writes the meta-solver weights to path.
func (t *MetaTrainer) SaveCheckpoint(path string, res EpochResult) error {
	ckpt := &nn.Checkpoint{
		Model: t.meta,
		Step:  res.Epoch,
		Loss:  res.Val,
		Metadata: map[string]string{
			"solver":    t.cfg.Solver.Name,
			"grad_type": t.gradType.String(),
		},
	}
	return ckpt.Save(path)
}
