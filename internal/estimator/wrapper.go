package estimator

import (
	"math/rand/v2"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/solver"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

// Config configures a WrappedSolver.
type Config struct {
	GradType GradType
	JVPType  JVPType
	// Eps is the finite-difference step; unused by ForwardAD.
	Eps float64
	// Nv is the number of probe directions per instance.
	Nv int
	// VScale multiplies the probes in the forward-gradient terms.
	VScale float64
}

// DefaultConfig returns cv_fwd with one forward-mode probe.
func DefaultConfig() Config {
	return Config{
		GradType: CVFwd,
		JVPType:  ForwardAD,
		Eps:      1e-6,
		Nv:       1,
		VScale:   1,
	}
}

// LossWeights weight the two terms of the surrogate loss.
type LossWeights struct {
	Y   float64
	DVF float64
}

// Output is the result of one WrappedSolver.Forward.
type Output struct {
	// Y is the node output [Nv*B, 1]: the base solver's values, connected to
	// theta through the configured estimator.
	Y *tensor.RawTensor
	// YRaw is the base solver's output as evaluated, with whatever gradient
	// path the solver itself provides.
	YRaw *tensor.RawTensor
	DVF  *tensor.RawTensor
	// YHat and DVFHat are nil without a surrogate.
	YHat   *tensor.RawTensor
	DVFHat *tensor.RawTensor
	V      *tensor.RawTensor
	// Context is consumed by the first backward pass through Y.
	Context *Context
}

// WrappedSolver evaluates a base solver and an optional surrogate on theta
// and exposes the base solver's output with an estimated gradient.
type WrappedSolver struct {
	base        solver.Solver
	surrogate   solver.Solver
	constructor *constructor.ThetaConstructor
	backend     autodiff.Differentiable
	estimator   *Estimator
	cfg         Config
	rng         *rand.Rand
}

// NewWrappedSolver wires the layer. A nil constructor is built from the base
// solver's learnable parameters. The surrogate may be nil when cfg.GradType
// does not need one.
func NewWrappedSolver(
	base, surrogate solver.Solver,
	c *constructor.ThetaConstructor,
	b autodiff.Differentiable,
	cfg Config,
	rng *rand.Rand,
) (*WrappedSolver, error) {
	if base == nil {
		return nil, errors.New("wrapped solver: base solver is nil")
	}
	if cfg.Nv <= 0 {
		return nil, errors.Errorf("wrapped solver: Nv must be positive, got %d", cfg.Nv)
	}
	if cfg.GradType.NeedsSurrogate() && surrogate == nil {
		return nil, errors.Wrapf(ErrNoSurrogate, "wrapped solver: %s", cfg.GradType)
	}
	if c == nil {
		var err error
		if c, err = constructor.New(base.Learnable()...); err != nil {
			return nil, errors.Wrap(err, "wrapped solver")
		}
	}
	return &WrappedSolver{
		base:        base,
		surrogate:   surrogate,
		constructor: c,
		backend:     b,
		estimator:   NewEstimator(b),
		cfg:         cfg,
		rng:         rng,
	}, nil
}

// Forward evaluates the layer at theta [B, EncDim] for the task batch tau.
// Theta is tiled Nv times (replica major) and so is tau; one Gaussian probe
// is drawn per tiled row.
//
// Forward fails when the base solver cannot produce a directional
// derivative under the configured JVP method, and on shape errors raised by
// the solvers.
func (w *WrappedSolver) Forward(tau task.Task, theta *tensor.RawTensor) (*Output, error) {
	var (
		out *Output
		err error
	)
	if panicked := exceptions.TryCatch[error](func() {
		out, err = w.forward(tau, theta)
	}); panicked != nil {
		return nil, panicked
	}
	return out, err
}

func (w *WrappedSolver) forward(tau task.Task, theta *tensor.RawTensor) (*Output, error) {
	b := w.backend
	nv := w.cfg.Nv
	thetaRep := b.Repeat(theta, nv)
	tauRep := tau.Repeat(nv)
	v := tensor.Randn(thetaRep.Shape(), w.rng)

	f := func(x *tensor.RawTensor) *tensor.RawTensor {
		return w.base.Solve(tauRep, w.constructor.Construct(b, x))
	}
	y, dvf, err := JVP(b, f, thetaRep, v, w.cfg.JVPType, w.cfg.Eps)
	if err != nil {
		return nil, errors.Wrap(err, "base solver")
	}
	out := &Output{YRaw: y, DVF: dvf, V: v}

	if w.surrogate != nil {
		fHat := func(x *tensor.RawTensor) *tensor.RawTensor {
			return w.surrogate.Solve(tauRep, w.constructor.Construct(b, x))
		}
		out.YHat, out.DVFHat, err = JVP(b, fHat, thetaRep, v, ForwardAD, w.cfg.Eps)
		if err != nil {
			return nil, errors.Wrap(err, "surrogate")
		}
	}

	out.Context = &Context{
		Theta:    theta,
		Y:        out.YRaw,
		DVF:      out.DVF,
		YHat:     out.YHat,
		DVFHat:   out.DVFHat,
		V:        v,
		VScale:   w.cfg.VScale,
		Nv:       nv,
		GradType: w.cfg.GradType,
	}
	out.Y = Apply(b, w.estimator, out.Context)
	return out, nil
}

// SurrogateLoss is weights.Y*mse(y, y_hat) + weights.DVF*mse(dvf, dvf_hat)
// with the base solver's values as fixed targets. Its gradient reaches the
// surrogate's weights and theta. out must come from a forward with a
// surrogate.
func SurrogateLoss(b tensor.Backend, out *Output, weights LossWeights) (*tensor.RawTensor, error) {
	if out.YHat == nil || out.DVFHat == nil {
		return nil, errors.WithStack(ErrNoSurrogate)
	}
	mse := nn.NewMSELoss(b)
	yLoss := mse.Forward(out.YHat, out.YRaw.Detach())
	dvfLoss := mse.Forward(out.DVFHat, out.DVF.Detach())
	return b.Add(b.MulScalar(yLoss, weights.Y), b.MulScalar(dvfLoss, weights.DVF)), nil
}

// Config returns the layer's configuration.
func (w *WrappedSolver) Config() Config { return w.cfg }

// Constructor returns the theta constructor shared by both solvers.
func (w *WrappedSolver) Constructor() *constructor.ThetaConstructor { return w.constructor }

// Base returns the base solver.
func (w *WrappedSolver) Base() solver.Solver { return w.base }

// Surrogate returns the surrogate, or nil.
func (w *WrappedSolver) Surrogate() solver.Solver { return w.surrogate }

// Estimator returns the layer's gradient rule.
func (w *WrappedSolver) Estimator() *Estimator { return w.estimator }

// Fallbacks returns the number of exact gradients replaced by zeros so far.
func (w *WrappedSolver) Fallbacks() int { return w.estimator.Fallbacks() }
