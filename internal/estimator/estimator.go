package estimator

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/tensor"
)

// Estimator is the GradientRule of the wrapped solver. Exact gradients are
// taken on backend's tape.
type Estimator struct {
	backend   autodiff.Differentiable
	fallbacks int
}

var _ GradientRule = (*Estimator)(nil)

// NewEstimator returns an estimator differentiating on b.
func NewEstimator(b autodiff.Differentiable) *Estimator {
	return &Estimator{backend: b}
}

// Fallbacks returns how many exact gradients were replaced by zeros because
// they could not be computed.
func (e *Estimator) Fallbacks() int {
	return e.fallbacks
}

// ForwardValue returns a detached copy of the base solver's output.
func (e *Estimator) ForwardValue(ctx *Context) *tensor.RawTensor {
	return ctx.Y.Detach()
}

// BackwardGradient returns the estimate selected by ctx.GradType.
func (e *Estimator) BackwardGradient(ctx *Context, gradY *tensor.RawTensor) (*tensor.RawTensor, error) {
	return e.Estimate(ctx, gradY, ctx.GradType)
}

// Estimate computes the gt estimate of the gradient with respect to
// ctx.Theta for the upstream gradient gradY [Nv*B, 1]. It does not consume
// ctx.
func (e *Estimator) Estimate(ctx *Context, gradY *tensor.RawTensor, gt GradType) (*tensor.RawTensor, error) {
	switch gt {
	case FTrue:
		return e.exact(FTrue, ctx.Y, gradY, ctx.Theta), nil

	case FFwd:
		return forwardGradient(ctx, gradY, ctx.DVF), nil

	case FHatTrue, CVFwd:
		if ctx.YHat == nil || ctx.DVFHat == nil {
			return nil, errors.Wrapf(ErrNoSurrogate, "%s", gt)
		}
		fHatTrue := e.exact(FHatTrue, ctx.YHat, gradY, ctx.Theta)
		floats.Scale(1/float64(ctx.Nv), fHatTrue.Data())
		if gt == FHatTrue {
			return fHatTrue, nil
		}
		fFwd := forwardGradient(ctx, gradY, ctx.DVF)
		fHatFwd := forwardGradient(ctx, gradY, ctx.DVFHat)
		return controlVariate(fFwd, fHatFwd, fHatTrue), nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedGradType, "%s", gt)
	}
}

// exact returns d(y)/d(theta) contracted with gradY, or zeros when y has no
// gradient path to theta or the backward walk fails.
func (e *Estimator) exact(term GradType, y, gradY, theta *tensor.RawTensor) *tensor.RawTensor {
	var grad *tensor.RawTensor
	err := exceptions.TryCatch[error](func() {
		grads, err := e.backend.Gradient(y, gradY, theta)
		if err != nil {
			panic(err)
		}
		grad = grads[0]
	})
	if err != nil {
		e.fallbacks++
		klog.Warningf("%s: exact gradient unavailable, using zeros: %v", term, err)
		return tensor.ZerosLike(theta)
	}
	return grad
}

// forwardGradient returns mean over the Nv replicas of
// (sum_j gradY_j dvf_j) v VScale, shape [B, D].
func forwardGradient(ctx *Context, gradY, dvf *tensor.RawTensor) *tensor.RawTensor {
	shape := ctx.Theta.Shape()
	batch, dim := shape[0], shape[1]
	width := dvf.NumElements() / (ctx.Nv * batch)
	scale := ctx.VScale / float64(ctx.Nv)

	out := tensor.Zeros(shape)
	g, d, v, o := gradY.Data(), dvf.Data(), ctx.V.Data(), out.Data()
	for k := 0; k < ctx.Nv; k++ {
		for i := 0; i < batch; i++ {
			r := k*batch + i
			s := floats.Dot(g[r*width:(r+1)*width], d[r*width:(r+1)*width])
			floats.AddScaled(o[i*dim:(i+1)*dim], s*scale, v[r*dim:(r+1)*dim])
		}
	}
	return out
}

// controlVariate returns fFwd - (fHatFwd - fHatTrue).
func controlVariate(fFwd, fHatFwd, fHatTrue *tensor.RawTensor) *tensor.RawTensor {
	correction := make([]float64, fFwd.NumElements())
	floats.SubTo(correction, fHatFwd.Data(), fHatTrue.Data())
	out := tensor.ZerosLike(fFwd)
	floats.SubTo(out.Data(), fFwd.Data(), correction)
	return out
}
