package estimator

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/tensor"
)

// Func is a function under directional differentiation, evaluated on the
// same backend that is passed to JVP.
type Func func(x *tensor.RawTensor) *tensor.RawTensor

// JVP returns f(x) and the derivative of f at x along v.
//
// ForwardAD evaluates f once on the dual number x + εv and fails with
// ErrNoTangent when f does not propagate tangents (an opaque solver).
// ForwardFD and CentralFD evaluate f two and three times. eps is used as
// given.
//
// Every evaluation goes through b, so y and dvf stay connected to x on the
// tape whenever f is differentiable.
func JVP(b autodiff.Differentiable, f Func, x, v *tensor.RawTensor, method JVPType, eps float64) (y, dvf *tensor.RawTensor, err error) {
	switch method {
	case ForwardAD:
		y, dvf = b.UnpackDual(f(b.MakeDual(x, v)))
		if dvf == nil {
			return nil, nil, errors.WithStack(ErrNoTangent)
		}
		return y, dvf, nil

	case ForwardFD:
		y = f(x)
		yPlus := f(b.Add(x, b.MulScalar(v, eps)))
		return y, b.MulScalar(b.Sub(yPlus, y), 1/eps), nil

	case CentralFD:
		y = f(x)
		yPlus := f(b.Add(x, b.MulScalar(v, eps)))
		yMinus := f(b.Sub(x, b.MulScalar(v, eps)))
		return y, b.MulScalar(b.Sub(yPlus, yMinus), 1/(2*eps)), nil

	default:
		return nil, nil, errors.Wrapf(ErrUnsupportedJVPType, "%s", method)
	}
}
