package autodiff

import (
	"github.com/born-ml/nigbms/internal/autodiff/ops"
	"github.com/born-ml/nigbms/internal/tensor"
)

// Differentiable is the non-generic view of an AutodiffBackend, for code that
// needs dual numbers and gradients but does not care about the inner backend.
type Differentiable interface {
	tensor.Backend

	Tape() *GradientTape
	MakeDual(x, v *tensor.RawTensor) *tensor.RawTensor
	UnpackDual(y *tensor.RawTensor) (primal, tangent *tensor.RawTensor)
	Primal(x *tensor.RawTensor) *tensor.RawTensor
	Gradient(output, outputGrad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error)
	NoGrad(fn func())
}

var _ Differentiable = (*AutodiffBackend[tensor.Backend])(nil)

// MakeDual returns the dual number x + εv: a view of x carrying v as its
// tangent. Gradients flowing into the result flow back to x; v is a leaf.
func (b *AutodiffBackend[B]) MakeDual(x, v *tensor.RawTensor) *tensor.RawTensor {
	if !v.Shape().Equal(x.Shape()) {
		tensor.PanicShape("MakeDual: tangent shape %v does not match primal shape %v", v.Shape(), x.Shape())
	}
	dual := x.WithTangent(v)
	b.record(ops.NewIdentityOp(x, dual))
	return dual
}

// Primal returns the value part of x. For an ordinary tensor that is x itself;
// for a dual number it is a tangent-free view connected to x on the tape.
func (b *AutodiffBackend[B]) Primal(x *tensor.RawTensor) *tensor.RawTensor {
	if !x.IsDual() {
		return x
	}
	p := x.View()
	b.record(ops.NewIdentityOp(x, p))
	return p
}

// UnpackDual splits y into its primal and tangent. The tangent is nil when y
// is not a dual number, i.e. when the computation producing y did not
// propagate tangents.
func (b *AutodiffBackend[B]) UnpackDual(y *tensor.RawTensor) (primal, tangent *tensor.RawTensor) {
	return b.Primal(y), y.Tangent()
}
