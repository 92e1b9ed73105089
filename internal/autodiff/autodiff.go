// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds two capabilities:
//
//   - Reverse mode: every operation is recorded on a GradientTape, so
//     gradients of any recorded tensor can be computed with Gradient.
//   - Forward mode: when an input carries a tangent (a dual number, see
//     MakeDual), the result's tangent is computed with the operation's JVP
//     rule. JVP rules are themselves expressed through recorded operations,
//     so tangents can be differentiated in reverse mode.
//
// Usage:
//
//	b := autodiff.New(cpu.New())
//	b.Tape().StartRecording()
//
//	x := b.MakeDual(theta, v)   // theta + εv
//	y, dy := b.UnpackDual(f(b, x))
//	grads, err := b.Gradient(y, tensor.Ones(y.Shape()), theta)
package autodiff

import (
	"github.com/born-ml/nigbms/internal/autodiff/ops"
	"github.com/born-ml/nigbms/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
// Useful for:
//   - Starting/stopping recording
//   - Clearing tape between iterations
//   - Inspecting recorded operations
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// record adds op to the tape if it is recording.
func (b *AutodiffBackend[B]) record(op ops.Operation) {
	if b.tape.IsRecording() {
		b.tape.Record(op)
	}
}

// expand broadcasts a tangent to the shape of the primal result.
func (b *AutodiffBackend[B]) expand(t *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if t.Shape().Equal(shape) {
		return t
	}
	return b.Add(t, tensor.Zeros(shape))
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.record(ops.NewAddOp(a, c, result))

	if ta, tc := a.Tangent(), c.Tangent(); ta != nil || tc != nil {
		var t *tensor.RawTensor
		switch {
		case tc == nil:
			t = ta
		case ta == nil:
			t = tc
		default:
			t = b.Add(ta, tc)
		}
		result.SetTangent(b.expand(t, result.Shape()))
	}
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.record(ops.NewSubOp(a, c, result))

	if ta, tc := a.Tangent(), c.Tangent(); ta != nil || tc != nil {
		var t *tensor.RawTensor
		switch {
		case tc == nil:
			t = ta
		case ta == nil:
			t = b.Neg(tc)
		default:
			t = b.Sub(ta, tc)
		}
		result.SetTangent(b.expand(t, result.Shape()))
	}
	return result
}

// Mul performs element-wise multiplication and records the operation.
//
// JVP: d(a*c) = da*c + a*dc.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.record(ops.NewMulOp(a, c, result))

	if ta, tc := a.Tangent(), c.Tangent(); ta != nil || tc != nil {
		var t *tensor.RawTensor
		if ta != nil {
			t = b.Mul(ta, b.Primal(c))
		}
		if tc != nil {
			right := b.Mul(b.Primal(a), tc)
			if t == nil {
				t = right
			} else {
				t = b.Add(t, right)
			}
		}
		result.SetTangent(b.expand(t, result.Shape()))
	}
	return result
}

// Div performs element-wise division and records the operation.
//
// JVP: d(a/c) = (da - (a/c)*dc) / c.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.record(ops.NewDivOp(a, c, result))

	if ta, tc := a.Tangent(), c.Tangent(); ta != nil || tc != nil {
		pc := b.Primal(c)
		var num *tensor.RawTensor
		switch {
		case tc == nil:
			num = ta
		case ta == nil:
			num = b.Neg(b.Mul(result, tc))
		default:
			num = b.Sub(ta, b.Mul(result, tc))
		}
		result.SetTangent(b.expand(b.Div(num, pc), result.Shape()))
	}
	return result
}

// MulScalar multiplies by a constant and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	result := b.inner.MulScalar(x, s)
	b.record(ops.NewMulScalarOp(x, result, s))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.MulScalar(tx, s))
	}
	return result
}

// AddScalar adds a constant and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	result := b.inner.AddScalar(x, s)
	b.record(ops.NewAddScalarOp(x, result))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(tx)
	}
	return result
}

// Neg negates element-wise and records the operation.
func (b *AutodiffBackend[B]) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Neg(x)
	b.record(ops.NewNegOp(x, result))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Neg(tx))
	}
	return result
}

// Exp computes exp(x) and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Exp(x)
	b.record(ops.NewExpOp(x, result))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Mul(result, tx))
	}
	return result
}

// Sin computes sin(x) and records the operation.
func (b *AutodiffBackend[B]) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sin(x)
	b.record(ops.NewSinOp(x, result))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Mul(b.Cos(b.Primal(x)), tx))
	}
	return result
}

// Cos computes cos(x) and records the operation.
func (b *AutodiffBackend[B]) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Cos(x)
	b.record(ops.NewCosOp(x, result))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Neg(b.Mul(b.Sin(b.Primal(x)), tx)))
	}
	return result
}

// Tanh computes tanh(x) and records the operation.
//
// JVP: d(tanh x) = (1 - tanh²x) dx.
func (b *AutodiffBackend[B]) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Tanh(x)
	b.record(ops.NewTanhOp(x, result))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Sub(tx, b.Mul(b.Mul(result, result), tx)))
	}
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.record(ops.NewMatMulOp(a, c, result))

	if ta, tc := a.Tangent(), c.Tangent(); ta != nil || tc != nil {
		var t *tensor.RawTensor
		if ta != nil {
			t = b.MatMul(ta, b.Primal(c))
		}
		if tc != nil {
			right := b.MatMul(b.Primal(a), tc)
			if t == nil {
				t = right
			} else {
				t = b.Add(t, right)
			}
		}
		result.SetTangent(t)
	}
	return result
}

// BatchMatVec computes a batched matrix-vector product and records the operation.
func (b *AutodiffBackend[B]) BatchMatVec(a, x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.BatchMatVec(a, x)
	b.record(ops.NewBatchMatVecOp(a, x, result))

	if ta, tx := a.Tangent(), x.Tangent(); ta != nil || tx != nil {
		var t *tensor.RawTensor
		if ta != nil {
			t = b.BatchMatVec(ta, b.Primal(x))
		}
		if tx != nil {
			right := b.BatchMatVec(b.Primal(a), tx)
			if t == nil {
				t = right
			} else {
				t = b.Add(t, right)
			}
		}
		result.SetTangent(t)
	}
	return result
}

// Reshape changes the shape and records the operation.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(x, newShape)
	b.record(ops.NewReshapeOp(x, result))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Reshape(tx, newShape))
	}
	return result
}

// Transpose swaps the axes of a 2D tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Transpose(x)
	b.record(ops.NewTransposeOp(x, result))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Transpose(tx))
	}
	return result
}

// SumDim sums along a dimension and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.SumDim(x, dim, keepDim)
	b.record(ops.NewSumDimOp(x, result, dim, keepDim))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.SumDim(tx, dim, keepDim))
	}
	return result
}

// Repeat tiles along axis 0 and records the operation.
func (b *AutodiffBackend[B]) Repeat(x *tensor.RawTensor, n int) *tensor.RawTensor {
	result := b.inner.Repeat(x, n)
	b.record(ops.NewRepeatOp(x, result, n))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Repeat(tx, n))
	}
	return result
}

// Narrow slices along a dimension and records the operation.
func (b *AutodiffBackend[B]) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	result := b.inner.Narrow(x, dim, start, length)
	b.record(ops.NewNarrowOp(x, result, dim, start, length))

	if tx := x.Tangent(); tx != nil {
		result.SetTangent(b.Narrow(tx, dim, start, length))
	}
	return result
}

// Cat concatenates along a dimension and records the operation.
// Inputs without a tangent contribute zeros to the result's tangent.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Cat(tensors, dim)
	b.record(ops.NewCatOp(tensors, result, dim))

	anyDual := false
	for _, t := range tensors {
		anyDual = anyDual || t.IsDual()
	}
	if anyDual {
		tangents := make([]*tensor.RawTensor, len(tensors))
		for i, t := range tensors {
			if t.IsDual() {
				tangents[i] = t.Tangent()
			} else {
				tangents[i] = tensor.ZerosLike(t)
			}
		}
		result.SetTangent(b.Cat(tangents, dim))
	}
	return result
}

// Gradient computes gradients of output with respect to inputs, seeded with
// outputGrad. The walk runs on the inner backend, so nothing is recorded and
// no tangents are propagated while differentiating.
func (b *AutodiffBackend[B]) Gradient(
	output, outputGrad *tensor.RawTensor,
	inputs ...*tensor.RawTensor,
) ([]*tensor.RawTensor, error) {
	return b.tape.Gradient(output, outputGrad, b.inner, inputs...)
}

// NoGrad runs fn with recording paused. Tangents are still propagated.
func (b *AutodiffBackend[B]) NoGrad(fn func()) {
	NoGrad(b.tape, fn)
}

// NoGrad runs fn with the tape's recording paused, restoring the previous
// state afterwards (also on panic).
func NoGrad(tape *GradientTape, fn func()) {
	was := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if was {
			tape.StartRecording()
		}
	}()
	fn()
}
