package tensor

// Composite operations expressed through Backend primitives. Running them on
// an autodiff backend records every step, so they differentiate for free.

// Square returns x*x.
func Square(b Backend, x *RawTensor) *RawTensor {
	return b.Mul(x, x)
}

// Sum reduces every axis of x, returning a tensor of shape [1].
func Sum(b Backend, x *RawTensor) *RawTensor {
	flat := b.Reshape(x, Shape{x.NumElements()})
	return b.SumDim(flat, 0, true)
}

// Mean returns the mean over all elements of x, shape [1].
func Mean(b Backend, x *RawTensor) *RawTensor {
	return b.MulScalar(Sum(b, x), 1/float64(x.NumElements()))
}

// MeanDim averages along dim.
func MeanDim(b Backend, x *RawTensor, dim int, keepDim bool) *RawTensor {
	if dim < 0 {
		dim += len(x.Shape())
	}
	n := x.Shape()[dim]
	return b.MulScalar(b.SumDim(x, dim, keepDim), 1/float64(n))
}

// RowDot returns the per-row inner product of two [N, D] tensors as [N, 1].
func RowDot(b Backend, x, y *RawTensor) *RawTensor {
	return b.SumDim(b.Mul(x, y), 1, true)
}
