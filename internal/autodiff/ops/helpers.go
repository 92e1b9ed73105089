package ops

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	// Sum away leading dimensions the target does not have
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	// Sum along dimensions where target is 1
	for i, dim := range targetShape {
		if dim == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// broadcastTo expands grad to shape by adding it to zeros of that shape.
func broadcastTo(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	return backend.Add(tensor.Zeros(shape), grad)
}
