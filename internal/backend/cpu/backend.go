// Package cpu implements the reference CPU backend: plain float64 kernels
// with NumPy-style broadcasting.
//
// The CPU backend computes primal values only. Tangents of dual tensors are
// ignored here and handled by the autodiff decorator.
package cpu

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct{}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with NumPy-style broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("sub", a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("mul", a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with NumPy-style broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("div", a, b, func(x, y float64) float64 { return x / y })
}

// binaryOp applies fn element-wise, broadcasting a and b to a common shape.
func binaryOp(name string, a, b *tensor.RawTensor, fn func(x, y float64) float64) *tensor.RawTensor {
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		tensor.PanicShape("%s: %v", name, err)
	}
	result := tensor.Zeros(outShape)
	out, aData, bData := result.Data(), a.Data(), b.Data()

	// Fast path: same shape, no index arithmetic
	if a.Shape().Equal(b.Shape()) {
		for i := range out {
			out[i] = fn(aData[i], bData[i])
		}
		return result
	}

	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)
	for i := range out {
		out[i] = fn(aData[computeFlatIndex(i, outStrides, aStrides)],
			bData[computeFlatIndex(i, outStrides, bStrides)])
	}
	return result
}
