package cpu

import (
	"math"

	"github.com/born-ml/nigbms/internal/tensor"
)

// unaryOp applies fn element-wise into a fresh tensor.
func unaryOp(x *tensor.RawTensor, fn func(float64) float64) *tensor.RawTensor {
	result := tensor.Zeros(x.Shape())
	out := result.Data()
	for i, v := range x.Data() {
		out[i] = fn(v)
	}
	return result
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return unaryOp(x, func(v float64) float64 { return v * s })
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return unaryOp(x, func(v float64) float64 { return v + s })
}

// Neg computes -x.
func (cpu *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp(x, func(v float64) float64 { return -v })
}

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp(x, math.Exp)
}

// Sin computes sin(x) element-wise.
func (cpu *CPUBackend) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp(x, math.Sin)
}

// Cos computes cos(x) element-wise.
func (cpu *CPUBackend) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp(x, math.Cos)
}

// Tanh computes tanh(x) element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryOp(x, math.Tanh)
}
