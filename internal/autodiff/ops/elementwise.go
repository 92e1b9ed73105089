package ops

import "github.com/born-ml/nigbms/internal/tensor"

// MulScalarOp represents output = s * x.
type MulScalarOp struct {
	unaryOp
	scalar float64
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(x, output *tensor.RawTensor, s float64) *MulScalarOp {
	return &MulScalarOp{unaryOp: unaryOp{input: x, output: output}, scalar: s}
}

// Backward computes grad_x = s * outputGrad.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// AddScalarOp represents output = x + s.
type AddScalarOp struct{ unaryOp }

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{unaryOp{input: x, output: output}}
}

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// NegOp represents output = -x.
type NegOp struct{ unaryOp }

// NewNegOp creates a new NegOp.
func NewNegOp(x, output *tensor.RawTensor) *NegOp {
	return &NegOp{unaryOp{input: x, output: output}}
}

// Backward computes grad_x = -outputGrad.
func (op *NegOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Neg(outputGrad)}
}

// ExpOp represents output = exp(x).
//
// Backward: d(exp(x))/dx = exp(x), reusing the forward output.
type ExpOp struct{ unaryOp }

// NewExpOp creates a new ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{unaryOp{input: x, output: output}}
}

// Backward computes grad_x = outputGrad * exp(x).
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// SinOp represents output = sin(x).
type SinOp struct{ unaryOp }

// NewSinOp creates a new SinOp.
func NewSinOp(x, output *tensor.RawTensor) *SinOp {
	return &SinOp{unaryOp{input: x, output: output}}
}

// Backward computes grad_x = outputGrad * cos(x).
func (op *SinOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Cos(op.input))}
}

// CosOp represents output = cos(x).
type CosOp struct{ unaryOp }

// NewCosOp creates a new CosOp.
func NewCosOp(x, output *tensor.RawTensor) *CosOp {
	return &CosOp{unaryOp{input: x, output: output}}
}

// Backward computes grad_x = -outputGrad * sin(x).
func (op *CosOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Neg(backend.Mul(outputGrad, backend.Sin(op.input)))}
}

// TanhOp represents output = tanh(x).
//
// Backward: d(tanh(x))/dx = 1 - tanh²(x), reusing the forward output.
type TanhOp struct{ unaryOp }

// NewTanhOp creates a new TanhOp.
func NewTanhOp(x, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{unaryOp{input: x, output: output}}
}

// Backward computes grad_x = outputGrad * (1 - tanh²(x)).
func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	sq := backend.Mul(op.output, op.output)
	deriv := backend.AddScalar(backend.Neg(sq), 1)
	return []*tensor.RawTensor{backend.Mul(outputGrad, deriv)}
}

// IdentityOp represents output = x where output is a distinct tensor sharing
// storage with x (dual-number views, primal views).
type IdentityOp struct{ unaryOp }

// NewIdentityOp creates a new IdentityOp.
func NewIdentityOp(x, output *tensor.RawTensor) *IdentityOp {
	return &IdentityOp{unaryOp{input: x, output: output}}
}

// Backward passes the gradient through unchanged.
func (op *IdentityOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}
