package ops

import "github.com/born-ml/nigbms/internal/tensor"

// AddOp represents element-wise addition: output = a + b.
//
// Backward: both inputs receive the output gradient, reduced over any
// broadcast dimensions.
type AddOp struct{ binaryOp }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, a.Shape(), backend),
		reduceBroadcast(outputGrad, b.Shape(), backend),
	}
}

// SubOp represents element-wise subtraction: output = a - b.
type SubOp struct{ binaryOp }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for subtraction: (grad, -grad).
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, a.Shape(), backend),
		reduceBroadcast(backend.Neg(outputGrad), b.Shape(), backend),
	}
}

// MulOp represents an element-wise multiplication operation: output = a * b.
//
// Backward pass:
//   - d(a*b)/da = b, so grad_a = outputGrad * b
//   - d(a*b)/db = a, so grad_b = outputGrad * a
type MulOp struct{ binaryOp }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape(), backend),
	}
}

// DivOp represents element-wise division: output = a / b.
//
// Backward pass:
//   - grad_a = outputGrad / b
//   - grad_b = -outputGrad * output / b
type DivOp struct{ binaryOp }

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for division.
func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.Div(outputGrad, b)
	gradB := backend.Neg(backend.Div(backend.Mul(outputGrad, op.output), b))
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}
