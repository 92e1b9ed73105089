// Package ops defines operation interfaces and implementations for automatic differentiation.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the backend
//   - Backward pass: computes gradients for inputs given output gradient
//
// Backward receives the plain (non-recording) backend, so gradient
// computations are never themselves recorded.
package ops

import "github.com/born-ml/nigbms/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor;
	// a nil entry means no gradient flows to that input.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   outputGrad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)] (gradient flows equally to both inputs)
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// binaryOp holds the bookkeeping shared by two-input operations.
type binaryOp struct {
	inputs []*tensor.RawTensor // [a, b]
	output *tensor.RawTensor
}

// Inputs returns the input tensors [a, b].
func (op *binaryOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *binaryOp) Output() *tensor.RawTensor {
	return op.output
}

// unaryOp holds the bookkeeping shared by single-input operations.
type unaryOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensors [x].
func (op *unaryOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *unaryOp) Output() *tensor.RawTensor {
	return op.output
}
