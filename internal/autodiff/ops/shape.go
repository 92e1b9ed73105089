package ops

import "github.com/born-ml/nigbms/internal/tensor"

// ReshapeOp records a reshape operation for autodiff.
//
// Backward: reshape the output gradient back to the input shape.
type ReshapeOp struct{ unaryOp }

// NewReshapeOp creates a new Reshape operation.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unaryOp{input: input, output: output}}
}

// Backward computes gradients for Reshape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// TransposeOp records a 2D transpose. Backward transposes the gradient back.
type TransposeOp struct{ unaryOp }

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(input, output *tensor.RawTensor) *TransposeOp {
	return &TransposeOp{unaryOp{input: input, output: output}}
}

// Backward computes gradients for Transpose.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Transpose(outputGrad)}
}

// SumDimOp represents a reduction sum along a dimension.
//
// Backward: the output gradient is broadcast back over the reduced axis.
// If keepDim=false, the reduced axis is re-inserted first.
type SumDimOp struct {
	unaryOp
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	if dim < 0 {
		dim += len(x.Shape())
	}
	return &SumDimOp{unaryOp: unaryOp{input: x, output: output}, dim: dim, keepDim: keepDim}
}

// Backward computes input gradients for sum reduction.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		kept := op.input.Shape().Clone()
		kept[op.dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	return []*tensor.RawTensor{broadcastTo(grad, op.input.Shape(), backend)}
}

// RepeatOp represents tiling along axis 0: [B, ...] -> [n*B, ...].
//
// Backward: the gradient is viewed as [n, B*...] and summed over the replicas.
type RepeatOp struct {
	unaryOp
	n int
}

// NewRepeatOp creates a new RepeatOp.
func NewRepeatOp(x, output *tensor.RawTensor, n int) *RepeatOp {
	return &RepeatOp{unaryOp: unaryOp{input: x, output: output}, n: n}
}

// Backward computes input gradients for Repeat.
func (op *RepeatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.input.Shape()
	stacked := backend.Reshape(outputGrad, tensor.Shape{op.n, inShape.NumElements()})
	summed := backend.SumDim(stacked, 0, false)
	return []*tensor.RawTensor{backend.Reshape(summed, inShape)}
}

// NarrowOp represents slicing [start, start+length) along dim.
//
// Backward: the gradient is padded with zeros back to the input shape.
type NarrowOp struct {
	unaryOp
	dim, start, length int
}

// NewNarrowOp creates a new NarrowOp.
func NewNarrowOp(x, output *tensor.RawTensor, dim, start, length int) *NarrowOp {
	if dim < 0 {
		dim += len(x.Shape())
	}
	return &NarrowOp{unaryOp: unaryOp{input: x, output: output}, dim: dim, start: start, length: length}
}

// Backward computes input gradients for Narrow.
func (op *NarrowOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.input.Shape()
	pieces := make([]*tensor.RawTensor, 0, 3)
	if op.start > 0 {
		before := inShape.Clone()
		before[op.dim] = op.start
		pieces = append(pieces, tensor.Zeros(before))
	}
	pieces = append(pieces, outputGrad)
	if rest := inShape[op.dim] - op.start - op.length; rest > 0 {
		after := inShape.Clone()
		after[op.dim] = rest
		pieces = append(pieces, tensor.Zeros(after))
	}
	if len(pieces) == 1 {
		return []*tensor.RawTensor{outputGrad}
	}
	return []*tensor.RawTensor{backend.Cat(pieces, op.dim)}
}

// CatOp represents concatenation along dim.
//
// Backward: each input receives its own slice of the output gradient.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a new CatOp.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	if dim < 0 {
		dim += len(output.Shape())
	}
	return &CatOp{inputs: inputs, output: output, dim: dim}
}

// Backward computes input gradients for Cat.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		size := in.Shape()[op.dim]
		grads[i] = backend.Narrow(outputGrad, op.dim, offset, size)
		offset += size
	}
	return grads
}

// Inputs returns the concatenated tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the concatenation result.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}
