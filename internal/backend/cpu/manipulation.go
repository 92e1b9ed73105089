package cpu

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// Reshape returns a copy of t with a new shape holding the same number of elements.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if newShape.NumElements() != t.NumElements() {
		tensor.PanicShape("reshape: cannot reshape %v into %v", t.Shape(), newShape)
	}
	result := tensor.Zeros(newShape)
	copy(result.Data(), t.Data())
	return result
}

// Transpose swaps the axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 2 {
		tensor.PanicShape("transpose: expected 2D tensor, got %v", shape)
	}
	rows, cols := shape[0], shape[1]
	result := tensor.Zeros(tensor.Shape{cols, rows})
	out, in := result.Data(), t.Data()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = in[i*cols+j]
		}
	}
	return result
}

// Repeat tiles x n times along axis 0. Row r of replica k lands at k*B+r,
// so the result reshapes to [n, B, ...].
func (cpu *CPUBackend) Repeat(x *tensor.RawTensor, n int) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) == 0 || n <= 0 {
		tensor.PanicShape("repeat: cannot repeat shape %v %d times", shape, n)
	}
	outShape := shape.Clone()
	outShape[0] *= n
	result := tensor.Zeros(outShape)
	out, in := result.Data(), x.Data()
	for k := 0; k < n; k++ {
		copy(out[k*len(in):(k+1)*len(in)], in)
	}
	return result
}

// Narrow selects the slice [start, start+length) along dim.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	dim = normalizeDim(dim, len(shape))
	if start < 0 || length <= 0 || start+length > shape[dim] {
		tensor.PanicShape("narrow: range [%d, %d) out of bounds for axis %d of %v", start, start+length, dim, shape)
	}
	outer, inner := splitAt(shape, dim)
	outShape := shape.Clone()
	outShape[dim] = length

	result := tensor.Zeros(outShape)
	out, in := result.Data(), x.Data()
	for o := 0; o < outer; o++ {
		src := in[(o*shape[dim]+start)*inner : (o*shape[dim]+start+length)*inner]
		copy(out[o*length*inner:(o+1)*length*inner], src)
	}
	return result
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		tensor.PanicShape("cat: no tensors")
	}
	first := tensors[0].Shape()
	dim = normalizeDim(dim, len(first))
	outShape := first.Clone()
	outShape[dim] = 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			tensor.PanicShape("cat: rank mismatch %v vs %v", s, first)
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				tensor.PanicShape("cat: shape mismatch %v vs %v on axis %d", s, first, d)
			}
		}
		outShape[dim] += s[dim]
	}

	outer, inner := splitAt(outShape, dim)
	result := tensor.Zeros(outShape)
	out := result.Data()
	offset := 0
	for _, t := range tensors {
		width := t.Shape()[dim] * inner
		in := t.Data()
		for o := 0; o < outer; o++ {
			dst := (o*outShape[dim])*inner + offset
			copy(out[dst:dst+width], in[o*width:(o+1)*width])
		}
		offset += width
	}
	return result
}

// normalizeDim resolves negative axes.
func normalizeDim(dim, rank int) int {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		tensor.PanicShape("axis %d out of range for rank %d", dim, rank)
	}
	return dim
}

// splitAt returns the product of the dimensions before and after dim.
func splitAt(shape tensor.Shape, dim int) (outer, inner int) {
	outer, inner = 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	return outer, inner
}
