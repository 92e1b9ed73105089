package cpu

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// SumDim sums along dim. With keepDim the reduced axis stays with size 1.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = normalizeDim(dim, len(shape))
	outer, inner := splitAt(shape, dim)
	size := shape[dim]

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, len(shape)-1)
		outShape = append(outShape, shape[:dim]...)
		outShape = append(outShape, shape[dim+1:]...)
	}

	result := tensor.Zeros(outShape)
	out, in := result.Data(), x.Data()
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			src := in[(o*size+k)*inner : (o*size+k+1)*inner]
			dst := out[o*inner : (o+1)*inner]
			for i, v := range src {
				dst[i] += v
			}
		}
	}
	return result
}
