package cpu

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// computeBroadcastStridesForShape computes strides for broadcasting a shape to outShape.
// Returns strides where dimensions of size 1 have stride 0 (for broadcasting).
func computeBroadcastStridesForShape(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)
	offset := outDim - len(inShape)
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		if inIdx < 0 || inShape[inIdx] == 1 {
			// Padded or broadcast dimension
			continue
		}
		strides[i] = origStrides[inIdx]
	}
	return strides
}

// computeFlatIndex computes the flat index in the source array for a given output index.
// outStrides: strides of the output shape.
// inStrides: broadcast-adjusted strides of the input shape.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}
