package cpu

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
//
// Uses i-k-j loop order so the inner loop walks both b and the result
// row-contiguously.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 || aShape[1] != bShape[0] {
		tensor.PanicShape("matmul: incompatible shapes %v @ %v", aShape, bShape)
	}
	m, k, n := aShape[0], aShape[1], bShape[1]

	result := tensor.Zeros(tensor.Shape{m, n})
	out, aData, bData := result.Data(), a.Data(), b.Data()
	for i := 0; i < m; i++ {
		row := out[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			aip := aData[i*k+p]
			if aip == 0 {
				continue
			}
			bRow := bData[p*n : (p+1)*n]
			for j := range row {
				row[j] += aip * bRow[j]
			}
		}
	}
	return result
}

// BatchMatVec multiplies a batch of matrices by a batch of vectors:
// [B, M, N] x [B, N] -> [B, M].
func (cpu *CPUBackend) BatchMatVec(a, x *tensor.RawTensor) *tensor.RawTensor {
	aShape, xShape := a.Shape(), x.Shape()
	if len(aShape) != 3 || len(xShape) != 2 || aShape[0] != xShape[0] || aShape[2] != xShape[1] {
		tensor.PanicShape("batchmatvec: incompatible shapes %v x %v", aShape, xShape)
	}
	batch, m, n := aShape[0], aShape[1], aShape[2]

	result := tensor.Zeros(tensor.Shape{batch, m})
	out, aData, xData := result.Data(), a.Data(), x.Data()
	for bi := 0; bi < batch; bi++ {
		xv := xData[bi*n : (bi+1)*n]
		for i := 0; i < m; i++ {
			row := aData[(bi*m+i)*n : (bi*m+i+1)*n]
			var sum float64
			for j, aij := range row {
				sum += aij * xv[j]
			}
			out[bi*m+i] = sum
		}
	}
	return result
}
