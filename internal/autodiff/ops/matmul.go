package ops

import "github.com/born-ml/nigbms/internal/tensor"

// MatMulOp represents matrix multiplication: output = a @ b.
//
// Backward pass:
//   - grad_a = outputGrad @ b^T
//   - grad_b = a^T @ outputGrad
type MatMulOp struct{ binaryOp }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(b)),
		backend.MatMul(backend.Transpose(a), outputGrad),
	}
}

// BatchMatVecOp represents y[b] = A[b] @ x[b] with A: [B, M, N], x: [B, N].
//
// Backward pass:
//   - grad_A[b, i, j] = outputGrad[b, i] * x[b, j]
//   - grad_x[b] = A[b]^T @ outputGrad[b]
type BatchMatVecOp struct{ binaryOp }

// NewBatchMatVecOp creates a new BatchMatVecOp.
func NewBatchMatVecOp(a, x, output *tensor.RawTensor) *BatchMatVecOp {
	return &BatchMatVecOp{binaryOp{inputs: []*tensor.RawTensor{a, x}, output: output}}
}

// Backward computes input gradients for the batched matrix-vector product.
func (op *BatchMatVecOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	a, x := op.inputs[0], op.inputs[1]
	shape := a.Shape()
	batch, m, n := shape[0], shape[1], shape[2]

	gradA := tensor.Zeros(shape)
	gradX := tensor.Zeros(x.Shape())
	ga, gx := gradA.Data(), gradX.Data()
	aData, xData, g := a.Data(), x.Data(), outputGrad.Data()

	for bi := 0; bi < batch; bi++ {
		for i := 0; i < m; i++ {
			gi := g[bi*m+i]
			if gi == 0 {
				continue
			}
			base := (bi*m + i) * n
			for j := 0; j < n; j++ {
				ga[base+j] = gi * xData[bi*n+j]
				gx[bi*n+j] += aData[base+j] * gi
			}
		}
	}
	return []*tensor.RawTensor{gradA, gradX}
}
