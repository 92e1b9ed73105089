package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - cpu.CPUBackend: reference float64 kernels
//   - autodiff.AutodiffBackend: decorator adding gradient tape recording and
//     dual-number (forward-mode) propagation on top of another backend
//
// Element-wise binary operations broadcast NumPy style. Shape errors panic
// (see PanicShape).
type Backend interface {
	// Element-wise binary operations
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations
	MulScalar(x *RawTensor, s float64) *RawTensor
	AddScalar(x *RawTensor, s float64) *RawTensor

	// Math operations (element-wise)
	Neg(x *RawTensor) *RawTensor
	Exp(x *RawTensor) *RawTensor
	Sin(x *RawTensor) *RawTensor
	Cos(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor

	// Matrix operations
	// MatMul: [M, K] @ [K, N] -> [M, N]
	MatMul(a, b *RawTensor) *RawTensor
	// BatchMatVec: [B, M, N] x [B, N] -> [B, M]
	BatchMatVec(a, x *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	// Transpose swaps the two axes of a 2D tensor.
	Transpose(t *RawTensor) *RawTensor

	// Reduction operations
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Manipulation operations
	// Repeat tiles x n times along axis 0: [B, ...] -> [n*B, ...], replica major.
	Repeat(x *RawTensor, n int) *RawTensor
	// Narrow selects [start, start+length) along dim.
	Narrow(x *RawTensor, dim, start, length int) *RawTensor
	// Cat concatenates along dim.
	Cat(tensors []*RawTensor, dim int) *RawTensor

	// Metadata
	Name() string
}
