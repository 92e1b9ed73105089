package task

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nigbms/internal/tensor"
)

// Relative closeness used for the sparse tolerance field (numpy isclose defaults).
const (
	rtolAbsTol = 1e-8
	rtolRelTol = 1e-5
)

// DenseLinearSystemTask is a linear system A x = b held in tensors.
type DenseLinearSystemTask struct {
	Params  TaskParams
	A       *tensor.RawTensor // [n, n]
	B       *tensor.RawTensor // [n]
	X       *tensor.RawTensor // [n] ground truth, nil when absent
	Rtol    *tensor.RawTensor // scalar
	Maxiter *tensor.RawTensor // scalar holding an integer value
}

// Dim returns n.
func (t *DenseLinearSystemTask) Dim() int {
	return t.A.Shape()[0]
}

// Equal reports element-wise equality of every field. The ground truth is
// equal only when absent on both sides or present and equal on both sides.
func (t *DenseLinearSystemTask) Equal(o *DenseLinearSystemTask) bool {
	return tensorEqual(t.A, o.A) &&
		tensorEqual(t.B, o.B) &&
		tensorEqual(t.X, o.X) &&
		tensorEqual(t.Rtol, o.Rtol) &&
		tensorEqual(t.Maxiter, o.Maxiter)
}

// SparseLinearSystemTask is a linear system A x = b with a CSR operator.
type SparseLinearSystemTask struct {
	Params  TaskParams
	A       *CSR
	B       []float64
	X       []float64 // ground truth, nil when absent
	Rtol    float64
	Maxiter int
}

// Equal compares the operator numerically, the vectors exactly, rtol with a
// relative closeness test and maxiter exactly. A ground truth present on one
// side only makes the tasks unequal.
func (t *SparseLinearSystemTask) Equal(o *SparseLinearSystemTask) bool {
	return t.A.Equal(o.A) &&
		floats.Equal(t.B, o.B) &&
		optionalEqual(t.X, o.X) &&
		isClose(t.Rtol, o.Rtol) &&
		t.Maxiter == o.Maxiter
}

func tensorEqual(a, b *tensor.RawTensor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Shape().Equal(b.Shape()) && floats.Equal(a.Data(), b.Data())
}

func optionalEqual(a, b []float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return floats.Equal(a, b)
}

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= rtolAbsTol+rtolRelTol*math.Abs(b)
}

// Size returns 1.
func (t *DenseLinearSystemTask) Size() int { return 1 }

// Features returns the right-hand side as a [1, n] row.
func (t *DenseLinearSystemTask) Features() *tensor.RawTensor {
	return t.B.Reshaped(tensor.Shape{1, t.B.NumElements()})
}

// Repeat returns a batch holding t n times.
func (t *DenseLinearSystemTask) Repeat(n int) Task {
	b, err := NewBatch([]*DenseLinearSystemTask{t})
	if err != nil {
		panic(err)
	}
	return b.Repeat(n)
}
