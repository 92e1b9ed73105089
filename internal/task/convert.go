package task

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/nigbms/internal/tensor"
)

// ErrInvalidTask is returned when a task cannot be converted.
var ErrInvalidTask = errors.New("invalid task")

// SparseToDense expands the CSR operator and wraps the vectors and scalars in
// tensors. The ground truth stays absent when it is absent.
func SparseToDense(t *SparseLinearSystemTask) *DenseLinearSystemTask {
	rows, cols := t.A.Dims()
	a := tensor.Zeros(tensor.Shape{rows, cols})
	for i := 0; i < rows; i++ {
		for k := t.A.RowPtr[i]; k < t.A.RowPtr[i+1]; k++ {
			a.Data()[i*cols+t.A.ColIdx[k]] += t.A.Values[k]
		}
	}

	dense := &DenseLinearSystemTask{
		Params:  t.Params,
		A:       a,
		B:       vector(t.B),
		Rtol:    tensor.Scalar(t.Rtol),
		Maxiter: tensor.Scalar(float64(t.Maxiter)),
	}
	if t.X != nil {
		dense.X = vector(t.X)
	}
	return dense
}

// DenseToSparse compresses the dense operator to CSR (dropping exact zeros)
// and unwraps the vectors and scalars. It fails when the operator is not
// square, a vector has the wrong length, a scalar field holds more than one
// value, or Maxiter is not an integer.
func DenseToSparse(t *DenseLinearSystemTask) (*SparseLinearSystemTask, error) {
	shape := t.A.Shape()
	if len(shape) != 2 || shape[0] != shape[1] {
		return nil, errors.Wrapf(ErrInvalidTask, "operator shape %v is not square", shape)
	}
	n := shape[0]
	if t.B == nil || t.B.NumElements() != n {
		return nil, errors.Wrapf(ErrInvalidTask, "right-hand side does not have %d entries", n)
	}
	if t.X != nil && t.X.NumElements() != n {
		return nil, errors.Wrapf(ErrInvalidTask, "ground truth has %d entries, want %d", t.X.NumElements(), n)
	}
	if t.Rtol == nil || t.Rtol.NumElements() != 1 {
		return nil, errors.Wrap(ErrInvalidTask, "rtol must hold a single value")
	}
	if t.Maxiter == nil || t.Maxiter.NumElements() != 1 {
		return nil, errors.Wrap(ErrInvalidTask, "maxiter must hold a single value")
	}
	maxiter := t.Maxiter.Item()
	if maxiter != math.Trunc(maxiter) || math.IsInf(maxiter, 0) {
		return nil, errors.Wrapf(ErrInvalidTask, "maxiter %g is not an integer", maxiter)
	}

	a := mat.NewDense(n, n, append([]float64(nil), t.A.Data()...))
	sparse := &SparseLinearSystemTask{
		Params:  t.Params,
		A:       CSRFromDense(a),
		B:       append([]float64(nil), t.B.Data()...),
		Rtol:    t.Rtol.Item(),
		Maxiter: int(maxiter),
	}
	if t.X != nil {
		sparse.X = append([]float64(nil), t.X.Data()...)
	}
	return sparse, nil
}

func vector(v []float64) *tensor.RawTensor {
	t := tensor.Zeros(tensor.Shape{len(v)})
	copy(t.Data(), v)
	return t
}
