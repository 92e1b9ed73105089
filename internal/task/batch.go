package task

import (
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/internal/tensor"
)

// Batch stacks dense linear systems of one size. It is the tau that linear
// solvers receive.
type Batch struct {
	Params  []TaskParams
	A       *tensor.RawTensor // [bs, n, n]
	B       *tensor.RawTensor // [bs, n]
	X       *tensor.RawTensor // [bs, n], nil unless every task has a ground truth
	Rtol    *tensor.RawTensor // [bs, 1]
	Maxiter int               // largest iteration budget in the batch
}

// NewBatch stacks tasks. All tasks must have the same dimension.
func NewBatch(tasks []*DenseLinearSystemTask) (*Batch, error) {
	if len(tasks) == 0 {
		return nil, errors.Wrap(ErrInvalidTask, "empty batch")
	}
	bs, n := len(tasks), tasks[0].Dim()

	a := tensor.Zeros(tensor.Shape{bs, n, n})
	b := tensor.Zeros(tensor.Shape{bs, n})
	rtol := tensor.Zeros(tensor.Shape{bs, 1})
	x := tensor.Zeros(tensor.Shape{bs, n})
	haveX := true
	batch := &Batch{Params: make([]TaskParams, bs)}

	for i, t := range tasks {
		if t.Dim() != n || t.B.NumElements() != n {
			return nil, errors.Wrapf(ErrInvalidTask, "task %d has dimension %d, batch has %d", i, t.Dim(), n)
		}
		copy(a.Data()[i*n*n:(i+1)*n*n], t.A.Data())
		copy(b.Data()[i*n:(i+1)*n], t.B.Data())
		rtol.Data()[i] = t.Rtol.Item()
		if m := int(t.Maxiter.Item()); m > batch.Maxiter {
			batch.Maxiter = m
		}
		if t.X == nil {
			haveX = false
		} else {
			copy(x.Data()[i*n:(i+1)*n], t.X.Data())
		}
		batch.Params[i] = t.Params
	}

	batch.A, batch.B, batch.Rtol = a, b, rtol
	if haveX {
		batch.X = x
	}
	return batch, nil
}

// Size returns the batch size.
func (b *Batch) Size() int { return b.A.Shape()[0] }

// Dim returns the system dimension.
func (b *Batch) Dim() int { return b.A.Shape()[1] }

// Features returns the right-hand sides.
func (b *Batch) Features() *tensor.RawTensor { return b.B }

// Repeat tiles every per-task tensor n times along the batch axis.
func (b *Batch) Repeat(n int) Task {
	backend := cpu.New()
	out := &Batch{
		A:       backend.Repeat(b.A, n),
		B:       backend.Repeat(b.B, n),
		Rtol:    backend.Repeat(b.Rtol, n),
		Maxiter: b.Maxiter,
	}
	if b.X != nil {
		out.X = backend.Repeat(b.X, n)
	}
	for k := 0; k < n; k++ {
		out.Params = append(out.Params, b.Params...)
	}
	return out
}

// Task returns instance i as a dense task. Its Maxiter is the batch budget.
func (b *Batch) Task(i int) *DenseLinearSystemTask {
	n := b.Dim()
	t := &DenseLinearSystemTask{
		A:       must.M1(tensor.FromSlice(b.A.Data()[i*n*n:(i+1)*n*n], tensor.Shape{n, n})),
		B:       must.M1(tensor.FromSlice(b.B.Data()[i*n:(i+1)*n], tensor.Shape{n})),
		Rtol:    tensor.Scalar(b.Rtol.Data()[i]),
		Maxiter: tensor.Scalar(float64(b.Maxiter)),
	}
	if i < len(b.Params) {
		t.Params = b.Params[i]
	}
	if b.X != nil {
		t.X = must.M1(tensor.FromSlice(b.X.Data()[i*n:(i+1)*n], tensor.Shape{n}))
	}
	return t
}
