package cpu_test

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"

	"github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/internal/tensor"
)

func fromSlice(data []float64, shape ...int) *tensor.RawTensor {
	return must.M1(tensor.FromSlice(data, tensor.Shape(shape)))
}

func TestElementwiseBroadcast(t *testing.T) {
	backend := cpu.New()
	a := fromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	bias := fromSlice([]float64{10, 20, 30}, 1, 3)
	col := fromSlice([]float64{2, 3}, 2, 1)

	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, backend.Add(a, bias).Data())
	assert.Equal(t, []float64{2, 4, 6, 12, 15, 18}, backend.Mul(a, col).Data())
	assert.Equal(t, []float64{-9, -18, -27, -6, -15, -24}, backend.Sub(a, bias).Data())
	assert.Equal(t, []float64{0.5, 1, 1.5, 4.0 / 3, 5.0 / 3, 2}, backend.Div(a, col).Data())
	assert.Equal(t, tensor.Shape{2, 3}, backend.Add(tensor.Scalar(1), a).Shape())

	assert.Panics(t, func() { backend.Add(a, fromSlice([]float64{1, 2}, 2)) })
}

func TestMatMul(t *testing.T) {
	backend := cpu.New()
	a := fromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := fromSlice([]float64{7, 8, 9, 10, 11, 12}, 3, 2)
	c := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, c.Data())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestBatchMatVec(t *testing.T) {
	backend := cpu.New()
	// diag(1,2) and [[0,1],[1,0]]
	a := fromSlice([]float64{1, 0, 0, 2, 0, 1, 1, 0}, 2, 2, 2)
	x := fromSlice([]float64{3, 4, 5, 6}, 2, 2)
	assert.Equal(t, []float64{3, 8, 6, 5}, backend.BatchMatVec(a, x).Data())
}

func TestManipulation(t *testing.T) {
	backend := cpu.New()
	x := fromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)

	tr := backend.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, tr.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tr.Data())

	rep := backend.Repeat(x, 2)
	assert.Equal(t, tensor.Shape{4, 3}, rep.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 1, 2, 3, 4, 5, 6}, rep.Data())

	nar := backend.Narrow(x, 1, 1, 2)
	assert.Equal(t, []float64{2, 3, 5, 6}, nar.Data())
	assert.Equal(t, []float64{4, 5, 6}, backend.Narrow(x, 0, 1, 1).Data())
	assert.Panics(t, func() { backend.Narrow(x, 1, 2, 2) })

	cat := backend.Cat([]*tensor.RawTensor{x, nar}, -1)
	assert.Equal(t, tensor.Shape{2, 5}, cat.Shape())
	assert.Equal(t, []float64{1, 2, 3, 2, 3, 4, 5, 6, 5, 6}, cat.Data())

	assert.Equal(t, tensor.Shape{3, 2}, backend.Reshape(x, tensor.Shape{3, 2}).Shape())
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{4}) })
}

func TestSumDim(t *testing.T) {
	backend := cpu.New()
	x := fromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)

	rows := backend.SumDim(x, 1, true)
	assert.Equal(t, tensor.Shape{2, 1}, rows.Shape())
	assert.Equal(t, []float64{6, 15}, rows.Data())

	cols := backend.SumDim(x, 0, false)
	assert.Equal(t, tensor.Shape{3}, cols.Shape())
	assert.Equal(t, []float64{5, 7, 9}, cols.Data())

	all := backend.SumDim(backend.SumDim(x, 1, false), 0, false)
	assert.Equal(t, 21.0, all.Item())
}

func TestMath(t *testing.T) {
	backend := cpu.New()
	x := fromSlice([]float64{0, 1}, 2)
	assert.Equal(t, []float64{0, -1}, backend.Neg(x).Data())
	assert.Equal(t, []float64{1, 3}, backend.AddScalar(backend.MulScalar(x, 2), 1).Data())
	assert.InDelta(t, 1.0, backend.Cos(x).Data()[0], 1e-15)
	assert.InDelta(t, 0.0, backend.Sin(x).Data()[0], 1e-15)
	assert.InDelta(t, 2.718281828, backend.Exp(x).Data()[1], 1e-8)
	assert.InDelta(t, 0.761594156, backend.Tanh(x).Data()[1], 1e-8)
}
