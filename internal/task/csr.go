package task

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidCSR is returned when CSR arrays are inconsistent.
var ErrInvalidCSR = errors.New("invalid CSR matrix")

// CSR is a compressed sparse row matrix. Row i holds the entries
// Values[RowPtr[i]:RowPtr[i+1]] at columns ColIdx[RowPtr[i]:RowPtr[i+1]].
// Duplicate column entries in a row add up.
//
// CSR implements gonum's mat.Matrix.
type CSR struct {
	rows, cols int
	RowPtr     []int
	ColIdx     []int
	Values     []float64
}

var _ mat.Matrix = (*CSR)(nil)

// NewCSR validates and wraps the standard CSR triple. The slices are not copied.
func NewCSR(rows, cols int, rowPtr, colIdx []int, values []float64) (*CSR, error) {
	switch {
	case rows <= 0 || cols <= 0:
		return nil, errors.Wrapf(ErrInvalidCSR, "dims %dx%d", rows, cols)
	case len(rowPtr) != rows+1:
		return nil, errors.Wrapf(ErrInvalidCSR, "row pointer length %d for %d rows", len(rowPtr), rows)
	case len(colIdx) != len(values):
		return nil, errors.Wrapf(ErrInvalidCSR, "%d column indices for %d values", len(colIdx), len(values))
	case rowPtr[0] != 0 || rowPtr[rows] != len(values):
		return nil, errors.Wrapf(ErrInvalidCSR, "row pointer must span [0, %d], got [%d, %d]",
			len(values), rowPtr[0], rowPtr[rows])
	}
	for i := 0; i < rows; i++ {
		if rowPtr[i] > rowPtr[i+1] {
			return nil, errors.Wrapf(ErrInvalidCSR, "row pointer decreases at row %d", i)
		}
	}
	for k, j := range colIdx {
		if j < 0 || j >= cols {
			return nil, errors.Wrapf(ErrInvalidCSR, "column index %d out of range at entry %d", j, k)
		}
	}
	return &CSR{rows: rows, cols: cols, RowPtr: rowPtr, ColIdx: colIdx, Values: values}, nil
}

// CSRFromDense compresses m, dropping exact zeros. Stored values are copied
// bit for bit, so the conversion introduces no numerical drift.
func CSRFromDense(m mat.Matrix) *CSR {
	rows, cols := m.Dims()
	c := &CSR{rows: rows, cols: cols, RowPtr: make([]int, rows+1)}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); v != 0 {
				c.ColIdx = append(c.ColIdx, j)
				c.Values = append(c.Values, v)
			}
		}
		c.RowPtr[i+1] = len(c.Values)
	}
	return c
}

// Dims returns the matrix dimensions.
func (c *CSR) Dims() (r, cols int) {
	return c.rows, c.cols
}

// At returns the element at row i, column j.
func (c *CSR) At(i, j int) float64 {
	if i < 0 || i >= c.rows || j < 0 || j >= c.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	var v float64
	for k := c.RowPtr[i]; k < c.RowPtr[i+1]; k++ {
		if c.ColIdx[k] == j {
			v += c.Values[k]
		}
	}
	return v
}

// T returns the implicit transpose.
func (c *CSR) T() mat.Matrix {
	return mat.Transpose{Matrix: c}
}

// NNZ returns the number of stored entries.
func (c *CSR) NNZ() int {
	return len(c.Values)
}

// ToDense expands the matrix.
func (c *CSR) ToDense() *mat.Dense {
	d := mat.NewDense(c.rows, c.cols, nil)
	for i := 0; i < c.rows; i++ {
		for k := c.RowPtr[i]; k < c.RowPtr[i+1]; k++ {
			j := c.ColIdx[k]
			d.Set(i, j, d.At(i, j)+c.Values[k])
		}
	}
	return d
}

// MulVec returns A x.
func (c *CSR) MulVec(x []float64) []float64 {
	if len(x) != c.cols {
		panic(mat.ErrShape)
	}
	y := make([]float64, c.rows)
	for i := range y {
		var s float64
		for k := c.RowPtr[i]; k < c.RowPtr[i+1]; k++ {
			s += c.Values[k] * x[c.ColIdx[k]]
		}
		y[i] = s
	}
	return y
}

// Equal reports numerical equality: same dimensions and the same value at
// every position, whether stored or implicit zero.
func (c *CSR) Equal(o *CSR) bool {
	if c == nil || o == nil {
		return c == o
	}
	return mat.Equal(c.ToDense(), o.ToDense())
}
