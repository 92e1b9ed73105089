package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// RawTensor is the low-level tensor representation: dense row-major float64
// storage plus an optional tangent.
//
// A RawTensor with a tangent is a dual number x + εv: the tangent has the
// same shape as the primal and carries the directional derivative of the
// value along some probe direction. Backends ignore tangents; the autodiff
// backend propagates them.
//
// Identity matters: the gradient tape keys gradients by *RawTensor, so views
// created with View or WithTangent are distinct tensors sharing storage.
type RawTensor struct {
	data    []float64
	shape   Shape
	tangent *RawTensor
}

// NewRaw creates a new zero-filled RawTensor with the given shape.
func NewRaw(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &RawTensor{
		data:  make([]float64, shape.NumElements()),
		shape: shape.Clone(),
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// Data returns the underlying storage.
// WARNING: Direct access to underlying memory. Writes are visible to views.
func (r *RawTensor) Data() []float64 {
	return r.data
}

// Item returns the value of a single-element tensor.
func (r *RawTensor) Item() float64 {
	if len(r.data) != 1 {
		panic(errors.Wrapf(ErrNotScalar, "shape %v", r.shape))
	}
	return r.data[0]
}

// At returns the element at the given coordinates.
func (r *RawTensor) At(coords ...int) float64 {
	if len(coords) != len(r.shape) {
		PanicShape("At: %d coordinates for shape %v", len(coords), r.shape)
	}
	strides := r.shape.ComputeStrides()
	idx := 0
	for i, c := range coords {
		if c < 0 || c >= r.shape[i] {
			PanicShape("At: coordinate %d out of range for axis %d of shape %v", c, i, r.shape)
		}
		idx += c * strides[i]
	}
	return r.data[idx]
}

// Tangent returns the dual part, or nil for ordinary tensors.
func (r *RawTensor) Tangent() *RawTensor {
	return r.tangent
}

// IsDual reports whether the tensor carries a tangent.
func (r *RawTensor) IsDual() bool {
	return r.tangent != nil
}

// SetTangent attaches a tangent of the same shape.
func (r *RawTensor) SetTangent(t *RawTensor) {
	if t != nil && !t.shape.Equal(r.shape) {
		PanicShape("SetTangent: tangent shape %v does not match primal shape %v", t.shape, r.shape)
	}
	r.tangent = t
}

// Clone returns a deep copy of the primal values (and of the tangent, if any).
func (r *RawTensor) Clone() *RawTensor {
	c := r.Detach()
	if r.tangent != nil {
		c.tangent = r.tangent.Clone()
	}
	return c
}

// Detach returns a deep copy of the primal values without tangent.
// The result is disconnected from any gradient tape.
func (r *RawTensor) Detach() *RawTensor {
	data := make([]float64, len(r.data))
	copy(data, r.data)
	return &RawTensor{data: data, shape: r.shape.Clone()}
}

// View returns a new tensor sharing storage with r, without tangent.
func (r *RawTensor) View() *RawTensor {
	return &RawTensor{data: r.data, shape: r.shape.Clone()}
}

// WithTangent returns a new tensor sharing storage with r and carrying the
// given tangent.
func (r *RawTensor) WithTangent(t *RawTensor) *RawTensor {
	v := r.View()
	v.SetTangent(t)
	return v
}

// Reshaped returns a view with a different shape and the same number of
// elements. The tangent, if any, is not carried over.
func (r *RawTensor) Reshaped(shape Shape) *RawTensor {
	if shape.NumElements() != len(r.data) {
		PanicShape("Reshaped: cannot view %v as %v", r.shape, shape)
	}
	return &RawTensor{data: r.data, shape: shape.Clone()}
}

// String implements fmt.Stringer.
func (r *RawTensor) String() string {
	if r.tangent != nil {
		return fmt.Sprintf("RawTensor%v%v (dual)", r.shape, r.data)
	}
	return fmt.Sprintf("RawTensor%v%v", r.shape, r.data)
}
