package tensor

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, errors.Wrapf(ErrShapeMismatch, "shape %v requires %d elements, but got %d",
			shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	copy(raw.data, data)
	return raw, nil
}

// Zeros creates a tensor filled with zeros.
// Panics on an invalid shape.
func Zeros(shape Shape) *RawTensor {
	raw, err := NewRaw(shape)
	if err != nil {
		panic(err)
	}
	return raw
}

// ZerosLike creates a zero tensor with the shape of t.
func ZerosLike(t *RawTensor) *RawTensor {
	return Zeros(t.Shape())
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *RawTensor {
	return Full(shape, 1)
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float64) *RawTensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Scalar creates a rank-0 tensor.
func Scalar(value float64) *RawTensor {
	return Full(Shape{}, value)
}

// Randn creates a tensor with values drawn from the standard normal
// distribution.
// Note: Uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
func Randn(shape Shape, rng *rand.Rand) *RawTensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = rng.NormFloat64()
	}
	return t
}

// Uniform creates a tensor with values drawn uniformly from [lo, hi).
func Uniform(shape Shape, lo, hi float64, rng *rand.Rand) *RawTensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = lo + (hi-lo)*rng.Float64()
	}
	return t
}
