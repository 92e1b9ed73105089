package tensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Shape represents the dimensions of a tensor.
// An empty shape is a scalar holding one element.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return errors.Wrapf(ErrInvalidShape, "dimension %d is %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// String formats the shape as "[2 3]".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared right to left; two dimensions are compatible when they
// are equal or one of them is 1, and missing dimensions count as 1.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5)
//	(5)    + (3, 5) → (3, 5)
//	(3, 4) + (3, 5) → error
func BroadcastShapes(a, b Shape) (Shape, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)

	for i := 0; i < maxLen; i++ {
		aDim, bDim := 1, 1
		if idx := len(a) - 1 - i; idx >= 0 {
			aDim = a[idx]
		}
		if idx := len(b) - 1 - i; idx >= 0 {
			bDim = b[idx]
		}

		switch {
		case aDim == bDim, bDim == 1:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
		default:
			return nil, errors.Wrapf(ErrShapeMismatch, "cannot broadcast %v with %v (axis %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}
	return result, nil
}
