// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the float64 tensors every nigbms component works on.
//
// Example:
//
//	x, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	y := tensor.Sum(cpu.New(), x)
package tensor

import (
	"math/rand/v2"

	"github.com/born-ml/nigbms/internal/tensor"
)

// RawTensor is a dense row-major float64 tensor.
type RawTensor = tensor.RawTensor

// Shape lists the size of every dimension.
type Shape = tensor.Shape

// Backend defines the operations a compute backend implements.
type Backend = tensor.Backend

// Errors returned (or panicked with) by shape checks.
var (
	ErrInvalidShape  = tensor.ErrInvalidShape
	ErrShapeMismatch = tensor.ErrShapeMismatch
	ErrNotScalar     = tensor.ErrNotScalar
)

// FromSlice wraps a copy of data in a tensor of the given shape.
func FromSlice(data []float64, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Zeros returns a zero tensor.
func Zeros(shape Shape) *RawTensor { return tensor.Zeros(shape) }

// Ones returns a tensor of ones.
func Ones(shape Shape) *RawTensor { return tensor.Ones(shape) }

// Scalar returns a single-element tensor.
func Scalar(value float64) *RawTensor { return tensor.Scalar(value) }

// Randn samples a standard normal tensor.
func Randn(shape Shape, rng *rand.Rand) *RawTensor { return tensor.Randn(shape, rng) }

// Sum reduces x to a scalar.
func Sum(b Backend, x *RawTensor) *RawTensor { return tensor.Sum(b, x) }

// Mean averages x to a scalar.
func Mean(b Backend, x *RawTensor) *RawTensor { return tensor.Mean(b, x) }
