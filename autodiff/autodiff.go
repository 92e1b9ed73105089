// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode differentiation on a gradient tape
// together with dual-number (forward-mode) tangents.
//
// Example:
//
//	b := autodiff.New(cpu.New())
//	b.Tape().StartRecording()
//	y := tensor.Sum(b, b.Mul(x, x))
//	grads, err := b.Gradient(y, tensor.Ones(y.Shape()), x)
package autodiff

import (
	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// Differentiable is a backend that records operations and carries tangents.
type Differentiable = autodiff.Differentiable

// GradientTape records operations for backpropagation.
type GradientTape = autodiff.GradientTape

// ErrNoGradientPath is returned when an input does not reach the output.
var ErrNoGradientPath = autodiff.ErrNoGradientPath

// New wraps backend with a recording tape.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// NewGradientTape creates an empty tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}
