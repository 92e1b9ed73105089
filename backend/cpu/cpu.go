// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go compute backend.
//
// Wrap it with autodiff.New to record operations for differentiation:
//
//	b := autodiff.New(cpu.New())
package cpu

import (
	internalcpu "github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/tensor"
)

// Backend is the CPU backend.
type Backend = internalcpu.CPUBackend

var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend.
func New() *Backend {
	return internalcpu.New()
}
