// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package task defines the problem instances solvers run on and converts
// linear systems between their sparse (CSR) and dense forms.
//
// Example:
//
//	sparse, err := task.Poisson1D(task.Poisson1DConfig{N: 64, Rtol: 1e-6, Maxiter: 100, Modes: 8}, rng)
//	dense := task.SparseToDense(sparse)
//	back, err := task.DenseToSparse(dense)
package task

import (
	"math/rand/v2"

	"github.com/born-ml/nigbms/internal/task"
)

// Task is a batch of problem instances.
type Task = task.Task

// CSR is a compressed sparse row matrix.
type CSR = task.CSR

// DenseLinearSystemTask holds A x = b in tensors.
type DenseLinearSystemTask = task.DenseLinearSystemTask

// SparseLinearSystemTask holds A x = b with a CSR operator.
type SparseLinearSystemTask = task.SparseLinearSystemTask

// MinimizeTestFunctionTask names the test function to minimise.
type MinimizeTestFunctionTask = task.MinimizeTestFunctionTask

// Batch stacks dense tasks of equal size.
type Batch = task.Batch

// Poisson1DConfig configures Poisson1D.
type Poisson1DConfig = task.Poisson1DConfig

// Errors returned by validation and conversion.
var (
	ErrInvalidTask = task.ErrInvalidTask
	ErrInvalidCSR  = task.ErrInvalidCSR
)

// NewCSR validates and wraps a CSR triple.
func NewCSR(rows, cols int, rowPtr, colIdx []int, values []float64) (*CSR, error) {
	return task.NewCSR(rows, cols, rowPtr, colIdx, values)
}

// SparseToDense expands a sparse task.
func SparseToDense(t *SparseLinearSystemTask) *DenseLinearSystemTask {
	return task.SparseToDense(t)
}

// DenseToSparse compresses a dense task.
func DenseToSparse(t *DenseLinearSystemTask) (*SparseLinearSystemTask, error) {
	return task.DenseToSparse(t)
}

// NewBatch stacks dense tasks.
func NewBatch(tasks []*DenseLinearSystemTask) (*Batch, error) {
	return task.NewBatch(tasks)
}

// Poisson1D draws a random 1D Poisson problem.
func Poisson1D(cfg Poisson1DConfig, rng *rand.Rand) (*SparseLinearSystemTask, error) {
	return task.Poisson1D(cfg, rng)
}
