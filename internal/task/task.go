// Package task holds problem instances: test functions to minimise and linear
// systems in a dense (tensor) and a sparse (CSR) representation, plus the
// conversions between the two.
//
// Tasks are immutable once built. A Batch stacks dense linear systems of the
// same size so that solvers can process them together.
package task

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// Task is a batch of problem instances as seen by a solver.
type Task interface {
	// Size returns the number of instances in the batch.
	Size() int

	// Features returns per-instance inputs for networks, shape [Size, F],
	// or nil when the task carries none.
	Features() *tensor.RawTensor

	// Repeat returns the batch tiled n times along the batch axis, replica
	// major, matching the layout of Backend.Repeat.
	Repeat(n int) Task
}

// TaskParams are the generator parameters a task was built from.
type TaskParams map[string]float64

// MinimizeTestFunctionTask asks for the minimum of a named test function.
// It applies to every row of theta, so it carries no batch of its own.
type MinimizeTestFunctionTask struct {
	Params   TaskParams
	Function string // e.g. "sphere", "rosenbrock"
}

// Size returns 1: a test function is one problem shared by the whole batch.
func (t *MinimizeTestFunctionTask) Size() int { return 1 }

// Features returns nil.
func (t *MinimizeTestFunctionTask) Features() *tensor.RawTensor { return nil }

// Repeat returns t itself.
func (t *MinimizeTestFunctionTask) Repeat(int) Task { return t }
