// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package solver provides the base solvers a gradient estimator can wrap:
// differentiable test functions, Jacobi and conjugate gradient for linear
// systems, and the MLP surrogate.
package solver

import (
	"math/rand/v2"

	"github.com/born-ml/nigbms/internal/solver"
	"github.com/born-ml/nigbms/tensor"
)

// Solver maps a task batch and constructed parameters to a per-instance
// objective.
type Solver = solver.Solver

// Config selects and configures a solver for New.
type Config = solver.Config

// SurrogateConfig configures the surrogate network.
type SurrogateConfig = solver.SurrogateConfig

// TestFunctionSolver evaluates a test function at theta.
type TestFunctionSolver = solver.TestFunctionSolver

// SurrogateSolver is a trainable MLP approximation of a base solver.
type SurrogateSolver = solver.SurrogateSolver

// New creates a solver by name: testfunction, jacobi or cg.
func New(name string, cfg Config, backend tensor.Backend) (Solver, error) {
	return solver.New(name, cfg, backend)
}

// NewTestFunctionSolver creates a solver for a registered test function
// (sphere, rosenbrock, rosenbrock_separate or rastrigin).
func NewTestFunctionSolver(name string, dim int, backend tensor.Backend) (*TestFunctionSolver, error) {
	return solver.NewTestFunctionSolver(name, dim, backend)
}

// NewSurrogateSolver creates a surrogate MLP.
func NewSurrogateSolver(cfg SurrogateConfig, backend tensor.Backend, rng *rand.Rand) (*SurrogateSolver, error) {
	return solver.NewSurrogateSolver(cfg, backend, rng)
}

// TestFunctionNames lists the registered test functions.
func TestFunctionNames() []string {
	return solver.TestFunctionNames()
}
