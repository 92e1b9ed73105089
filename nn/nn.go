// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers used for surrogate and meta-solver
// networks.
//
// Example:
//
//	mlp, err := nn.NewMLP([]int{32, 64, 8}, "relu", backend, rng)
//	y := mlp.Forward(x)
package nn

import (
	"math/rand/v2"

	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/tensor"
)

// Module is a network building block.
type Module = nn.Module

// Parameter is a trainable tensor with its gradient.
type Parameter = nn.Parameter

// Linear is a fully connected layer.
type Linear = nn.Linear

// Sequential chains modules.
type Sequential = nn.Sequential

// MSELoss is the mean squared error.
type MSELoss = nn.MSELoss

// Checkpoint is a saved network with training metadata.
type Checkpoint = nn.Checkpoint

// NewLinear creates a Xavier-initialised layer.
func NewLinear(in, out int, backend tensor.Backend, rng *rand.Rand) *Linear {
	return nn.NewLinear(in, out, backend, rng)
}

// NewSequential chains modules.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// NewMLP builds Linear layers of the given sizes separated by the named
// activation (relu, tanh or sigmoid).
func NewMLP(sizes []int, activation string, backend tensor.Backend, rng *rand.Rand) (*Sequential, error) {
	return nn.NewMLP(sizes, activation, backend, rng)
}

// NewMSELoss creates the mean squared error loss.
func NewMSELoss(backend tensor.Backend) *MSELoss {
	return nn.NewMSELoss(backend)
}

// LoadCheckpoint reads weights from path into model.
func LoadCheckpoint(path string, model *Sequential) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model)
}

// NumParameters counts the scalar weights of m.
func NumParameters(m Module) int {
	return nn.NumParameters(m)
}
