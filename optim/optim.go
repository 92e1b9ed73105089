// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides gradient-based optimizers for nn parameters.
package optim

import (
	"github.com/born-ml/nigbms/internal/optim"
	"github.com/born-ml/nigbms/nn"
)

// Optimizer updates parameters from their gradients.
type Optimizer = optim.Optimizer

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// New creates an optimizer by name ("sgd" or "adam").
func New(name string, params []*nn.Parameter, lr float64) (Optimizer, error) {
	return optim.New(name, params, lr)
}

// NewSGD creates SGD with optional momentum.
func NewSGD(params []*nn.Parameter, config SGDConfig) Optimizer {
	return optim.NewSGD(params, config)
}

// NewAdam creates Adam with bias correction.
func NewAdam(params []*nn.Parameter, config AdamConfig) Optimizer {
	return optim.NewAdam(params, config)
}

// ClipGradNorm rescales the gradients so their global norm is at most
// maxNorm and returns the norm before clipping.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) float64 {
	return optim.ClipGradNorm(params, maxNorm)
}
