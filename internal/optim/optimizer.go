// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - ClipGradNorm: global gradient norm clipping
//
// Optimizers read the gradients stored on each nn.Parameter.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-3})
//
//	for step := range steps {
//	    backend.Tape().Clear()
//	    loss := lossFunc.Forward(model.Forward(input), targets)
//	    grads, _ := backend.Gradient(loss, tensor.Ones(loss.Shape()), nn.Tensors(model)...)
//	    nn.SetGrads(model.Parameters(), grads)
//	    optim.ClipGradNorm(model.Parameters(), 1.0)
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies the stored gradient of every parameter in place.
	// Parameters without a gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// New builds an optimizer by name ("adam" or "sgd").
func New(name string, params []*nn.Parameter, lr float64) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "adam":
		return NewAdam(params, AdamConfig{LR: lr}), nil
	case "sgd":
		return NewSGD(params, SGDConfig{LR: lr}), nil
	}
	return nil, errors.Errorf("unknown optimizer %q", name)
}

func zeroGrads(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
