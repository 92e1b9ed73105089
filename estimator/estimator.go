// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package estimator wraps a possibly non-differentiable solver so that its
// output carries an estimated gradient with respect to theta.
//
// The estimate is chosen by GradType:
//
//	f_true      exact backpropagation through the solver
//	f_fwd       forward gradient from random directional derivatives
//	f_hat_true  exact gradient of a learned surrogate
//	cv_fwd      forward gradient with the surrogate as a control variate
//
// Example:
//
//	b := autodiff.New(cpu.New())
//	w, err := estimator.NewWrappedSolver(base, surrogate, nil, b, estimator.DefaultConfig(), rng)
//	out, err := w.Forward(tau, theta)
//	loss := tensor.Sum(b, out.Y)
//	grads, err := b.Gradient(loss, tensor.Ones(loss.Shape()), theta)
package estimator

import (
	"math/rand/v2"

	"github.com/born-ml/nigbms/autodiff"
	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/estimator"
	"github.com/born-ml/nigbms/solver"
	"github.com/born-ml/nigbms/tensor"
)

// GradType selects the gradient estimate.
type GradType = estimator.GradType

// JVPType selects how directional derivatives are computed.
type JVPType = estimator.JVPType

// Gradient types.
const (
	FTrue    = estimator.FTrue
	FFwd     = estimator.FFwd
	FHatTrue = estimator.FHatTrue
	CVFwd    = estimator.CVFwd
)

// JVP methods.
const (
	ForwardAD = estimator.ForwardAD
	ForwardFD = estimator.ForwardFD
	CentralFD = estimator.CentralFD
)

// Errors returned by the estimator.
var (
	ErrUnsupportedGradType = estimator.ErrUnsupportedGradType
	ErrUnsupportedJVPType  = estimator.ErrUnsupportedJVPType
	ErrContextConsumed     = estimator.ErrContextConsumed
	ErrNoTangent           = estimator.ErrNoTangent
	ErrNoSurrogate         = estimator.ErrNoSurrogate
)

// Config configures a WrappedSolver.
type Config = estimator.Config

// Output holds the values of one Forward call.
type Output = estimator.Output

// LossWeights weight the surrogate loss terms.
type LossWeights = estimator.LossWeights

// WrappedSolver is the gradient-estimation layer.
type WrappedSolver = estimator.WrappedSolver

// Func is a function of theta for JVP.
type Func = estimator.Func

// ThetaConstructor turns a flat theta into named solver parameters.
type ThetaConstructor = constructor.ThetaConstructor

// DefaultConfig returns cv_fwd with one forward-mode probe.
func DefaultConfig() Config { return estimator.DefaultConfig() }

// ParseGradType parses f_true, f_fwd, f_hat_true or cv_fwd.
func ParseGradType(s string) (GradType, error) { return estimator.ParseGradType(s) }

// ParseJVPType parses forwardAD, forwardFD or centralFD.
func ParseJVPType(s string) (JVPType, error) { return estimator.ParseJVPType(s) }

// NewWrappedSolver wires base, an optional surrogate and the constructor.
// A nil constructor is built from the base solver's learnable parameters.
func NewWrappedSolver(base, surrogate solver.Solver, c *ThetaConstructor, b autodiff.Differentiable, cfg Config, rng *rand.Rand) (*WrappedSolver, error) {
	return estimator.NewWrappedSolver(base, surrogate, c, b, cfg, rng)
}

// JVP returns f(x) and the directional derivative of f at x along v.
func JVP(b autodiff.Differentiable, f Func, x, v *tensor.RawTensor, method JVPType, eps float64) (y, dvf *tensor.RawTensor, err error) {
	return estimator.JVP(b, f, x, v, method, eps)
}

// SurrogateLoss is the weighted fit of the surrogate to the base solver's
// value and directional derivative.
func SurrogateLoss(b tensor.Backend, out *Output, weights LossWeights) (*tensor.RawTensor, error) {
	return estimator.SurrogateLoss(b, out, weights)
}
