package estimator

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// Context carries what the backward rule needs from one forward evaluation.
// It is built by the forward pass and consumed by exactly one backward pass.
//
// Shapes, with B the original batch and D the encoding width:
//
//	Theta        [B, D]     the node input
//	Y, DVF       [Nv*B, 1]  base solver value and directional derivative
//	YHat, DVFHat [Nv*B, 1]  surrogate counterparts, nil without a surrogate
//	V            [Nv*B, D]  probe directions, unscaled
type Context struct {
	Theta    *tensor.RawTensor
	Y        *tensor.RawTensor
	DVF      *tensor.RawTensor
	YHat     *tensor.RawTensor
	DVFHat   *tensor.RawTensor
	V        *tensor.RawTensor
	VScale   float64
	Nv       int
	GradType GradType

	consumed bool
}

// Consumed reports whether a backward pass has used the context.
func (c *Context) Consumed() bool {
	return c.consumed
}

// release marks the context used and drops its tensors.
func (c *Context) release() {
	c.consumed = true
	c.Y, c.DVF, c.YHat, c.DVFHat, c.V = nil, nil, nil, nil, nil
}

// GradientRule separates the value a custom node returns from the gradient
// it propagates.
type GradientRule interface {
	// ForwardValue returns the node's output, detached from the tape.
	ForwardValue(ctx *Context) *tensor.RawTensor

	// BackwardGradient returns the gradient with respect to ctx.Theta given
	// the gradient gradY flowing into the node's output.
	BackwardGradient(ctx *Context, gradY *tensor.RawTensor) (*tensor.RawTensor, error)
}
