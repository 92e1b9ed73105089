package nn

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// The tensor is a leaf of the computation graph: gradients are keyed on it by
// the gradient tape and stored back here with SetGrad before an optimizer step.
//
// Example:
//
//	weight := nn.NewParameter("weight", w)
//	grads, _ := backend.Gradient(loss, seed, weight.Tensor())
//	weight.SetGrad(grads[0])
type Parameter struct {
	name   string            // Parameter name (e.g., "0.weight")
	tensor *tensor.RawTensor // The parameter values, updated in place
	grad   *tensor.RawTensor // Gradient from the last backward pass
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before the first backward pass.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	if grad != nil && !grad.Shape().Equal(p.tensor.Shape()) {
		tensor.PanicShape("parameter %s: gradient shape %v, want %v", p.name, grad.Shape(), p.tensor.Shape())
	}
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// SetGrads assigns grads[i] to params[i].
func SetGrads(params []*Parameter, grads []*tensor.RawTensor) {
	if len(params) != len(grads) {
		tensor.PanicShape("SetGrads: %d parameters, %d gradients", len(params), len(grads))
	}
	for i, p := range params {
		p.SetGrad(grads[i])
	}
}
