package nn

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module: f(x) = max(0, x).
//
// It is computed as x multiplied by a constant 0/1 mask, so it needs no
// dedicated backend kernel and stays differentiable in both modes.
type ReLU struct {
	backend tensor.Backend
}

// NewReLU creates a new ReLU activation module.
func NewReLU(backend tensor.Backend) *ReLU {
	return &ReLU{backend: backend}
}

// Forward applies ReLU activation.
func (r *ReLU) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	mask := tensor.ZerosLike(input)
	m := mask.Data()
	for i, v := range input.Data() {
		if v > 0 {
			m[i] = 1
		}
	}
	return r.backend.Mul(input, mask)
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// Tanh is a hyperbolic tangent activation module.
type Tanh struct {
	backend tensor.Backend
}

// NewTanh creates a new Tanh activation module.
func NewTanh(backend tensor.Backend) *Tanh {
	return &Tanh{backend: backend}
}

// Forward applies tanh element-wise.
func (t *Tanh) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	return t.backend.Tanh(input)
}

// Parameters returns nil (Tanh has no trainable parameters).
func (t *Tanh) Parameters() []*Parameter {
	return nil
}

// Sigmoid is a sigmoid activation module: σ(x) = 1 / (1 + exp(-x)).
type Sigmoid struct {
	backend tensor.Backend
}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid(backend tensor.Backend) *Sigmoid {
	return &Sigmoid{backend: backend}
}

// Forward applies the logistic function element-wise.
func (s *Sigmoid) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	b := s.backend
	denom := b.AddScalar(b.Exp(b.Neg(input)), 1)
	return b.Div(tensor.Ones(input.Shape()), denom)
}

// Parameters returns nil (Sigmoid has no trainable parameters).
func (s *Sigmoid) Parameters() []*Parameter {
	return nil
}

// NewActivation returns the activation module called name ("tanh", "relu"
// or "sigmoid"), or nil for an unknown name.
func NewActivation(name string, backend tensor.Backend) Module {
	switch name {
	case "tanh":
		return NewTanh(backend)
	case "relu":
		return NewReLU(backend)
	case "sigmoid":
		return NewSigmoid(backend)
	}
	return nil
}
