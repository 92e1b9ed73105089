// Package nn implements the small neural-network toolkit used by the
// surrogate solver and the meta-solver:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient storage
//   - Linear: Fully connected layer
//   - Activations: ReLU, Tanh, Sigmoid
//   - MSE loss
//   - Sequential and NewMLP: stacking layers
//
// Modules run on whatever backend they were built with. Built on an autodiff
// backend, every forward pass is recorded and propagates dual-number tangents.
package nn

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(8, 32, backend, rng),
//	    nn.NewTanh(backend),
//	    nn.NewLinear(32, 1, backend, rng),
//	)
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.RawTensor) *tensor.RawTensor

	// Parameters returns all trainable parameters of this module, including
	// those of nested modules. Activations return nil.
	Parameters() []*Parameter
}

// Tensors returns the parameter tensors of m, in Parameters order.
func Tensors(m Module) []*tensor.RawTensor {
	params := m.Parameters()
	out := make([]*tensor.RawTensor, len(params))
	for i, p := range params {
		out[i] = p.Tensor()
	}
	return out
}

// NumParameters counts the scalar weights of m.
func NumParameters(m Module) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Tensor().NumElements()
	}
	return n
}
