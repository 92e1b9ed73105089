package nn

import (
	"math/rand/v2"

	"github.com/born-ml/nigbms/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias with shape [1, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
	backend     tensor.Backend
}

// NewLinear creates a new Linear layer.
func NewLinear(inFeatures, outFeatures int, backend tensor.Backend, rng *rand.Rand) *Linear {
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{1, outFeatures})),
		backend:     backend,
	}
}

// Forward computes x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != l.inFeatures {
		tensor.PanicShape("Linear.Forward: expected input [batch, %d], got %v", l.inFeatures, shape)
	}
	b := l.backend
	output := b.MatMul(input, b.Transpose(l.weight.Tensor()))
	return b.Add(output, l.bias.Tensor())
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}
