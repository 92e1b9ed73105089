package nn

import (
	"github.com/born-ml/nigbms/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²), returned with shape [1].
type MSELoss struct {
	backend tensor.Backend
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss(backend tensor.Backend) *MSELoss {
	return &MSELoss{backend: backend}
}

// Forward computes the MSE loss. Shapes must match.
func (m *MSELoss) Forward(predictions, targets *tensor.RawTensor) *tensor.RawTensor {
	if !predictions.Shape().Equal(targets.Shape()) {
		tensor.PanicShape("MSELoss: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape())
	}
	diff := m.backend.Sub(predictions, targets)
	return tensor.Mean(m.backend, tensor.Square(m.backend, diff))
}
