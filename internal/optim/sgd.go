package optim

import (
	"github.com/born-ml/nigbms/internal/nn"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter][]float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter][]float64),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() {
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		data, g := param.Tensor().Data(), grad.Data()

		if s.momentum == 0 {
			for i := range data {
				data[i] -= s.lr * g[i]
			}
			continue
		}

		vel, ok := s.velocities[param]
		if !ok {
			vel = make([]float64, len(data))
			s.velocities[param] = vel
		}
		for i := range data {
			vel[i] = s.momentum*vel[i] + g[i]
			data[i] -= s.lr * vel[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR sets the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}
