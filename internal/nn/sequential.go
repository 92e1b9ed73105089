package nn

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// NewMLP builds Linear layers of the given sizes with the named activation
// between them (none after the last layer).
//
//	nn.NewMLP([]int{4, 32, 32, 1}, "tanh", backend, rng)
func NewMLP(sizes []int, activation string, backend tensor.Backend, rng *rand.Rand) (*Sequential, error) {
	if len(sizes) < 2 {
		return nil, errors.Errorf("MLP needs at least input and output sizes, got %v", sizes)
	}
	if NewActivation(activation, backend) == nil {
		return nil, errors.Errorf("unknown activation %q", activation)
	}
	s := NewSequential()
	for i := 0; i+1 < len(sizes); i++ {
		if sizes[i] <= 0 || sizes[i+1] <= 0 {
			return nil, errors.Errorf("invalid MLP sizes %v", sizes)
		}
		s.Add(NewLinear(sizes[i], sizes[i+1], backend, rng))
		if i+2 < len(sizes) {
			s.Add(NewActivation(activation, backend))
		}
	}
	return s, nil
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Module(index int) Module {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// StateDict returns a map of parameter names to tensors.
//
// Parameters are prefixed with their module index (e.g., "0.weight", "2.bias").
func (s *Sequential) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		for _, p := range module.Parameters() {
			stateDict[fmt.Sprintf("%d.%s", i, p.Name())] = p.Tensor()
		}
	}
	return stateDict
}

// LoadStateDict copies values from a state dictionary produced by StateDict.
func (s *Sequential) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		prefix := fmt.Sprintf("%d.", i)
		for _, p := range module.Parameters() {
			raw, ok := stateDict[prefix+p.Name()]
			if !ok {
				return errors.Errorf("missing %s%s in state dict", prefix, p.Name())
			}
			if !raw.Shape().Equal(p.Tensor().Shape()) {
				return errors.Wrapf(tensor.ErrShapeMismatch, "%s%s: expected %v, got %v",
					prefix, p.Name(), p.Tensor().Shape(), raw.Shape())
			}
			copy(p.Tensor().Data(), raw.Data())
		}
	}
	return nil
}

// String lists the modules, e.g. "Sequential(Linear(4->32), Tanh, Linear(32->1))".
func (s *Sequential) String() string {
	parts := make([]string, len(s.modules))
	for i, m := range s.modules {
		switch m := m.(type) {
		case *Linear:
			parts[i] = fmt.Sprintf("Linear(%d->%d)", m.InFeatures(), m.OutFeatures())
		default:
			name := fmt.Sprintf("%T", m)
			parts[i] = name[strings.LastIndex(name, ".")+1:]
		}
	}
	return "Sequential(" + strings.Join(parts, ", ") + ")"
}
