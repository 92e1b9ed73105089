// Package constructor turns a flat encoding theta [batch, enc_dim] into the
// named, shaped parameters a solver consumes.
//
// Every entry is a slice of theta, optionally passed through a Codec. All
// work goes through the caller's tensor.Backend, so when that backend records
// operations or carries tangents, the constructed parameters are
// differentiable with respect to theta.
package constructor

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/tensor"
)

// EncKey is the reserved entry holding theta itself as [batch, enc_dim, 1].
const EncKey = "enc"

// ErrInvalidSpec is returned for inconsistent parameter specs.
var ErrInvalidSpec = errors.New("invalid parameter spec")

// Params maps parameter names to tensors of shape [batch, shape...].
type Params map[string]*tensor.RawTensor

// Enc returns the reserved encoding entry.
func (p Params) Enc() *tensor.RawTensor {
	return p[EncKey]
}

// ParamSpec describes one constructed parameter.
type ParamSpec struct {
	Name  string
	Shape tensor.Shape
	// Codec decodes the parameter's slice of theta. When nil the slice is
	// used directly and occupies prod(Shape) columns.
	Codec Codec
}

func (s ParamSpec) encDim() int {
	if s.Codec != nil {
		return s.Codec.EncDim()
	}
	return s.Shape.NumElements()
}

// ThetaConstructor slices theta into parameters in spec order.
type ThetaConstructor struct {
	specs  []ParamSpec
	encDim int
}

// New validates specs and returns a constructor.
func New(specs ...ParamSpec) (*ThetaConstructor, error) {
	seen := make(map[string]bool, len(specs))
	c := &ThetaConstructor{specs: specs}
	for _, s := range specs {
		switch {
		case s.Name == "" || s.Name == EncKey:
			return nil, errors.Wrapf(ErrInvalidSpec, "parameter name %q", s.Name)
		case seen[s.Name]:
			return nil, errors.Wrapf(ErrInvalidSpec, "duplicate parameter %q", s.Name)
		case s.Shape.Validate() != nil:
			return nil, errors.Wrapf(ErrInvalidSpec, "parameter %q: %v", s.Name, s.Shape.Validate())
		case s.Codec != nil && s.Codec.DecDim() != s.Shape.NumElements():
			return nil, errors.Wrapf(ErrInvalidSpec, "parameter %q: codec decodes to %d values, shape %v holds %d",
				s.Name, s.Codec.DecDim(), s.Shape, s.Shape.NumElements())
		}
		seen[s.Name] = true
		c.encDim += s.encDim()
	}
	return c, nil
}

// EncDim returns the width of theta this constructor consumes.
func (c *ThetaConstructor) EncDim() int {
	return c.encDim
}

// Specs returns the parameter specs in order.
func (c *ThetaConstructor) Specs() []ParamSpec {
	return c.specs
}

// Construct builds the parameters from theta [batch, EncDim()]. Shape errors
// panic.
func (c *ThetaConstructor) Construct(b tensor.Backend, theta *tensor.RawTensor) Params {
	shape := theta.Shape()
	if len(shape) != 2 || shape[1] != c.encDim {
		tensor.PanicShape("Construct: theta shape %v, want [batch, %d]", shape, c.encDim)
	}
	batch := shape[0]

	params := make(Params, len(c.specs)+1)
	idx := 0
	for _, s := range c.specs {
		width := s.encDim()
		p := b.Narrow(theta, 1, idx, width)
		if s.Codec != nil {
			p = s.Codec.Decode(b, p)
		}
		params[s.Name] = b.Reshape(p, append(tensor.Shape{batch}, s.Shape...))
		idx += width
	}
	params[EncKey] = b.Reshape(theta, tensor.Shape{batch, c.encDim, 1})
	return params
}
