package solver

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/tensor"
)

// TestFunc evaluates a test function row-wise: [batch, dim] -> [batch, 1].
type TestFunc func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor

var testFunctions = map[string]TestFunc{
	"sphere":              Sphere,
	"rosenbrock":          Rosenbrock,
	"rosenbrock_separate": RosenbrockSeparate,
	"rastrigin":           Rastrigin,
}

// TestFunctionNames lists the registered test functions.
func TestFunctionNames() []string {
	names := make([]string, 0, len(testFunctions))
	for name := range testFunctions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupTestFunc returns the named test function.
func LookupTestFunc(name string) (TestFunc, error) {
	f, ok := testFunctions[strings.ToLower(name)]
	if !ok {
		return nil, errors.Errorf("unknown test function %q (have %v)", name, TestFunctionNames())
	}
	return f, nil
}

// Sphere is sum(x^2).
func Sphere(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
	return b.SumDim(tensor.Square(b, x), 1, true)
}

// Rosenbrock is sum_i 100 (x_{i+1} - x_i^2)^2 + (1 - x_i)^2.
func Rosenbrock(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
	d := x.Shape()[1]
	return rosenbrockTerms(b, b.Narrow(x, 1, 0, d-1), b.Narrow(x, 1, 1, d-1))
}

// RosenbrockSeparate pairs even and odd coordinates:
// sum_i (1 - x_{2i})^2 + 100 (x_{2i+1} - x_{2i}^2)^2. dim must be even.
func RosenbrockSeparate(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
	d := x.Shape()[1]
	if d%2 != 0 {
		tensor.PanicShape("rosenbrock_separate: dimension %d is not even", d)
	}
	even := tensor.Zeros(tensor.Shape{d, d / 2})
	odd := tensor.Zeros(tensor.Shape{d, d / 2})
	for i := 0; i < d/2; i++ {
		even.Data()[2*i*(d/2)+i] = 1
		odd.Data()[(2*i+1)*(d/2)+i] = 1
	}
	return rosenbrockTerms(b, b.MatMul(x, even), b.MatMul(x, odd))
}

func rosenbrockTerms(b tensor.Backend, x1, x2 *tensor.RawTensor) *tensor.RawTensor {
	valley := tensor.Square(b, b.Sub(x2, tensor.Square(b, x1)))
	bowl := tensor.Square(b, b.AddScalar(b.Neg(x1), 1))
	return b.SumDim(b.Add(b.MulScalar(valley, 100), bowl), 1, true)
}

// Rastrigin is 10 n + sum(x^2 - 10 cos(2 pi x)).
func Rastrigin(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
	n := x.Shape()[1]
	waves := b.MulScalar(b.Cos(b.MulScalar(x, 2*math.Pi)), 10)
	s := b.SumDim(b.Sub(tensor.Square(b, x), waves), 1, true)
	return b.AddScalar(s, 10*float64(n))
}

// TestFunctionSolver "solves" a MinimizeTestFunctionTask by evaluating the
// test function at the parameter "x".
type TestFunctionSolver struct {
	name    string
	f       TestFunc
	dim     int
	backend tensor.Backend
}

// NewTestFunctionSolver looks up the named function.
func NewTestFunctionSolver(name string, dim int, backend tensor.Backend) (*TestFunctionSolver, error) {
	f, err := LookupTestFunc(name)
	if err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, errors.Errorf("test function dimension must be positive, got %d", dim)
	}
	switch strings.ToLower(name) {
	case "rosenbrock":
		if dim < 2 {
			return nil, errors.Errorf("rosenbrock needs at least two dimensions, got %d", dim)
		}
	case "rosenbrock_separate":
		if dim%2 != 0 {
			return nil, errors.Errorf("rosenbrock_separate needs an even dimension, got %d", dim)
		}
	}
	return &TestFunctionSolver{name: strings.ToLower(name), f: f, dim: dim, backend: backend}, nil
}

// Name returns the test function name.
func (s *TestFunctionSolver) Name() string { return s.name }

// Func returns the test function.
func (s *TestFunctionSolver) Func() TestFunc { return s.f }

// Solve evaluates f(params["x"]).
func (s *TestFunctionSolver) Solve(_ task.Task, params constructor.Params) *tensor.RawTensor {
	return s.f(s.backend, params["x"])
}

// Learnable returns the single parameter "x" of shape [dim].
func (s *TestFunctionSolver) Learnable() []constructor.ParamSpec {
	return []constructor.ParamSpec{{Name: "x", Shape: tensor.Shape{s.dim}}}
}

// Parameters returns nil.
func (s *TestFunctionSolver) Parameters() []*nn.Parameter { return nil }
