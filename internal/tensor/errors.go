package tensor

import (
	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrInvalidShape  = errors.New("invalid shape")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrNotScalar     = errors.New("tensor is not a single element")
)

// PanicShape panics with an error wrapping ErrShapeMismatch.
//
// Shape errors are programmer errors: numeric kernels do not return them, but
// since the panic value is an error they remain catchable at API boundaries
// with exceptions.TryCatch[error].
func PanicShape(format string, args ...any) {
	panic(errors.Wrapf(ErrShapeMismatch, format, args...))
}
