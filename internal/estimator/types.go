// Package estimator implements the gradient-estimation layer.
//
// A WrappedSolver evaluates a base solver f and a surrogate f_hat at theta
// replicated Nv times, together with their directional derivatives along a
// random probe v. The result is installed on the tape as an EstimatorOp
// whose forward value is the base solver's exact output and whose backward
// rule returns one of four gradient estimates:
//
//	f_true      exact gradient of f (zero when f has no gradient path)
//	f_fwd       forward gradient mean_Nv((grad_y . dvf) v)
//	f_hat_true  exact gradient of f_hat divided by Nv
//	cv_fwd      f_fwd - (f_hat_fwd - f_hat_true)
package estimator

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Errors reported by the layer.
var (
	ErrUnsupportedGradType = errors.New("unsupported grad_type")
	ErrUnsupportedJVPType  = errors.New("unsupported jvp_type")
	ErrContextConsumed     = errors.New("estimator context already consumed")
	ErrNoTangent           = errors.New("function did not propagate the tangent")
	ErrNoSurrogate         = errors.New("grad_type needs a surrogate solver")
)

// GradType selects the gradient returned by the backward rule.
type GradType int

const (
	FTrue GradType = iota
	FFwd
	FHatTrue
	CVFwd
)

var gradTypeNames = [...]string{
	FTrue:    "f_true",
	FFwd:     "f_fwd",
	FHatTrue: "f_hat_true",
	CVFwd:    "cv_fwd",
}

// String returns the configuration name, e.g. "cv_fwd".
func (g GradType) String() string {
	if g < 0 || int(g) >= len(gradTypeNames) {
		return "GradType(" + strconv.Itoa(int(g)) + ")"
	}
	return gradTypeNames[g]
}

// NeedsSurrogate reports whether the estimate uses f_hat.
func (g GradType) NeedsSurrogate() bool {
	return g == FHatTrue || g == CVFwd
}

// GradTypes lists every supported grad type.
func GradTypes() []GradType {
	return []GradType{FTrue, FFwd, FHatTrue, CVFwd}
}

// ParseGradType parses a configuration name.
func ParseGradType(s string) (GradType, error) {
	for g, name := range gradTypeNames {
		if s == name {
			return GradType(g), nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedGradType, "%q", s)
}

// JVPType selects how directional derivatives are computed.
type JVPType int

const (
	// ForwardAD propagates dual numbers: exact, one evaluation.
	ForwardAD JVPType = iota
	// ForwardFD is (f(x+eps v) - f(x)) / eps.
	ForwardFD
	// CentralFD is (f(x+eps v) - f(x-eps v)) / (2 eps).
	CentralFD
)

var jvpTypeNames = [...]string{
	ForwardAD: "forwardAD",
	ForwardFD: "forwardFD",
	CentralFD: "centralFD",
}

func (j JVPType) String() string {
	if j < 0 || int(j) >= len(jvpTypeNames) {
		return "JVPType(" + strconv.Itoa(int(j)) + ")"
	}
	return jvpTypeNames[j]
}

// ParseJVPType parses a configuration name. Matching ignores case.
func ParseJVPType(s string) (JVPType, error) {
	for j, name := range jvpTypeNames {
		if strings.EqualFold(s, name) {
			return JVPType(j), nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedJVPType, "%q", s)
}

