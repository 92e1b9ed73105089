package optim

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/nigbms/internal/nn"
)

// ClipGradNorm rescales the gradients of params in place so that their
// global L2 norm is at most maxNorm, and returns the norm before clipping.
// Parameters without a gradient are ignored. A non-positive maxNorm only
// measures the norm.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) float64 {
	var sumSq float64
	for _, p := range params {
		if g := p.Grad(); g != nil {
			n := floats.Norm(g.Data(), 2)
			sumSq += n * n
		}
	}
	total := math.Sqrt(sumSq)

	if maxNorm > 0 && total > maxNorm {
		scale := maxNorm / (total + 1e-6)
		for _, p := range params {
			if g := p.Grad(); g != nil {
				floats.Scale(scale, g.Data())
			}
		}
	}
	return total
}
