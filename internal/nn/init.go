package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/nigbms/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Uniform(shape, -bound, bound, rng)
}
