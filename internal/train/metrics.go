package train

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/nigbms/internal/tensor"
)

// CosineSimilarity returns a·b / max(|a||b|, eps) for every row of two [N, D]
// tensors.
func CosineSimilarity(a, b *tensor.RawTensor, eps float64) []float64 {
	if !a.Shape().Equal(b.Shape()) || len(a.Shape()) != 2 {
		tensor.PanicShape("CosineSimilarity: shapes %v and %v", a.Shape(), b.Shape())
	}
	n, d := a.Shape()[0], a.Shape()[1]
	out := make([]float64, n)
	for i := range out {
		x, y := a.Data()[i*d:(i+1)*d], b.Data()[i*d:(i+1)*d]
		out[i] = floats.Dot(x, y) / math.Max(floats.Norm(x, 2)*floats.Norm(y, 2), eps)
	}
	return out
}

// Stats summarises the objective values of one step.
type Stats struct {
	Mean   float64
	Max    float64
	Median float64
	Min    float64
}

// Summarize computes Stats over values. The median of an even number of
// values is the lower of the two middle ones.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Stats{
		Mean:   stat.Mean(sorted, nil),
		Max:    floats.Max(sorted),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Min:    floats.Min(sorted),
	}
}
