package constructor

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/tensor"
)

// InterpolateCodec upsamples a 1-D signal of length enc by an integer factor
// with linear interpolation, corners aligned. DecDim is enc * (out / enc).
type InterpolateCodec struct {
	linear
}

// NewInterpolateCodec builds the interpolation matrix. outDim must be at
// least encDim.
func NewInterpolateCodec(encDim, outDim int) (*InterpolateCodec, error) {
	w, err := interpWeights(encDim, outDim)
	if err != nil {
		return nil, err
	}
	return &InterpolateCodec{linear{dec: w}}, nil
}

// Interpolate2DCodec is the bilinear counterpart for an n x n grid flattened
// row major. encDim must be a perfect square and DecDim is (n * (out / n))^2,
// where out is the side length of the decoded grid.
type Interpolate2DCodec struct {
	linear
}

// NewInterpolate2DCodec builds the bilinear matrix. outDim is the decoded
// side length squared.
func NewInterpolate2DCodec(encDim, outDim int) (*Interpolate2DCodec, error) {
	n, ok := isqrt(encDim)
	side, ok2 := isqrt(outDim)
	if !ok || !ok2 {
		return nil, errors.Wrapf(ErrInvalidSpec, "interpolate2d: %d -> %d are not square grids", encDim, outDim)
	}
	w1, err := interpWeights(n, side)
	if err != nil {
		return nil, err
	}
	m := w1.Shape()[1]

	// Bilinear weights are the Kronecker product of the 1-D weights.
	w := tensor.Zeros(tensor.Shape{n * n, m * m})
	d1, d := w1.Data(), w.Data()
	for a := 0; a < n; a++ {
		for c := 0; c < n; c++ {
			row := (a*n + c) * m * m
			for i := 0; i < m; i++ {
				wa := d1[a*m+i]
				if wa == 0 {
					continue
				}
				for j := 0; j < m; j++ {
					d[row+i*m+j] = wa * d1[c*m+j]
				}
			}
		}
	}
	return &Interpolate2DCodec{linear{dec: w}}, nil
}

// interpWeights returns W [in, out'] with out' = in * (out / in) such that
// x W is the corner-aligned linear interpolation of x.
func interpWeights(in, out int) (*tensor.RawTensor, error) {
	if out < in {
		return nil, errors.Wrapf(ErrInvalidSpec, "interpolate: cannot upsample %d to %d", in, out)
	}
	m := in * (out / in)
	w := tensor.Zeros(tensor.Shape{in, m})
	d := w.Data()
	if m == 1 {
		d[0] = 1
		return w, nil
	}
	for j := 0; j < m; j++ {
		src := float64(j) * float64(in-1) / float64(m-1)
		lo := int(src)
		if lo >= in-1 {
			d[(in-1)*m+j] = 1
			continue
		}
		frac := src - float64(lo)
		d[lo*m+j] += 1 - frac
		d[(lo+1)*m+j] += frac
	}
	return w, nil
}

func isqrt(n int) (int, bool) {
	r := 0
	for r*r < n {
		r++
	}
	return r, r*r == n
}
