package constructor

import (
	"math"

	"github.com/born-ml/nigbms/internal/tensor"
)

// SinCodec expands an encoding in the discrete sine basis
// phi_i(j) = sin(i j pi / (dec+1)), i = 1..enc, j = 1..dec.
// The basis vectors are the eigenvectors of the 1-D Laplacian.
type SinCodec struct {
	linear
}

// NewSinCodec builds the basis.
func NewSinCodec(encDim, decDim int) *SinCodec {
	basis := tensor.Zeros(tensor.Shape{encDim, decDim})
	inverse := tensor.Zeros(tensor.Shape{decDim, encDim})
	scale := 2 / float64(decDim+1)
	for i := 0; i < encDim; i++ {
		for j := 0; j < decDim; j++ {
			v := math.Sin(float64((i+1)*(j+1)) * math.Pi / float64(decDim+1))
			basis.Data()[i*decDim+j] = v
			inverse.Data()[j*encDim+i] = scale * v
		}
	}
	return &SinCodec{linear{dec: basis, enc: inverse}}
}

// Encode projects y [batch, dec] onto the basis. For enc == dec it inverts
// Decode exactly.
func (c *SinCodec) Encode(b tensor.Backend, y *tensor.RawTensor) *tensor.RawTensor {
	return c.encode(b, y)
}
