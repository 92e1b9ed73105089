package constructor

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/tensor"
)

// Codec maps an encoding [batch, EncDim] to a decoded parameter
// [batch, DecDim].
type Codec interface {
	EncDim() int
	DecDim() int
	Decode(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor
}

// Encoder is implemented by codecs that also map decoded values back to
// encodings.
type Encoder interface {
	Encode(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor
}

// linear is a codec given by fixed matrices: Decode(x) = x D and, when E is
// set, Encode(y) = y E.
type linear struct {
	dec *tensor.RawTensor // [enc, dec]
	enc *tensor.RawTensor // [dec, enc] or nil
}

func (l *linear) EncDim() int { return l.dec.Shape()[0] }
func (l *linear) DecDim() int { return l.dec.Shape()[1] }

func (l *linear) Decode(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
	return b.MatMul(x, l.dec)
}

func (l *linear) encode(b tensor.Backend, y *tensor.RawTensor) *tensor.RawTensor {
	if l.enc == nil {
		panic(errors.New("codec has no encoder"))
	}
	return b.MatMul(y, l.enc)
}

// DecodeMatrix returns the matrix D with Decode(x) = x D.
func (l *linear) DecodeMatrix() *tensor.RawTensor {
	return l.dec
}

// NewCodec builds a codec by name: "sin", "interpolate", "interpolate2d",
// "fft" or "ifft". encDim is the encoding width and decDim the decoded width.
func NewCodec(name string, encDim, decDim int) (Codec, error) {
	if encDim <= 0 || decDim <= 0 {
		return nil, errors.Wrapf(ErrInvalidSpec, "codec %q: dims %d -> %d", name, encDim, decDim)
	}
	var (
		c   Codec
		err error
	)
	switch strings.ToLower(name) {
	case "sin":
		c = NewSinCodec(encDim, decDim)
	case "interpolate":
		c, err = NewInterpolateCodec(encDim, decDim)
	case "interpolate2d":
		c, err = NewInterpolate2DCodec(encDim, decDim)
	case "fft":
		c, err = NewFFTCodec(encDim, decDim)
	case "ifft":
		c, err = NewIFFTCodec(encDim, decDim)
	default:
		return nil, errors.Wrapf(ErrInvalidSpec, "unknown codec %q", name)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
