package constructor

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/born-ml/nigbms/internal/tensor"
)

// FFTCodec maps a real signal of length n to its first out/2 real-FFT
// coefficients, real and imaginary parts interleaved.
type FFTCodec struct {
	linear
}

// NewFFTCodec builds the transform for signals of length n. out must be even
// and out/2 must not exceed n/2+1.
func NewFFTCodec(n, out int) (*FFTCodec, error) {
	if err := checkSpectrum(n, out); err != nil {
		return nil, err
	}
	return &FFTCodec{linear{dec: rfftMatrix(n, out)}}, nil
}

// IFFTCodec maps interleaved coefficients [re0, im0, re1, im1, ...] to the
// real signal of length n they describe, zero filling the missing
// frequencies. Imaginary parts of the zero and Nyquist frequencies are
// ignored.
type IFFTCodec struct {
	linear
}

// NewIFFTCodec builds the inverse transform. enc must be even and enc/2 must
// not exceed n/2+1.
func NewIFFTCodec(enc, n int) (*IFFTCodec, error) {
	if err := checkSpectrum(n, enc); err != nil {
		return nil, err
	}
	return &IFFTCodec{linear{dec: irfftMatrix(enc, n), enc: rfftMatrix(n, enc)}}, nil
}

// Encode returns the truncated spectrum of y [batch, n]. For band-limited y
// it inverts Decode.
func (c *IFFTCodec) Encode(b tensor.Backend, y *tensor.RawTensor) *tensor.RawTensor {
	return c.encode(b, y)
}

func checkSpectrum(n, width int) error {
	if width%2 != 0 || width/2 > n/2+1 {
		return errors.Wrapf(ErrInvalidSpec, "fft: %d interleaved values do not fit the spectrum of length %d", width, n)
	}
	return nil
}

// rfftMatrix returns F [n, out] whose row t holds the truncated spectrum of
// the unit impulse at t.
func rfftMatrix(n, out int) *tensor.RawTensor {
	fft := fourier.NewFFT(n)
	m := tensor.Zeros(tensor.Shape{n, out})
	seq := make([]float64, n)
	coeff := make([]complex128, n/2+1)
	for t := 0; t < n; t++ {
		seq[t] = 1
		fft.Coefficients(coeff, seq)
		seq[t] = 0
		row := m.Data()[t*out : (t+1)*out]
		for k := 0; k < out/2; k++ {
			row[2*k] = real(coeff[k])
			row[2*k+1] = imag(coeff[k])
		}
	}
	return m
}

// irfftMatrix returns G [enc, n] whose rows are the normalised inverse
// transforms of a unit real or imaginary part at each frequency.
func irfftMatrix(enc, n int) *tensor.RawTensor {
	fft := fourier.NewFFT(n)
	m := tensor.Zeros(tensor.Shape{enc, n})
	coeff := make([]complex128, n/2+1)
	seq := make([]float64, n)
	for r := 0; r < enc; r++ {
		k := r / 2
		unit := complex(1, 0)
		if r%2 == 1 {
			unit = complex(0, 1)
		}
		// The zero frequency, and the Nyquist frequency for even n, are real.
		if r%2 == 1 && (k == 0 || (n%2 == 0 && k == n/2)) {
			continue
		}
		coeff[k] = unit
		fft.Sequence(seq, coeff)
		coeff[k] = 0
		row := m.Data()[r*n : (r+1)*n]
		for t, v := range seq {
			row[t] = v / float64(n)
		}
	}
	return m
}
