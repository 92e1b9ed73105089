package constructor_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/internal/constructor"
	"github.com/born-ml/nigbms/internal/tensor"
)

func fromSlice(shape tensor.Shape, values ...float64) *tensor.RawTensor {
	return must.M1(tensor.FromSlice(values, shape))
}

func TestConstructSlicesInOrder(t *testing.T) {
	c, err := constructor.New(
		constructor.ParamSpec{Name: "x0", Shape: tensor.Shape{3}},
		constructor.ParamSpec{Name: "omega", Shape: tensor.Shape{1}},
	)
	require.NoError(t, err)
	assert.Equal(t, 4, c.EncDim())

	theta := fromSlice(tensor.Shape{2, 4}, 1, 2, 3, 4, 5, 6, 7, 8)
	p := c.Construct(cpu.New(), theta)

	assert.Equal(t, tensor.Shape{2, 3}, p["x0"].Shape())
	assert.Equal(t, []float64{1, 2, 3, 5, 6, 7}, p["x0"].Data())
	assert.Equal(t, tensor.Shape{2, 1}, p["omega"].Shape())
	assert.Equal(t, []float64{4, 8}, p["omega"].Data())
	assert.Equal(t, tensor.Shape{2, 4, 1}, p.Enc().Shape())
	assert.Equal(t, theta.Data(), p.Enc().Data())

	assert.Panics(t, func() { c.Construct(cpu.New(), tensor.Zeros(tensor.Shape{2, 5})) })
}

func TestConstructWithCodec(t *testing.T) {
	c, err := constructor.New(
		constructor.ParamSpec{Name: "u", Shape: tensor.Shape{2, 3}, Codec: constructor.NewSinCodec(2, 6)},
		constructor.ParamSpec{Name: "s", Shape: tensor.Shape{1}},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, c.EncDim())

	theta := fromSlice(tensor.Shape{1, 3}, 1, 0, 7)
	p := c.Construct(cpu.New(), theta)
	require.Equal(t, tensor.Shape{1, 2, 3}, p["u"].Shape())
	for j := 0; j < 6; j++ {
		assert.InDelta(t, math.Sin(float64(j+1)*math.Pi/7), p["u"].Data()[j], 1e-12)
	}
	assert.Equal(t, []float64{7}, p["s"].Data())
}

func TestNewRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name  string
		specs []constructor.ParamSpec
	}{
		{"reserved", []constructor.ParamSpec{{Name: constructor.EncKey, Shape: tensor.Shape{1}}}},
		{"empty name", []constructor.ParamSpec{{Shape: tensor.Shape{1}}}},
		{"duplicate", []constructor.ParamSpec{{Name: "a", Shape: tensor.Shape{1}}, {Name: "a", Shape: tensor.Shape{2}}}},
		{"bad shape", []constructor.ParamSpec{{Name: "a", Shape: tensor.Shape{0}}}},
		{"codec width", []constructor.ParamSpec{{Name: "a", Shape: tensor.Shape{5}, Codec: constructor.NewSinCodec(2, 4)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := constructor.New(tt.specs...)
			assert.ErrorIs(t, err, constructor.ErrInvalidSpec)
		})
	}
}

func TestConstructPropagatesTangents(t *testing.T) {
	codec := constructor.NewSinCodec(3, 5)
	c := must.M1(constructor.New(constructor.ParamSpec{Name: "u", Shape: tensor.Shape{5}, Codec: codec}))

	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()
	rng := rand.New(rand.NewPCG(1, 1))
	theta := tensor.Randn(tensor.Shape{2, 3}, rng)
	v := tensor.Randn(tensor.Shape{2, 3}, rng)

	p := c.Construct(b, b.MakeDual(theta, v))
	u, du := b.UnpackDual(p["u"])
	require.NotNil(t, du)

	want := codec.Decode(cpu.New(), v)
	assert.InDeltaSlice(t, want.Data(), du.Data(), 1e-12)

	// Reverse mode: d sum(u) / d theta = row sums of the basis.
	grads, err := b.Gradient(u, tensor.Ones(u.Shape()), theta)
	require.NoError(t, err)
	basis := codec.DecodeMatrix()
	for i := 0; i < 3; i++ {
		var s float64
		for j := 0; j < 5; j++ {
			s += basis.At(i, j)
		}
		assert.InDelta(t, s, grads[0].At(0, i), 1e-12)
		assert.InDelta(t, s, grads[0].At(1, i), 1e-12)
	}
}

func TestSinCodecRoundTrip(t *testing.T) {
	codec := constructor.NewSinCodec(6, 6)
	y := tensor.Randn(tensor.Shape{3, 6}, rand.New(rand.NewPCG(2, 2)))
	b := cpu.New()
	back := codec.Decode(b, codec.Encode(b, y))
	assert.InDeltaSlice(t, y.Data(), back.Data(), 1e-12)
}

func TestInterpolateCodec(t *testing.T) {
	codec, err := constructor.NewInterpolateCodec(3, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, codec.DecDim())

	out := codec.Decode(cpu.New(), fromSlice(tensor.Shape{1, 3}, 0, 10, 20))
	assert.InDeltaSlice(t, []float64{0, 4, 8, 12, 16, 20}, out.Data(), 1e-12)

	// Non-multiples round down to a multiple of the input length.
	codec, err = constructor.NewInterpolateCodec(3, 7)
	require.NoError(t, err)
	assert.Equal(t, 6, codec.DecDim())

	_, err = constructor.NewInterpolateCodec(4, 2)
	assert.ErrorIs(t, err, constructor.ErrInvalidSpec)
}

func TestInterpolate2DCodec(t *testing.T) {
	codec, err := constructor.NewInterpolate2DCodec(4, 16)
	require.NoError(t, err)
	out := codec.Decode(cpu.New(), fromSlice(tensor.Shape{1, 4}, 1, 2, 3, 4)).Data()
	require.Len(t, out, 16)

	assert.InDelta(t, 1, out[0], 1e-12)
	assert.InDelta(t, 2, out[3], 1e-12)
	assert.InDelta(t, 3, out[12], 1e-12)
	assert.InDelta(t, 4, out[15], 1e-12)
	// f(r, c) = 1 + c/3 + 2r/3 on the 4x4 grid.
	assert.InDelta(t, 2, out[5], 1e-12)

	_, err = constructor.NewInterpolate2DCodec(5, 16)
	assert.ErrorIs(t, err, constructor.ErrInvalidSpec)
}

func TestFourierCodecs(t *testing.T) {
	b := cpu.New()
	const n = 8

	fft, err := constructor.NewFFTCodec(n, 4)
	require.NoError(t, err)
	spec := fft.Decode(b, tensor.Full(tensor.Shape{1, n}, 2))
	assert.InDeltaSlice(t, []float64{16, 0, 0, 0}, spec.Data(), 1e-12)

	ifft, err := constructor.NewIFFTCodec(4, n)
	require.NoError(t, err)
	assert.Equal(t, 4, ifft.EncDim())
	assert.Equal(t, n, ifft.DecDim())

	cosine := tensor.Zeros(tensor.Shape{1, n})
	sine := tensor.Zeros(tensor.Shape{1, n})
	for i := 0; i < n; i++ {
		cosine.Data()[i] = math.Cos(2 * math.Pi * float64(i) / n)
		sine.Data()[i] = 3 + math.Sin(2*math.Pi*float64(i)/n)
	}
	enc := ifft.Encode(b, cosine)
	assert.InDeltaSlice(t, []float64{0, 0, 4, 0}, enc.Data(), 1e-12)
	assert.InDeltaSlice(t, cosine.Data(), ifft.Decode(b, enc).Data(), 1e-12)
	assert.InDeltaSlice(t, sine.Data(), ifft.Decode(b, ifft.Encode(b, sine)).Data(), 1e-12)

	_, err = constructor.NewIFFTCodec(3, n)
	assert.ErrorIs(t, err, constructor.ErrInvalidSpec)
	_, err = constructor.NewFFTCodec(4, 8)
	assert.ErrorIs(t, err, constructor.ErrInvalidSpec)
}

func TestNewCodecByName(t *testing.T) {
	for _, name := range []string{"sin", "Interpolate", "ifft"} {
		c, err := constructor.NewCodec(name, 4, 8)
		require.NoError(t, err, name)
		assert.Equal(t, 4, c.EncDim(), name)
	}
	_, err := constructor.NewCodec("wavelet", 4, 8)
	assert.ErrorIs(t, err, constructor.ErrInvalidSpec)
	_, err = constructor.NewCodec("sin", 0, 8)
	assert.ErrorIs(t, err, constructor.ErrInvalidSpec)
}
