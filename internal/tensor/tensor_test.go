package tensor_test

import (
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nigbms/internal/tensor"
)

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name    string
		a, b    tensor.Shape
		want    tensor.Shape
		wantErr bool
	}{
		{"equal", tensor.Shape{3, 5}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false},
		{"column", tensor.Shape{3, 1}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false},
		{"row vector", tensor.Shape{5}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false},
		{"scalar", tensor.Shape{}, tensor.Shape{2, 2}, tensor.Shape{2, 2}, false},
		{"incompatible", tensor.Shape{3, 4}, tensor.Shape{3, 5}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tensor.BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShape(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 1, tensor.Shape{}.NumElements())
	assert.Equal(t, "[2 3 4]", s.String())
	assert.Error(t, tensor.Shape{2, 0}.Validate())
}

func TestFromSlice(t *testing.T) {
	x, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 6.0, x.At(1, 2))
	assert.Equal(t, 2.0, x.At(0, 1))

	_, err = tensor.FromSlice([]float64{1, 2}, tensor.Shape{3})
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
}

func TestDualViews(t *testing.T) {
	x, err := tensor.FromSlice([]float64{3, 4}, tensor.Shape{1, 2})
	require.NoError(t, err)
	v, err := tensor.FromSlice([]float64{1, 0}, tensor.Shape{1, 2})
	require.NoError(t, err)

	dual := x.WithTangent(v)
	assert.True(t, dual.IsDual())
	assert.False(t, x.IsDual())
	assert.Same(t, v, dual.Tangent())

	// Views share storage, detached copies do not.
	detached := dual.Detach()
	assert.False(t, detached.IsDual())
	x.Data()[0] = 7
	assert.Equal(t, 7.0, dual.Data()[0])
	assert.Equal(t, 3.0, detached.Data()[0])

	clone := dual.Clone()
	require.True(t, clone.IsDual())
	assert.NotSame(t, v, clone.Tangent())
	assert.Equal(t, v.Data(), clone.Tangent().Data())

	bad := tensor.Zeros(tensor.Shape{2, 1})
	assert.Panics(t, func() { x.SetTangent(bad) })
}

func TestItem(t *testing.T) {
	assert.Equal(t, 2.5, tensor.Scalar(2.5).Item())
	assert.Panics(t, func() { tensor.Zeros(tensor.Shape{2}).Item() })
}

func TestRandn(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := tensor.Randn(tensor.Shape{1000}, rng)
	var mean float64
	for _, v := range x.Data() {
		mean += v
	}
	mean /= 1000
	assert.InDelta(t, 0, mean, 0.15)

	u := tensor.Uniform(tensor.Shape{100}, -2, 3, rng)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, -2.0)
		assert.Less(t, v, 3.0)
	}
}
