package serialization_test

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nigbms/internal/serialization"
	"github.com/born-ml/nigbms/internal/tensor"
)

func TestSafeTensorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.safetensors")
	ys := must.M1(tensor.FromSlice([]float64{1.5, -2, 3e-9, 4, 5, 6}, tensor.Shape{2, 3}))
	sims := must.M1(tensor.FromSlice([]float64{0.25}, tensor.Shape{1}))

	err := serialization.WriteSafeTensors(path, map[string]*tensor.RawTensor{
		"ys":   ys,
		"sims": sims,
	}, map[string]string{"grad_type": "cv_fwd"})
	require.NoError(t, err)

	tensors, meta, err := serialization.ReadSafeTensors(path)
	require.NoError(t, err)
	require.Len(t, tensors, 2)
	assert.Equal(t, tensor.Shape{2, 3}, tensors["ys"].Shape())
	assert.Equal(t, ys.Data(), tensors["ys"].Data())
	assert.Equal(t, sims.Data(), tensors["sims"].Data())
	assert.Equal(t, "cv_fwd", meta["grad_type"])
}

func TestEncodeAlignsDataSection(t *testing.T) {
	var buf bytes.Buffer
	x := must.M1(tensor.FromSlice([]float64{1}, tensor.Shape{1}))
	require.NoError(t, serialization.Encode(&buf, map[string]*tensor.RawTensor{"x": x}, nil))

	headerSize := binary.LittleEndian.Uint64(buf.Bytes()[:8])
	assert.Zero(t, headerSize%8)
	assert.Equal(t, 8+int(headerSize)+8, buf.Len())
}

func TestDecodeRejectsMalformedFiles(t *testing.T) {
	_, _, err := serialization.Decode([]byte{1, 2})
	assert.True(t, errors.Is(err, serialization.ErrOutOfBounds))

	header := []byte(`{"a":{"dtype":"F64","shape":[2],"data_offsets":[0,16]},` +
		`"b":{"dtype":"F64","shape":[1],"data_offsets":[8,16]}}`)
	content := make([]byte, 8, 8+len(header)+16)
	binary.LittleEndian.PutUint64(content, uint64(len(header)))
	content = append(content, header...)
	content = append(content, make([]byte, 16)...)

	_, _, err = serialization.Decode(content)
	require.Error(t, err)
	assert.True(t, errors.Is(err, serialization.ErrOffsetOverlap))

	header = []byte(`{"a":{"dtype":"I8","shape":[1],"data_offsets":[0,1]}}`)
	content = make([]byte, 8, 8+len(header)+1)
	binary.LittleEndian.PutUint64(content, uint64(len(header)))
	content = append(content, header...)
	content = append(content, 0)
	_, _, err = serialization.Decode(content)
	assert.True(t, errors.Is(err, serialization.ErrUnsupportedDType))
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, serialization.ValidateTensorName("meta.0.weight"))
	for _, bad := range []string{"", "../x", "a/b", "a\\b", "a\x00b"} {
		err := serialization.ValidateTensorName(bad)
		assert.True(t, errors.Is(err, serialization.ErrInvalidTensorName), "name %q", bad)
	}
}

func TestValidateTensorOffsets(t *testing.T) {
	ok := []serialization.TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}
	assert.NoError(t, serialization.ValidateTensorOffsets(ok, 16))

	err := serialization.ValidateTensorOffsets(ok, 12)
	assert.True(t, errors.Is(err, serialization.ErrOutOfBounds))

	err = serialization.ValidateTensorOffsets([]serialization.TensorMeta{{Name: "a", Offset: -1, Size: 8}}, 16)
	assert.True(t, errors.Is(err, serialization.ErrNegativeOffset))
}
