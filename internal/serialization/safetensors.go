package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/tensor"
)

const metadataKey = "__metadata__"

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors writes tensors to a SafeTensors file.
//
// Tensors are written in alphabetical order by name as F64.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	//nolint:gosec // G304: the output path is chosen by the caller
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := Encode(file, tensors, metadata); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "failed to close %s", path)
}

// Encode writes tensors in SafeTensors format to w.
func Encode(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, name := range names {
		raw := tensors[name]
		size := int64(raw.NumElements() * 8)
		shape := make([]int64, len(raw.Shape()))
		for i, dim := range raw.Shape() {
			shape[i] = int64(dim)
		}
		header[name] = SafeTensorHeader{
			DType:       "F64",
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	// The data section is 8-byte aligned by padding the header with spaces.
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	for _, name := range names {
		data := tensors[name].Data()
		buf := make([]byte, 8*len(data))
		for i, v := range data {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return errors.Wrapf(err, "failed to write tensor %s", name)
		}
	}
	return nil
}

// ReadSafeTensors loads every tensor and the metadata from a SafeTensors file.
func ReadSafeTensors(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	//nolint:gosec // G304: the input path is chosen by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read file")
	}
	return Decode(content)
}

// Decode parses a complete SafeTensors payload. F64 and F32 tensors are
// supported; F32 values are widened to float64.
func Decode(content []byte) (map[string]*tensor.RawTensor, map[string]string, error) {
	if len(content) < 8 {
		return nil, nil, errors.Wrap(ErrOutOfBounds, "file shorter than header size prefix")
	}
	headerSize := binary.LittleEndian.Uint64(content[:8])
	if headerSize > MaxHeaderSize {
		return nil, nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}
	if 8+headerSize > uint64(len(content)) {
		return nil, nil, errors.Wrapf(ErrOutOfBounds, "header of %d bytes exceeds file", headerSize)
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(content[8:8+headerSize], &rawHeader); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse header")
	}

	var metadata map[string]string
	metas := make([]TensorMeta, 0, len(rawHeader))
	dtypes := make(map[string]string, len(rawHeader))
	for name, msg := range rawHeader {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, errors.Wrap(err, "failed to parse metadata")
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to parse header of %q", name)
		}
		shape := make([]int, len(h.Shape))
		for i, d := range h.Shape {
			shape[i] = int(d)
		}
		metas = append(metas, TensorMeta{
			Name:   name,
			Shape:  shape,
			Offset: h.DataOffsets[0],
			Size:   h.DataOffsets[1] - h.DataOffsets[0],
		})
		dtypes[name] = h.DType
	}

	data := content[8+headerSize:]
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, nil, err
	}

	tensors := make(map[string]*tensor.RawTensor, len(metas))
	for _, m := range metas {
		raw, err := decodeTensor(m, dtypes[m.Name], data[m.Offset:m.Offset+m.Size])
		if err != nil {
			return nil, nil, err
		}
		tensors[m.Name] = raw
	}
	return tensors, metadata, nil
}

func decodeTensor(m TensorMeta, dtype string, buf []byte) (*tensor.RawTensor, error) {
	raw, err := tensor.NewRaw(tensor.Shape(m.Shape))
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %q", m.Name)
	}
	values := raw.Data()

	var width int
	switch dtype {
	case "F64":
		width = 8
	case "F32":
		width = 4
	default:
		return nil, errors.Wrapf(ErrUnsupportedDType, "tensor %q has dtype %s", m.Name, dtype)
	}
	if len(buf) != width*len(values) {
		return nil, &ValidationError{
			Kind:    ErrOutOfBounds,
			Tensor:  m.Name,
			Details: errors.Errorf("%d bytes for %d %s values", len(buf), len(values), dtype).Error(),
		}
	}
	for i := range values {
		if width == 8 {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		} else {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
		}
	}
	return raw, nil
}
