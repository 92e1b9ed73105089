package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// TensorMeta locates one tensor inside the data section.
type TensorMeta struct {
	Name   string
	Shape  []int
	Offset int64 // Byte offset from the start of the data section
	Size   int64 // Size in bytes
}

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Kind:    ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Kind:    ErrNegativeOffset,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Kind:    ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Kind:    ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects names that are empty, too long, or look like paths.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Kind: ErrInvalidTensorName, Details: "empty name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Kind:    ErrInvalidTensorName,
			Tensor:  name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."), strings.ContainsAny(name, "/\\\x00"):
		return &ValidationError{
			Kind:    ErrInvalidTensorName,
			Tensor:  name,
			Details: "contains a path separator, '..' or a null byte",
		}
	}
	return nil
}
