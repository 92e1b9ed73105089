package autodiff

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/autodiff/ops"
	"github.com/born-ml/nigbms/internal/tensor"
)

// ErrNoGradientPath is returned by Gradient when a requested input is not
// connected to the output through recorded operations. This is the normal
// outcome for solvers that run outside the autodiff backend.
var ErrNoGradientPath = errors.New("no gradient path from output to input")

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	grads, err := tape.Gradient(loss, tensor.Ones(loss.Shape()), backend, w)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool            // Whether tape is currently recording
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 256),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients for every tensor reachable from output by
// walking the tape in reverse.
//
// Algorithm:
//  1. Seed output with outputGrad (typically ones for a scalar loss)
//  2. Walk operations in reverse order
//  3. For each operation whose output has a gradient, apply its backward rule
//  4. Accumulate gradients when the same tensor is used multiple times
//
// Returns a map from RawTensor to its accumulated gradient. Gradient
// computations run on backend, which should be a non-recording backend.
func (t *GradientTape) Backward(
	output, outputGrad *tensor.RawTensor,
	backend tensor.Backend,
) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	grads[output] = outputGrad
	if len(t.operations) == 0 {
		return grads
	}

	// Stop recording during backward pass to prevent recording gradient operations.
	// Backward may be re-entered from a custom operation; the flag is restored
	// by the outermost call.
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	// Operations may be appended by a nested forward pass inside a custom
	// backward rule; only the operations present now are walked.
	n := len(t.operations)
	for i := n - 1; i >= 0; i-- {
		op := t.operations[i]
		opOutputGrad, hasGrad := grads[op.Output()]
		if !hasGrad {
			continue
		}
		inputGrads := op.Backward(opOutputGrad, backend)
		t.accumulateGrads(op, inputGrads, grads, backend)
	}

	return grads
}

// accumulateGrads accumulates gradients for each input tensor.
func (t *GradientTape) accumulateGrads(
	op ops.Operation,
	inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for j, input := range op.Inputs() {
		if j >= len(inputGrads) {
			break
		}
		inputGrad := inputGrads[j]
		if inputGrad == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrad)
		} else {
			grads[input] = inputGrad
		}
	}
}

// Gradient returns d(output)/d(input) contracted with outputGrad, for each of
// inputs, in order. It is the tape analogue of a vector-Jacobian product.
//
// If any input is unreachable from output, Gradient returns ErrNoGradientPath
// wrapped with the index of the first such input. The returned gradients are
// detached copies.
func (t *GradientTape) Gradient(
	output, outputGrad *tensor.RawTensor,
	backend tensor.Backend,
	inputs ...*tensor.RawTensor,
) ([]*tensor.RawTensor, error) {
	if !outputGrad.Shape().Equal(output.Shape()) {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch,
			"gradient seed shape %v does not match output shape %v", outputGrad.Shape(), output.Shape())
	}
	grads := t.Backward(output, outputGrad, backend)
	result := make([]*tensor.RawTensor, len(inputs))
	for i, in := range inputs {
		g, ok := grads[in]
		if !ok {
			return nil, errors.Wrapf(ErrNoGradientPath, "input #%d (shape %v)", i, in.Shape())
		}
		result[i] = g.Detach()
	}
	return result, nil
}
