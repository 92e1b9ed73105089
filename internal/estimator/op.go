package estimator

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/autodiff/ops"
	"github.com/born-ml/nigbms/internal/tensor"
)

// EstimatorOp is the tape node of a wrapped solver. Its output is the rule's
// forward value and its single input is ctx.Theta. The context is consumed
// by the first Backward; a second one panics with ErrContextConsumed.
type EstimatorOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	rule   GradientRule
	ctx    *Context
}

var _ ops.Operation = (*EstimatorOp)(nil)

// Inputs returns [theta].
func (op *EstimatorOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the node's output.
func (op *EstimatorOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward returns the rule's gradient for theta. Errors from the rule are
// raised as panics, like shape errors elsewhere on the tape.
func (op *EstimatorOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	ctx := op.ctx
	if ctx == nil || ctx.Consumed() {
		panic(errors.WithStack(ErrContextConsumed))
	}
	op.ctx = nil
	defer ctx.release()

	grad, err := op.rule.BackwardGradient(ctx, outputGrad)
	if err != nil {
		panic(err)
	}
	return []*tensor.RawTensor{grad}
}

// Apply evaluates rule on ctx and, when b is recording, installs the result
// on b's tape as an EstimatorOp depending on ctx.Theta.
func Apply(b autodiff.Differentiable, rule GradientRule, ctx *Context) *tensor.RawTensor {
	out := rule.ForwardValue(ctx)
	if tape := b.Tape(); tape.IsRecording() {
		tape.Record(&EstimatorOp{input: ctx.Theta, output: out, rule: rule, ctx: ctx})
	}
	return out
}
