package ops

import "github.com/lenet-ml/lenet5/internal/tensor"

// SumOp records output = Sum(input), the total over all elements.
//
// Every element contributes with weight 1, so the scalar output gradient
// is broadcast to the full input shape.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	ones := onesLike(op.input, op.input.Device())
	// Scalar grad broadcasts over the ones tensor.
	return []*tensor.RawTensor{backend.Mul(ones, outputGrad)}
}

func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *SumOp) Output() *tensor.RawTensor   { return op.output }
