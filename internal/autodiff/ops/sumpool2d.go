package ops

import "github.com/lenet-ml/lenet5/internal/tensor"

// SumPool2DOp records output = SumPool2D(input, kernelSize, stride).
//
// The derivative of a window sum w.r.t. each input is exactly 1, so the
// backward pass broadcasts each output gradient to every position in its
// window. No forward-pass bookkeeping is needed, unlike max pooling which
// must remember which position won.
type SumPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	kernelSize int
	stride     int
}

// NewSumPool2DOp creates a new SumPool2DOp.
func NewSumPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *SumPool2DOp {
	return &SumPool2DOp{
		input:      input,
		output:     output,
		kernelSize: kernelSize,
		stride:     stride,
	}
}

func (op *SumPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.SumPool2DBackward(op.input, outputGrad, op.kernelSize, op.stride)
	return []*tensor.RawTensor{inputGrad}
}

func (op *SumPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *SumPool2DOp) Output() *tensor.RawTensor   { return op.output }
