package ops

import "github.com/lenet-ml/lenet5/internal/tensor"

// TanhOp records output = tanh(input).
//
// d(tanh(x))/dx = 1 - tanh²(x). The derivative is expressed through the
// already-computed output, so the input is never re-evaluated.
type TanhOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewTanhOp creates a new TanhOp.
func NewTanhOp(input, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{input: input, output: output}
}

func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	defer op.output.ForceNonUnique()()
	outputSquared := backend.Mul(op.output, op.output)
	ones := onesLike(op.output, op.output.Device())
	derivative := backend.Sub(ones, outputSquared)
	return []*tensor.RawTensor{backend.Mul(outputGrad, derivative)}
}

func (op *TanhOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *TanhOp) Output() *tensor.RawTensor   { return op.output }

// LogOp records output = log(input).
//
// d(log(x))/dx = 1/x.
type LogOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLogOp creates a new LogOp.
func NewLogOp(input, output *tensor.RawTensor) *LogOp {
	return &LogOp{input: input, output: output}
}

func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}

func (op *LogOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *LogOp) Output() *tensor.RawTensor   { return op.output }

// ScaleOp records output = input * scalar (scalar held constant).
//
// The gradient is the output gradient scaled by the same constant. This
// keeps fixed multipliers like an activation's output amplitude inside
// the recorded graph without treating them as learnable.
type ScaleOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scalar any
}

// NewScaleOp creates a new ScaleOp.
func NewScaleOp(input, output *tensor.RawTensor, scalar any) *ScaleOp {
	return &ScaleOp{input: input, output: output, scalar: scalar}
}

func (op *ScaleOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

func (op *ScaleOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *ScaleOp) Output() *tensor.RawTensor   { return op.output }

// ShiftOp records output = input + scalar. The gradient passes through
// unchanged.
type ShiftOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewShiftOp creates a new ShiftOp.
func NewShiftOp(input, output *tensor.RawTensor) *ShiftOp {
	return &ShiftOp{input: input, output: output}
}

func (op *ShiftOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.Clone()}
}

func (op *ShiftOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *ShiftOp) Output() *tensor.RawTensor   { return op.output }
