package ops

import "github.com/lenet-ml/lenet5/internal/tensor"

// AddOp records output = a + b.
//
// d(a+b)/da = d(a+b)/db = 1: the output gradient flows to both inputs,
// reduced along any dimensions that were broadcast in the forward pass.
type AddOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, a.Shape(), backend),
		reduceBroadcast(outputGrad, b.Shape(), backend),
	}
}

func (op *AddOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *AddOp) Output() *tensor.RawTensor   { return op.output }

// SubOp records output = a - b. The gradient to b is negated.
type SubOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA := reduceBroadcast(outputGrad, a.Shape(), backend)

	negGrad := backend.MulScalar(outputGrad, negOne(outputGrad.DType()))
	gradB := reduceBroadcast(negGrad, b.Shape(), backend)

	return []*tensor.RawTensor{gradA, gradB}
}

func (op *SubOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *SubOp) Output() *tensor.RawTensor   { return op.output }

// MulOp records output = a * b.
//
// d(a*b)/da = b and d(a*b)/db = a.
type MulOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA := reduceBroadcast(backend.Mul(outputGrad, b), a.Shape(), backend)
	gradB := reduceBroadcast(backend.Mul(outputGrad, a), b.Shape(), backend)

	return []*tensor.RawTensor{gradA, gradB}
}

func (op *MulOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *MulOp) Output() *tensor.RawTensor   { return op.output }

// DivOp records output = a / b.
//
// d(a/b)/da = 1/b and d(a/b)/db = -a/b².
type DivOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	// grad_a = outputGrad / b
	gradA := reduceBroadcast(backend.Div(outputGrad, b), a.Shape(), backend)

	// grad_b = -outputGrad * a / b²
	defer b.ForceNonUnique()()
	bSquared := backend.Mul(b, b)
	gradB := backend.Div(backend.Mul(outputGrad, a), bSquared)
	gradB = backend.MulScalar(gradB, negOne(gradB.DType()))
	gradB = reduceBroadcast(gradB, b.Shape(), backend)

	return []*tensor.RawTensor{gradA, gradB}
}

func (op *DivOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *DivOp) Output() *tensor.RawTensor   { return op.output }

// negOne returns -1 boxed as the concrete type matching the dtype.
func negOne(dtype tensor.DataType) any {
	switch dtype {
	case tensor.Float64:
		return float64(-1)
	case tensor.Int32:
		return int32(-1)
	default:
		return float32(-1)
	}
}
