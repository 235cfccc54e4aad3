package ops

import "github.com/lenet-ml/lenet5/internal/tensor"

// MatMulOp records output = a @ b.
//
// d(A@B)/dA = outputGrad @ Bᵀ
// d(A@B)/dB = Aᵀ @ outputGrad
type MatMulOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA := backend.MatMul(outputGrad, backend.Transpose(b, 1, 0))
	gradB := backend.MatMul(backend.Transpose(a, 1, 0), outputGrad)

	return []*tensor.RawTensor{gradA, gradB}
}

func (op *MatMulOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *MatMulOp) Output() *tensor.RawTensor   { return op.output }
