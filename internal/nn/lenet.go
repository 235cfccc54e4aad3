package nn

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// LeNet5 is the convolutional digit recognizer.
//
// Input is a (batch, 1, 32, 32) image tensor; output is raw logits
// (batch, numClasses) with no softmax inside the network. The stage
// sequence and its shape contract:
//
//	C1      Conv2D 1->6, 5x5          (b, 6, 28, 28)
//	A1      ScaledTanh(28)            (b, 6, 28, 28)
//	S2      SumPool + remap 14->14    (b, 6, 14, 14)
//	A2      ScaledTanh(14)            (b, 6, 14, 14)
//	C3      Conv2D 6->16, 5x5         (b, 16, 10, 10)
//	A3      ScaledTanh(10)            (b, 16, 10, 10)
//	S4      SumPool + remap 5->5      (b, 16, 5, 5)
//	A4      ScaledTanh(5)             (b, 16, 5, 5)
//	Flatten                           (b, 400)
//	F5      Linear 400->120           (b, 120)
//	A5      ScaledTanh(120)           (b, 120)
//	F6      Linear 120->84            (b, 84)
//	A6      ScaledTanh(84)            (b, 84)
//	F7      Linear 84->numClasses     (b, numClasses)
//
// C3 connects all 6 input maps to every filter instead of the sparse
// historical connection table; F7 is a plain affine layer instead of the
// historical RBF readout. Both substitutions are deliberate.
type LeNet5[B tensor.Backend] struct {
	numClasses int
	stages     []stage[B]
	backend    B
}

// stage pairs a module with the name used in shape diagnostics.
type stage[B tensor.Backend] struct {
	name   string
	module Module[B]
}

// NewLeNet5 builds the network for the given class count.
func NewLeNet5[B tensor.Backend](numClasses int, backend B) *LeNet5[B] {
	if numClasses <= 0 {
		panic(fmt.Sprintf("lenet5: invalid class count %d", numClasses))
	}

	stages := []stage[B]{
		{"C1", NewConv2D(1, 6, 5, 1, 0, backend)},
		{"A1", NewScaledTanh(28, backend)},
		{"S2", NewSumPool(14, 14, backend)},
		{"A2", NewScaledTanh(14, backend)},
		{"C3", NewConv2D(6, 16, 5, 1, 0, backend)},
		{"A3", NewScaledTanh(10, backend)},
		{"S4", NewSumPool(5, 5, backend)},
		{"A4", NewScaledTanh(5, backend)},
		{"Flatten", &Flatten[B]{}},
		{"F5", NewLinear(400, 120, backend)},
		{"A5", NewScaledTanh(120, backend)},
		{"F6", NewLinear(120, 84, backend)},
		{"A6", NewScaledTanh(84, backend)},
		{"F7", NewLinear(84, numClasses, backend)},
	}

	return &LeNet5[B]{
		numClasses: numClasses,
		stages:     stages,
		backend:    backend,
	}
}

// Forward runs the full stage sequence and returns raw logits.
func (m *LeNet5[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != 1 || shape[2] != 32 || shape[3] != 32 {
		panic(fmt.Sprintf("lenet5: expected input [batch, 1, 32, 32], got %v", shape))
	}

	x := input
	for _, st := range m.stages {
		x = st.module.Forward(x)
	}
	return x
}

// Parameters returns the parameters of every stage, in stage order.
func (m *LeNet5[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, st := range m.stages {
		params = append(params, st.module.Parameters()...)
	}
	return params
}

// NumClasses returns the width of the logit layer.
func (m *LeNet5[B]) NumClasses() int {
	return m.numClasses
}

// Flatten collapses all non-batch dimensions into one.
type Flatten[B tensor.Backend] struct{}

// Forward reshapes (b, d1, d2, ...) to (b, d1*d2*...).
func (f *Flatten[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("flatten: expected at least 2D input, got %v", shape))
	}
	return input.Reshape(shape[0], input.NumElements()/shape[0])
}

// Parameters returns nil; Flatten has no trainable state.
func (f *Flatten[B]) Parameters() []*Parameter[B] {
	return nil
}
