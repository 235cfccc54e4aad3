package nn

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// ScaledTanhAmplitude is the fixed output amplitude A of every ScaledTanh
// layer: outputs lie strictly inside (-A, A). The value keeps the
// function close to the identity around the origin, which speeds up
// convergence compared to a unit-amplitude tanh.
const ScaledTanhAmplitude = 1.7159

// ScaledTanh applies y = A * tanh(x @ Sᵀ) along the trailing dimension.
//
//   - S is a learned square remap of shape [features, features], no bias.
//   - A is the fixed constant ScaledTanhAmplitude, shared by all
//     instances and never trained.
//
// The layer is shape-preserving: the trailing dimension of the input must
// equal features and the output shape equals the input shape. Both 2D
// [batch, features] and 4D [batch, C, H, features] inputs are accepted;
// higher-rank inputs are flattened to 2D for the matmul and reshaped
// back, with every step recorded for autodiff.
//
// S starts as the identity, so an untrained layer behaves as the classic
// element-wise scaled tanh and the remap learns deviations from it.
type ScaledTanh[B tensor.Backend] struct {
	features int
	remap    *Parameter[B] // [features, features]
	backend  B
}

// NewScaledTanh creates a ScaledTanh for the given trailing-dimension
// width.
func NewScaledTanh[B tensor.Backend](features int, backend B) *ScaledTanh[B] {
	if features <= 0 {
		panic(fmt.Sprintf("scaledtanh: invalid features %d", features))
	}

	remap := NewParameter("scaledtanh.remap", Identity(features, 1, backend))

	return &ScaledTanh[B]{
		features: features,
		remap:    remap,
		backend:  backend,
	}
}

// Forward computes A * tanh(x @ Sᵀ), preserving the input shape.
func (s *ScaledTanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) == 0 {
		panic("scaledtanh: scalar input has no trailing dimension")
	}

	trailing := shape[len(shape)-1]
	if trailing != s.features {
		panic(fmt.Sprintf("scaledtanh: trailing dimension %d != features %d (input shape %v)",
			trailing, s.features, shape))
	}

	rows := input.NumElements() / s.features

	x := input
	if len(shape) != 2 {
		x = input.Reshape(rows, s.features)
	}

	// [rows, features] @ [features, features] -> [rows, features]
	pre := x.MatMul(s.remap.Tensor().T())
	out := pre.Tanh().MulScalar(ScaledTanhAmplitude)

	if len(shape) != 2 {
		out = out.Reshape(shape...)
	}
	return out
}

// Parameters returns the remap weight.
func (s *ScaledTanh[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{s.remap}
}

// Features returns the trailing-dimension width the layer accepts.
func (s *ScaledTanh[B]) Features() int {
	return s.features
}

// String describes the layer configuration.
func (s *ScaledTanh[B]) String() string {
	return fmt.Sprintf("ScaledTanh(features=%d, amplitude=%g)", s.features, ScaledTanhAmplitude)
}
