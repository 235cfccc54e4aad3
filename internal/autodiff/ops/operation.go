// Package ops defines the differentiable operations recorded on the
// gradient tape.
//
// Each operation stores the raw tensors involved in the forward pass and
// knows how to compute input gradients from an output gradient. Backward
// passes are pure orchestration where the backend exposes a dedicated
// backward entry point (convolution, sum pooling) and direct data
// manipulation otherwise.
package ops

import "github.com/lenet-ml/lenet5/internal/tensor"

// Operation is one node of the recorded computation graph.
type Operation interface {
	// Backward computes gradients for the inputs given the output
	// gradient, in the same order as Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors of this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor produced by this operation.
	Output() *tensor.RawTensor
}
