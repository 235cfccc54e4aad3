// Package nn implements the neural network building blocks for the
// LeNet-5 classifier.
//
// Building blocks:
//   - Module interface and trainable Parameter
//   - Linear: fully connected layer
//   - Conv2D: 2D convolutional layer
//   - ScaledTanh: scaled hyperbolic tangent with a learned square remap
//   - SumPool: windowed sum subsampling with a learned affine remap
//   - LeNet5: the full network
//   - CrossEntropyLoss and Accuracy
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Module is the base interface for all network components.
//
// Modules compose: LeNet5 is itself a Module built from layer Modules.
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Modules without trainable
	// state return an empty slice.
	Parameters() []*Parameter[B]
}
