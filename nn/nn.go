// Copyright 2026 LeNet ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for the network building blocks
// and the LeNet-5 model itself.
package nn

import (
	"iter"

	"github.com/lenet-ml/lenet5/internal/nn"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Module is the common interface for all network blocks.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// Conv2D is a 2D convolutional layer with a square kernel.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a convolutional layer.
//
// Example:
//
//	conv := nn.NewConv2D(1, 6, 5, 1, 0, backend) // 1->6 channels, 5x5 kernel
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, backend)
}

// SumPool is the 2x2 sum-pooling layer with a learned affine remap of
// the pooled rows.
type SumPool[B tensor.Backend] = nn.SumPool[B]

// NewSumPool creates a sum-pooling layer whose remap maps rows of
// width in to rows of width out.
func NewSumPool[B tensor.Backend](in, out int, backend B) *SumPool[B] {
	return nn.NewSumPool(in, out, backend)
}

// Flatten collapses all non-batch dimensions into one.
type Flatten[B tensor.Backend] = nn.Flatten[B]

// Activations

// ScaledTanhAmplitude is the output amplitude of the scaled tanh.
const ScaledTanhAmplitude = nn.ScaledTanhAmplitude

// ScaledTanh is the scaled hyperbolic tangent activation with a
// learned square remap of the trailing dimension.
type ScaledTanh[B tensor.Backend] = nn.ScaledTanh[B]

// NewScaledTanh creates the activation for inputs whose trailing
// dimension equals features.
func NewScaledTanh[B tensor.Backend](features int, backend B) *ScaledTanh[B] {
	return nn.NewScaledTanh(features, backend)
}

// Loss

// CrossEntropyLoss computes softmax cross-entropy over raw logits.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates the loss module.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend)
}

// Accuracy returns the fraction of rows whose argmax matches the
// target label.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	return nn.Accuracy(logits, targets)
}

// Model

// LeNet5 is the convolutional digit recognizer.
type LeNet5[B tensor.Backend] = nn.LeNet5[B]

// NewLeNet5 builds the network for the given class count.
//
// Example:
//
//	model := nn.NewLeNet5(10, backend)
//	logits := model.Forward(images) // raw logits, no softmax
func NewLeNet5[B tensor.Backend](numClasses int, backend B) *LeNet5[B] {
	return nn.NewLeNet5(numClasses, backend)
}

// ProbeShapes yields (stage name, output shape) pairs for a fresh
// network driven by a random batch, one stage at a time.
func ProbeShapes[B tensor.Backend](batchSize, numClasses int, backend B) iter.Seq2[string, tensor.Shape] {
	return nn.ProbeShapes[B](batchSize, numClasses, backend)
}
