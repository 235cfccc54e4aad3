// Copyright 2026 LeNet ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides the public API for reverse-mode automatic
// differentiation.
//
// The AutodiffBackend decorator wraps any tensor.Backend and records
// operations on a gradient tape while recording is enabled:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := lossFn.Forward(model.Forward(x), y)
//	grads := autodiff.Backward(loss, backend)
//	backend.Tape().Clear()
package autodiff

import (
	"github.com/lenet-ml/lenet5/internal/autodiff"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// AutodiffBackend decorates a backend with gradient-tape recording.
type AutodiffBackend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// GradientTape records operations for the backward pass.
type GradientTape = autodiff.GradientTape

// BackwardCapable is a backend that exposes its gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// New wraps a backend with autodiff support.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return autodiff.New(backend)
}

// Backward runs the backward pass from t and returns the gradient of t
// with respect to every tensor on the tape.
func Backward[T tensor.DType, B autodiff.BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
