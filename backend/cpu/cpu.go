// Copyright 2026 LeNet ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// The backend implements every tensor operation in plain Go, using
// im2col for convolutions and a worker pool sized from the physical
// core count for the hot loops.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
package cpu

import (
	internalcpu "github.com/lenet-ml/lenet5/internal/backend/cpu"
	"github.com/lenet-ml/lenet5/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
func New() *Backend {
	return internalcpu.New()
}
