// Copyright 2026 LeNet ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensor operations.
//
// The package defines the core types for type-safe tensor math:
//   - Tensor[T, B]: generic typed view over a raw buffer
//   - RawTensor: untyped shape + dtype + data buffer
//   - Backend: interface for compute implementations
//   - Shape, DataType, Device: core definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
package tensor

import (
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// DType is the constraint for tensor element types.
// Supported types: float32, float64, int32.
type DType = tensor.DType

// DataType identifies the element type of a RawTensor at runtime.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
)

// Device identifies where tensor data lives.
type Device = tensor.Device

// Device constants.
const (
	CPU Device = tensor.CPU
)

// Shape holds the dimensions of a tensor.
// Example: Shape{2, 3, 4} is a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Backend is the compute interface every backend implements.
type Backend = tensor.Backend

// RawTensor is the untyped shape + dtype + data buffer that backends
// operate on.
type RawTensor = tensor.RawTensor

// Tensor is a generic type-safe tensor.
//
// T is the element type (float32, float64, int32) and B is the backend
// implementation. Wrapping the backend type into the tensor type keeps
// mixed-backend expressions from compiling.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Randn[float32](tensor.Shape{2, 3}, backend)
//	y := x.MatMul(x.T())
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Randn creates a tensor of samples from the standard normal
// distribution N(0, 1).
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, b)
}

// Rand creates a tensor of samples from the uniform distribution
// U(0, 1).
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Rand[T, B](shape, b)
}

// FromSlice creates a tensor from a Go slice.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// New wraps a raw tensor in a typed tensor.
//
// This is a low-level constructor; most callers should use Zeros, Randn
// or FromSlice instead.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw allocates a raw tensor with the given shape, dtype and device.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}
