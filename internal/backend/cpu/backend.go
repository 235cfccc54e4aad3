// Package cpu implements the pure-Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/parallel"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Elementwise ops take an inplace fast path when the destination buffer is
// uniquely referenced; structured ops (MatMul, Conv2D) spread work across a
// worker pool sized from the CPU topology.
type CPUBackend struct {
	device tensor.Device
	pool   parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		pool:   parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, func(x, y float64) float64 { return x / y })
}

// Reshape returns a tensor with the same data but a different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	copy(result.Data(), t.Data())
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions.
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	transposeData(result, t, axes)
	return result
}

// transposeData copies elements into their permuted positions.
func transposeData(result, t *tensor.RawTensor, axes []int) {
	srcShape := t.Shape()
	srcStrides := srcShape.ComputeStrides()
	dstStrides := result.Shape().ComputeStrides()
	n := t.NumElements()
	ndim := len(srcShape)

	mapIndex := func(i int) int {
		// Decompose flat source index into coordinates, permute, recompose.
		dst := 0
		rem := i
		for d := 0; d < ndim; d++ {
			coord := rem / srcStrides[d]
			rem %= srcStrides[d]
			// Where does source dim d land in the destination?
			for j, ax := range axes {
				if ax == d {
					dst += coord * dstStrides[j]
					break
				}
			}
		}
		return dst
	}

	switch t.DType() {
	case tensor.Float32:
		src, dst := t.AsFloat32(), result.AsFloat32()
		for i := 0; i < n; i++ {
			dst[mapIndex(i)] = src[i]
		}
	case tensor.Float64:
		src, dst := t.AsFloat64(), result.AsFloat64()
		for i := 0; i < n; i++ {
			dst[mapIndex(i)] = src[i]
		}
	case tensor.Int32:
		src, dst := t.AsInt32(), result.AsInt32()
		for i := 0; i < n; i++ {
			dst[mapIndex(i)] = src[i]
		}
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}
}
