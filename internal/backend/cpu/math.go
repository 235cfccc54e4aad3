package cpu

import (
	"fmt"
	"math"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Element-wise unary math functions.

// Tanh computes the hyperbolic tangent of each element.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("tanh", x, math.Tanh)
}

// Log computes the natural logarithm of each element.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("log", x, math.Log)
}

func (cpu *CPUBackend) unaryOp(name string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := range dst {
			dst[i] = float32(f(float64(src[i])))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := range dst {
			dst[i] = f(src[i])
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", name, x.DType()))
	}

	return result
}
