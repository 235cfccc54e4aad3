package cpu

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Scalar operations - element-wise operations with a scalar value.
// The scalar's concrete type must match the tensor's dtype; a float64
// scalar is accepted for float32 tensors and narrowed.

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("mulScalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		s := toFloat32(scalar, "mulScalar")
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := range dst {
			dst[i] = src[i] * s
		}
	case tensor.Float64:
		s := toFloat64(scalar, "mulScalar")
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := range dst {
			dst[i] = src[i] * s
		}
	case tensor.Int32:
		s := scalar.(int32)
		src, dst := x.AsInt32(), result.AsInt32()
		for i := range dst {
			dst[i] = src[i] * s
		}
	default:
		panic(fmt.Sprintf("mulScalar: unsupported dtype %s", x.DType()))
	}

	return result
}

// AddScalar adds a scalar value to each element of the tensor.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("addScalar: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		s := toFloat32(scalar, "addScalar")
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := range dst {
			dst[i] = src[i] + s
		}
	case tensor.Float64:
		s := toFloat64(scalar, "addScalar")
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := range dst {
			dst[i] = src[i] + s
		}
	case tensor.Int32:
		s := scalar.(int32)
		src, dst := x.AsInt32(), result.AsInt32()
		for i := range dst {
			dst[i] = src[i] + s
		}
	default:
		panic(fmt.Sprintf("addScalar: unsupported dtype %s", x.DType()))
	}

	return result
}

func toFloat32(scalar any, op string) float32 {
	switch v := scalar.(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	case int:
		return float32(v)
	}
	panic(fmt.Sprintf("%s: cannot use scalar %T with float32 tensor", op, scalar))
}

func toFloat64(scalar any, op string) float64 {
	switch v := scalar.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	panic(fmt.Sprintf("%s: cannot use scalar %T with float64 tensor", op, scalar))
}
