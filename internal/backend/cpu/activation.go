package cpu

import (
	"fmt"
	"math"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Softmax computes softmax along the specified dimension.
// Softmax(x_i) = exp(x_i) / sum(exp(x_j)) for all j in the dimension.
// Inputs are shifted by the row max for numerical stability.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: dimension %d out of range for %dD tensor", dim, ndim))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		softmaxDim(result.AsFloat32(), x.AsFloat32(), shape, dim,
			func(v float32) float32 { return float32(math.Exp(float64(v))) })
	case tensor.Float64:
		softmaxDim(result.AsFloat64(), x.AsFloat64(), shape, dim, math.Exp)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

func softmaxDim[T ~float32 | ~float64](dst, src []T, shape tensor.Shape, dim int, exp func(T) T) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()
	numRows := outShape.NumElements()

	for row := 0; row < numRows; row++ {
		baseIdx := 0
		rem := row
		for d := 0; d < len(shape); d++ {
			if d == dim {
				continue
			}
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			baseIdx += coord * strides[d]
		}

		maxVal := src[baseIdx]
		for i := 1; i < dimSize; i++ {
			if v := src[baseIdx+i*dimStride]; v > maxVal {
				maxVal = v
			}
		}

		var sum T
		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			e := exp(src[idx] - maxVal)
			dst[idx] = e
			sum += e
		}

		for i := 0; i < dimSize; i++ {
			dst[baseIdx+i*dimStride] /= sum
		}
	}
}
