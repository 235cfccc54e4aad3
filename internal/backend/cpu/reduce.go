package cpu

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Sum computes the total sum of all elements (scalar result, empty shape).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sumAll(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sumAll(x.AsFloat64())
	case tensor.Int32:
		result.AsInt32()[0] = sumAll(x.AsInt32())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

func sumAll[T tensor.DType](data []T) T {
	var sum T
	for _, v := range data {
		sum += v
	}
	return sum
}

// SumDim sums tensor elements along the specified dimension.
// dim supports negative indexing (-1 = last dim). keepDim keeps the
// reduced dimension with size 1 instead of removing it.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		sumDim(x.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumDim(x.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// sumDim accumulates each input element into the output position obtained
// by zeroing its coordinate along the reduced dimension.
func sumDim[T tensor.DType](data, result []T, shape tensor.Shape, dim int) {
	strides := shape.ComputeStrides()

	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()

	for i := range data {
		outIdx := 0
		rem := i
		for d := 0; d < len(shape); d++ {
			coord := rem / strides[d]
			rem %= strides[d]
			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}
		result[outIdx] += data[i]
	}
}

// Argmax returns the index of the maximum value along the specified
// dimension. The reduced dimension is removed; the result dtype is int32.
// Ties go to the lowest index.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("argmax: dimension %d out of range for %dD tensor", dim, ndim))
	}

	outShape := make(tensor.Shape, 0, ndim-1)
	for i := 0; i < ndim; i++ {
		if i != dim {
			outShape = append(outShape, shape[i])
		}
	}

	result, err := tensor.NewRaw(outShape, tensor.Int32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("argmax: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		argmaxDim(x.AsFloat32(), result.AsInt32(), shape, dim)
	case tensor.Float64:
		argmaxDim(x.AsFloat64(), result.AsInt32(), shape, dim)
	case tensor.Int32:
		argmaxDim(x.AsInt32(), result.AsInt32(), shape, dim)
	default:
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}

	return result
}

// argmaxDim walks output positions in row-major order; for each it scans
// the reduced dimension of the input.
func argmaxDim[T tensor.DType](data []T, result []int32, shape tensor.Shape, dim int) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()

	for g := range result {
		// Decompose the output index into input coordinates (reduced dim
		// fixed at zero).
		baseIdx := 0
		rem := g
		for d := 0; d < len(shape); d++ {
			if d == dim {
				continue
			}
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			baseIdx += coord * strides[d]
		}

		maxVal := data[baseIdx]
		maxIdx := int32(0)
		for i := 1; i < dimSize; i++ {
			if v := data[baseIdx+i*dimStride]; v > maxVal {
				maxVal = v
				maxIdx = int32(i)
			}
		}
		result[g] = maxIdx
	}
}
