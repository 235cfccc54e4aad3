package tensor

import (
	"fmt"
	"math"
)

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a naive in-package backend for tests.
//
// Element-wise, matrix and shape operations are implemented directly so
// the typed Tensor API can be tested without importing a real backend
// (which would create an import cycle). The structured ops that only
// the real backends need (convolution, pooling and their backward
// passes) panic.
type MockBackend struct{}

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return CPU
}

// Add performs element-wise addition with broadcasting.
func (m *MockBackend) Add(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (m *MockBackend) Sub(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (m *MockBackend) Mul(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (m *MockBackend) Div(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x / y })
}

func (m *MockBackend) elementWise(a, b *RawTensor, op func(float64, float64) float64) *RawTensor {
	outShape, _, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(err)
	}

	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := make([]float64, outShape.NumElements())
	for i := range resultData {
		aIdx := m.broadcastIndex(i, outShape, a.Shape())
		bIdx := m.broadcastIndex(i, outShape, b.Shape())
		resultData[i] = op(aData[aIdx], bData[bIdx])
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// MatMul performs naive 2D matrix multiplication.
func (m *MockBackend) MatMul(a, b *RawTensor) *RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic("MatMul only supports 2D tensors in mock backend")
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("incompatible shapes for MatMul: %v @ %v", aShape, bShape))
	}

	rows, inner := aShape[0], aShape[1]
	cols := bShape[1]

	result, err := NewRaw(Shape{rows, cols}, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum := 0.0
			for k := 0; k < inner; k++ {
				sum += aData[i*inner+k] * bData[k*cols+j]
			}
			resultData[i*cols+j] = sum
		}
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Conv2D is not implemented in the mock backend.
func (m *MockBackend) Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor {
	panic("Conv2D not implemented in mock backend")
}

// Conv2DInputBackward is not implemented in the mock backend.
func (m *MockBackend) Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor {
	panic("Conv2DInputBackward not implemented in mock backend")
}

// Conv2DKernelBackward is not implemented in the mock backend.
func (m *MockBackend) Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor {
	panic("Conv2DKernelBackward not implemented in mock backend")
}

// SumPool2D is not implemented in the mock backend.
func (m *MockBackend) SumPool2D(input *RawTensor, kernelSize, stride int) *RawTensor {
	panic("SumPool2D not implemented in mock backend")
}

// SumPool2DBackward is not implemented in the mock backend.
func (m *MockBackend) SumPool2DBackward(input, grad *RawTensor, kernelSize, stride int) *RawTensor {
	panic("SumPool2DBackward not implemented in mock backend")
}

// Reshape returns a copy with a new shape.
func (m *MockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	if t.Shape().NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("cannot reshape %v to %v", t.Shape(), newShape))
	}
	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}
	copy(result.Data(), t.Data())
	return result
}

// Transpose permutes dimensions.
func (m *MockBackend) Transpose(t *RawTensor, axes ...int) *RawTensor {
	shape := t.Shape()
	rank := len(shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose axes %v do not match rank %d", axes, rank))
	}

	newShape := make(Shape, rank)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	srcStrides := shape.ComputeStrides()
	dstStrides := newShape.ComputeStrides()
	srcData := m.toFloat64Slice(t)
	dstData := make([]float64, newShape.NumElements())

	idx := make([]int, rank)
	for i := range dstData {
		rem := i
		for d := 0; d < rank; d++ {
			idx[d] = rem / dstStrides[d]
			rem %= dstStrides[d]
		}
		srcIdx := 0
		for d := 0; d < rank; d++ {
			srcIdx += idx[d] * srcStrides[axes[d]]
		}
		dstData[i] = srcData[srcIdx]
	}

	m.fromFloat64Slice(dstData, result)
	return result
}

// MulScalar multiplies every element by a scalar.
func (m *MockBackend) MulScalar(x *RawTensor, scalar any) *RawTensor {
	s := m.scalarToFloat64(scalar)
	return m.unary(x, func(v float64) float64 { return v * s })
}

// AddScalar adds a scalar to every element.
func (m *MockBackend) AddScalar(x *RawTensor, scalar any) *RawTensor {
	s := m.scalarToFloat64(scalar)
	return m.unary(x, func(v float64) float64 { return v + s })
}

// Tanh applies the hyperbolic tangent element-wise.
func (m *MockBackend) Tanh(x *RawTensor) *RawTensor {
	return m.unary(x, math.Tanh)
}

// Log applies the natural logarithm element-wise.
func (m *MockBackend) Log(x *RawTensor) *RawTensor {
	return m.unary(x, math.Log)
}

// Softmax normalizes along a dimension. The mock only supports dim as
// the trailing dimension of a 2D tensor.
func (m *MockBackend) Softmax(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	if len(shape) != 2 || (dim != 1 && dim != -1) {
		panic("Softmax mock only supports 2D tensors along dim 1")
	}

	result, err := NewRaw(shape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	rows, cols := shape[0], shape[1]
	src := m.toFloat64Slice(x)
	dst := make([]float64, len(src))
	for r := 0; r < rows; r++ {
		row := src[r*cols : (r+1)*cols]
		maxVal := row[0]
		for _, v := range row {
			if v > maxVal {
				maxVal = v
			}
		}
		sum := 0.0
		for c, v := range row {
			e := math.Exp(v - maxVal)
			dst[r*cols+c] = e
			sum += e
		}
		for c := 0; c < cols; c++ {
			dst[r*cols+c] /= sum
		}
	}

	m.fromFloat64Slice(dst, result)
	return result
}

// Sum reduces to a scalar.
func (m *MockBackend) Sum(x *RawTensor) *RawTensor {
	result, err := NewRaw(Shape{}, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}
	sum := 0.0
	for _, v := range m.toFloat64Slice(x) {
		sum += v
	}
	m.fromFloat64Slice([]float64{sum}, result)
	return result
}

// SumDim sums along a dimension.
func (m *MockBackend) SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	shape := x.Shape()
	rank := len(shape)
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("SumDim dimension %d out of range for shape %v", dim, shape))
	}

	outShape := make(Shape, 0, rank)
	for d, size := range shape {
		switch {
		case d != dim:
			outShape = append(outShape, size)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}

	result, err := NewRaw(outShape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	strides := shape.ComputeStrides()
	src := m.toFloat64Slice(x)
	dst := make([]float64, outShape.NumElements())
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := strides[dim]
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			sum := 0.0
			for k := 0; k < shape[dim]; k++ {
				sum += src[o*shape[dim]*inner+k*inner+i]
			}
			dst[o*inner+i] = sum
		}
	}

	m.fromFloat64Slice(dst, result)
	return result
}

// Argmax returns indices of the maximum along a dimension. The mock
// only supports the trailing dimension of a 2D tensor.
func (m *MockBackend) Argmax(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	if len(shape) != 2 || (dim != 1 && dim != -1) {
		panic("Argmax mock only supports 2D tensors along dim 1")
	}

	rows, cols := shape[0], shape[1]
	result, err := NewRaw(Shape{rows}, Int32, m.Device())
	if err != nil {
		panic(err)
	}

	src := m.toFloat64Slice(x)
	dst := result.AsInt32()
	for r := 0; r < rows; r++ {
		best := 0
		for c := 1; c < cols; c++ {
			if src[r*cols+c] > src[r*cols+best] {
				best = c
			}
		}
		dst[r] = int32(best)
	}

	return result
}

func (m *MockBackend) unary(x *RawTensor, f func(float64) float64) *RawTensor {
	result, err := NewRaw(x.Shape(), x.DType(), m.Device())
	if err != nil {
		panic(err)
	}
	src := m.toFloat64Slice(x)
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = f(v)
	}
	m.fromFloat64Slice(dst, result)
	return result
}

func (m *MockBackend) scalarToFloat64(scalar any) float64 {
	switch s := scalar.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	case int32:
		return float64(s)
	default:
		panic(fmt.Sprintf("unsupported scalar type %T", scalar))
	}
}

// broadcastIndex maps a flat index in outShape to a flat index in
// srcShape under broadcasting rules.
func (m *MockBackend) broadcastIndex(flatIdx int, outShape, srcShape Shape) int {
	outStrides := outShape.ComputeStrides()
	srcStrides := srcShape.ComputeStrides()
	offset := len(outShape) - len(srcShape)

	srcIdx := 0
	for d := range outShape {
		coord := (flatIdx / outStrides[d]) % outShape[d]
		sd := d - offset
		if sd < 0 {
			continue
		}
		if srcShape[sd] == 1 {
			continue
		}
		srcIdx += coord * srcStrides[sd]
	}
	return srcIdx
}

func (m *MockBackend) toFloat64Slice(t *RawTensor) []float64 {
	switch t.DType() {
	case Float32:
		src := t.AsFloat32()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case Float64:
		return t.AsFloat64()
	case Int32:
		src := t.AsInt32()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	default:
		panic(fmt.Sprintf("unsupported dtype %v", t.DType()))
	}
}

func (m *MockBackend) fromFloat64Slice(data []float64, t *RawTensor) {
	switch t.DType() {
	case Float32:
		dst := t.AsFloat32()
		for i, v := range data {
			dst[i] = float32(v)
		}
	case Float64:
		copy(t.AsFloat64(), data)
	case Int32:
		dst := t.AsInt32()
		for i, v := range data {
			dst[i] = int32(v)
		}
	default:
		panic(fmt.Sprintf("unsupported dtype %v", t.DType()))
	}
}
