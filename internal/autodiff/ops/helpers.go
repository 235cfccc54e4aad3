package ops

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// reduceBroadcast reduces a gradient to the shape of a forward-pass input
// that was broadcast. Broadcast dimensions received copies of the same
// value, so their gradients sum.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (summed along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone on the match path so callers never alias a shared gradient.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	// Shapes align from the right; extra leading dimensions of the
	// gradient are summed away first.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	for i, size := range targetShape {
		if size == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// onesLike returns a tensor of ones with the same shape and dtype.
func onesLike(t *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(t.Shape(), t.DType(), device)
	if err != nil {
		panic(fmt.Sprintf("onesLike: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		data := result.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Float64:
		data := result.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	default:
		panic(fmt.Sprintf("onesLike: unsupported dtype %s", t.DType()))
	}

	return result
}
