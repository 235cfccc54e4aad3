package nn

import (
	"math"
	"math/rand"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Xavier (Glorot) initialization: uniform over
// [-sqrt(6/(fan_in+fan_out)), +sqrt(6/(fan_in+fan_out))].
// Keeps activation variance roughly constant across dense layers.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}

	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // math/rand is fine for weight initialization
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}

	return tensor.New[float32, B](t, backend)
}

// LeCunUniform initializes weights uniformly over [-2.4/fan_in, +2.4/fan_in],
// the scheme of the original convolutional digit recognizers. Used for
// convolution kernels where it keeps pre-activations inside the
// quasi-linear region of the scaled tanh.
func LeCunUniform[B tensor.Backend](fanIn int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := 2.4 / float64(fanIn)

	t, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}

	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // math/rand is fine for weight initialization
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}

	return tensor.New[float32, B](t, backend)
}

// Identity creates a square identity matrix scaled by gain.
// Used for remap weights that should start as a pass-through (gain 1) or
// a fixed rescale (e.g. gain 0.25 turns a 2x2 window sum into an
// average).
func Identity[B tensor.Backend](n int, gain float32, backend B) *tensor.Tensor[float32, B] {
	t, err := tensor.NewRaw(tensor.Shape{n, n}, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}

	data := t.AsFloat32()
	for i := 0; i < n; i++ {
		data[i*n+i] = gain
	}

	return tensor.New[float32, B](t, backend)
}

// Zeros creates a zero-filled tensor. Common for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}

// Randn creates a tensor with values drawn from N(0, 1).
func Randn[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Randn[float32](shape, backend)
}
