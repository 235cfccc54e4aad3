package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenet-ml/lenet5/internal/autodiff"
	"github.com/lenet-ml/lenet5/internal/backend/cpu"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newTestBackend() Backend {
	return autodiff.New(cpu.New())
}

func scaledTanh(x float64) float32 {
	return float32(ScaledTanhAmplitude * math.Tanh(x))
}

// TestScaledTanh_IdentityInit checks that an untrained layer is the
// classic element-wise scaled tanh: with S = I the remap is a no-op.
func TestScaledTanh_IdentityInit(t *testing.T) {
	backend := newTestBackend()
	layer := NewScaledTanh(4, backend)

	input, err := tensor.FromSlice([]float32{-2, -0.5, 0.5, 2, 0, 1, -1, 3}, tensor.Shape{2, 4}, backend)
	require.NoError(t, err)

	output := layer.Forward(input)
	require.True(t, output.Shape().Equal(tensor.Shape{2, 4}))

	inputData := input.Data()
	for i, got := range output.Data() {
		assert.InDelta(t, scaledTanh(float64(inputData[i])), got, 1e-5, "element %d", i)
	}
}

func TestScaledTanh_ZeroMapsToZero(t *testing.T) {
	backend := newTestBackend()
	layer := NewScaledTanh(3, backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
	output := layer.Forward(input)

	for i, v := range output.Data() {
		assert.Zero(t, v, "element %d", i)
	}
}

// TestScaledTanh_Range checks that outputs stay strictly inside
// (-A, A) even for saturating inputs.
func TestScaledTanh_Range(t *testing.T) {
	backend := newTestBackend()
	layer := NewScaledTanh(2, backend)

	input, err := tensor.FromSlice([]float32{-100, 100, -5, 5}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	output := layer.Forward(input)
	for i, v := range output.Data() {
		assert.Less(t, float64(v), float64(ScaledTanhAmplitude), "element %d upper bound", i)
		assert.Greater(t, float64(v), -float64(ScaledTanhAmplitude), "element %d lower bound", i)
	}
}

// TestScaledTanh_Monotone checks that with the identity remap the
// activation is strictly increasing.
func TestScaledTanh_Monotone(t *testing.T) {
	backend := newTestBackend()
	layer := NewScaledTanh(5, backend)

	input, err := tensor.FromSlice([]float32{-3, -1, 0, 1, 3}, tensor.Shape{1, 5}, backend)
	require.NoError(t, err)

	output := layer.Forward(input).Data()
	for i := 1; i < len(output); i++ {
		assert.Greater(t, output[i], output[i-1], "position %d", i)
	}
}

// TestScaledTanh_PreservesShape4D checks the 4D path: flatten for the
// matmul, reshape back.
func TestScaledTanh_PreservesShape4D(t *testing.T) {
	backend := newTestBackend()
	layer := NewScaledTanh(6, backend)

	input := tensor.Randn[float32](tensor.Shape{2, 3, 4, 6}, backend)
	output := layer.Forward(input)

	require.True(t, output.Shape().Equal(tensor.Shape{2, 3, 4, 6}),
		"output shape %v", output.Shape())

	// Identity remap: 4D output matches the element-wise formula too.
	inputData := input.Data()
	for i, got := range output.Data() {
		assert.InDelta(t, scaledTanh(float64(inputData[i])), got, 1e-5, "element %d", i)
	}
}

func TestScaledTanh_TrailingDimensionMismatch(t *testing.T) {
	backend := newTestBackend()
	layer := NewScaledTanh(8, backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 7}, backend)
	assert.Panics(t, func() { layer.Forward(input) })
}

func TestScaledTanh_SingleParameter(t *testing.T) {
	backend := newTestBackend()
	layer := NewScaledTanh(14, backend)

	params := layer.Parameters()
	require.Len(t, params, 1)
	assert.True(t, params[0].Tensor().Shape().Equal(tensor.Shape{14, 14}))
}
