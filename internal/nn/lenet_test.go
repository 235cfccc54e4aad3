package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenet-ml/lenet5/internal/autodiff"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

func TestLeNet5_InvalidClassCount(t *testing.T) {
	backend := newTestBackend()

	assert.Panics(t, func() { NewLeNet5(0, backend) })
	assert.Panics(t, func() { NewLeNet5(-3, backend) })
}

func TestLeNet5_ForwardShape(t *testing.T) {
	backend := newTestBackend()

	t.Run("TenClasses", func(t *testing.T) {
		model := NewLeNet5(10, backend)
		input := tensor.Randn[float32](tensor.Shape{4, 1, 32, 32}, backend)

		logits := model.Forward(input)
		assert.True(t, logits.Shape().Equal(tensor.Shape{4, 10}),
			"logits shape %v", logits.Shape())
	})

	t.Run("FortySevenClasses", func(t *testing.T) {
		model := NewLeNet5(47, backend)
		input := tensor.Randn[float32](tensor.Shape{2, 1, 32, 32}, backend)

		logits := model.Forward(input)
		assert.True(t, logits.Shape().Equal(tensor.Shape{2, 47}),
			"logits shape %v", logits.Shape())
	})
}

func TestLeNet5_InputValidation(t *testing.T) {
	backend := newTestBackend()
	model := NewLeNet5(10, backend)

	assert.Panics(t, func() {
		model.Forward(tensor.Zeros[float32](tensor.Shape{1, 1, 28, 28}, backend))
	}, "unpadded 28x28 input")

	assert.Panics(t, func() {
		model.Forward(tensor.Zeros[float32](tensor.Shape{1, 3, 32, 32}, backend))
	}, "three-channel input")

	assert.Panics(t, func() {
		model.Forward(tensor.Zeros[float32](tensor.Shape{1, 32, 32}, backend))
	}, "3D input")
}

// TestLeNet5_StageShapes walks the probe and checks every intermediate
// shape of the forward pass.
func TestLeNet5_StageShapes(t *testing.T) {
	backend := newTestBackend()
	const batch = 4

	expected := []struct {
		name  string
		shape tensor.Shape
	}{
		{"C1", tensor.Shape{batch, 6, 28, 28}},
		{"A1", tensor.Shape{batch, 6, 28, 28}},
		{"S2", tensor.Shape{batch, 6, 14, 14}},
		{"A2", tensor.Shape{batch, 6, 14, 14}},
		{"C3", tensor.Shape{batch, 16, 10, 10}},
		{"A3", tensor.Shape{batch, 16, 10, 10}},
		{"S4", tensor.Shape{batch, 16, 5, 5}},
		{"A4", tensor.Shape{batch, 16, 5, 5}},
		{"Flatten", tensor.Shape{batch, 400}},
		{"F5", tensor.Shape{batch, 120}},
		{"A5", tensor.Shape{batch, 120}},
		{"F6", tensor.Shape{batch, 84}},
		{"A6", tensor.Shape{batch, 84}},
		{"F7", tensor.Shape{batch, 10}},
	}

	i := 0
	for name, shape := range ProbeShapes[Backend](batch, 10, backend) {
		require.Less(t, i, len(expected), "more stages than expected")
		assert.Equal(t, expected[i].name, name, "stage %d name", i)
		assert.True(t, expected[i].shape.Equal(shape),
			"stage %s shape %v, want %v", name, shape, expected[i].shape)
		i++
	}
	assert.Equal(t, len(expected), i, "stage count")
}

// TestProbeShapes_Lazy checks that breaking out of the loop stops the
// forward pass early and that the sequence is single use.
func TestProbeShapes_Lazy(t *testing.T) {
	backend := newTestBackend()

	seq := ProbeShapes[Backend](1, 10, backend)

	seen := 0
	for range seq {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)

	// Second iteration yields nothing.
	for range seq {
		seen++
	}
	assert.Equal(t, 3, seen, "sequence restarted")
}

// TestLeNet5_ZeroInputZeroLogits: with zero input, zero biases and
// tanh(0) = 0, the logits are exactly zero regardless of the random
// weights. This pins down both determinism and the bias initialization.
func TestLeNet5_ZeroInputZeroLogits(t *testing.T) {
	backend := newTestBackend()
	model := NewLeNet5(10, backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 1, 32, 32}, backend)
	logits := model.Forward(input)

	for i, v := range logits.Data() {
		assert.Zero(t, v, "logit %d", i)
	}
}

// TestLeNet5_RepeatedForwardDeterministic: a fixed network maps the
// same input to bit-identical logits on every forward pass.
func TestLeNet5_RepeatedForwardDeterministic(t *testing.T) {
	backend := newTestBackend()
	model := NewLeNet5(10, backend)
	input := tensor.Randn[float32](tensor.Shape{1, 1, 32, 32}, backend)

	first := model.Forward(input).Data()
	second := model.Forward(input).Data()

	require.Len(t, second, len(first))
	for i, v := range first {
		assert.Equal(t, v, second[i], "logit %d", i)
	}
}

// TestLeNet5_GradientReachesAllParameters: one backward pass from the
// loss delivers a non-zero gradient to every parameter, including the
// pooling remaps and every activation remap.
func TestLeNet5_GradientReachesAllParameters(t *testing.T) {
	backend := newTestBackend()
	model := NewLeNet5(10, backend)

	backend.Tape().StartRecording()
	defer backend.Tape().StopRecording()
	defer backend.Tape().Clear()

	input := tensor.Randn[float32](tensor.Shape{4, 1, 32, 32}, backend)
	targets := int32Tensor(t, []int32{0, 3, 7, 9}, backend)

	logits := model.Forward(input)
	loss := tensor.New[float32](backend.CrossEntropy(logits.Raw(), targets.Raw()), backend)

	grads := autodiff.Backward(loss, backend)

	for _, p := range model.Parameters() {
		grad, ok := grads[p.Tensor().Raw()]
		require.True(t, ok, "no gradient for %s", p.Name())
		require.True(t, grad.Shape().Equal(p.Tensor().Shape()),
			"gradient shape %v != parameter shape %v for %s", grad.Shape(), p.Tensor().Shape(), p.Name())

		nonZero := false
		for _, v := range grad.AsFloat32() {
			if v != 0 {
				nonZero = true
				break
			}
		}
		assert.True(t, nonZero, "gradient for %s is all zeros", p.Name())
	}
}

func TestLeNet5_Parameters(t *testing.T) {
	backend := newTestBackend()
	model := NewLeNet5(10, backend)

	params := model.Parameters()
	// C1, C3, S2, S4, F5, F6, F7 carry weight+bias; A1..A6 carry the
	// remap only; Flatten has none.
	require.Len(t, params, 20)

	total := 0
	for _, p := range params {
		total += p.Tensor().NumElements()
	}
	assert.Equal(t, 84507, total, "trainable scalar count")
}

func TestLeNet5_NumClasses(t *testing.T) {
	backend := newTestBackend()
	assert.Equal(t, 47, NewLeNet5(47, backend).NumClasses())
}

func TestFlatten(t *testing.T) {
	backend := newTestBackend()
	f := &Flatten[Backend]{}

	input := tensor.Randn[float32](tensor.Shape{2, 16, 5, 5}, backend)
	output := f.Forward(input)

	require.True(t, output.Shape().Equal(tensor.Shape{2, 400}),
		"output shape %v", output.Shape())
	assert.Empty(t, f.Parameters())

	assert.Panics(t, func() {
		f.Forward(tensor.Zeros[float32](tensor.Shape{7}, backend))
	}, "1D input")
}
