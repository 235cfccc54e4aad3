package cpu

import (
	"testing"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

func TestConv2D_KnownValues(t *testing.T) {
	backend := newTestBackend()

	// 3x3 input, 2x2 kernel, stride 1, no padding.
	input := newFloat32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})

	t.Run("AllOnesKernel", func(t *testing.T) {
		kernel := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 1})
		output := backend.Conv2D(input, kernel, 1, 0)

		if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
			t.Fatalf("output shape = %v, want [1 1 2 2]", output.Shape())
		}
		// Each output is the sum of its 2x2 window.
		expected := []float32{12, 16, 24, 28}
		if !float32SliceEqual(output.AsFloat32(), expected) {
			t.Errorf("Conv2D = %v, want %v", output.AsFloat32(), expected)
		}
	})

	t.Run("WeightedKernel", func(t *testing.T) {
		kernel := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 0, 0, 2})
		output := backend.Conv2D(input, kernel, 1, 0)

		expected := []float32{11, 14, 20, 23}
		if !float32SliceEqual(output.AsFloat32(), expected) {
			t.Errorf("Conv2D = %v, want %v", output.AsFloat32(), expected)
		}
	})
}

func TestConv2D_Padding(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := newFloat32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})

	output := backend.Conv2D(input, kernel, 1, 1)
	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("output shape = %v, want [1 1 2 2]", output.Shape())
	}
	// With padding 1 every 3x3 window covers the full 2x2 input.
	expected := []float32{10, 10, 10, 10}
	if !float32SliceEqual(output.AsFloat32(), expected) {
		t.Errorf("padded Conv2D = %v, want %v", output.AsFloat32(), expected)
	}
}

func TestConv2D_MultiChannel(t *testing.T) {
	backend := newTestBackend()

	// Two input channels, two filters. Filter 0 reads channel 0 only,
	// filter 1 reads channel 1 only.
	input := newFloat32(t, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 2, 3, 4, // channel 0
		10, 20, 30, 40, // channel 1
	})
	kernel := newFloat32(t, tensor.Shape{2, 2, 2, 2}, []float32{
		1, 1, 1, 1, 0, 0, 0, 0, // filter 0
		0, 0, 0, 0, 1, 1, 1, 1, // filter 1
	})

	output := backend.Conv2D(input, kernel, 1, 0)
	if !output.Shape().Equal(tensor.Shape{1, 2, 1, 1}) {
		t.Fatalf("output shape = %v, want [1 2 1 1]", output.Shape())
	}
	expected := []float32{10, 100}
	if !float32SliceEqual(output.AsFloat32(), expected) {
		t.Errorf("multi-channel Conv2D = %v, want %v", output.AsFloat32(), expected)
	}
}

func TestConv2D_Batch(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{2, 1, 2, 2}, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
	})
	kernel := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 1})

	output := backend.Conv2D(input, kernel, 1, 0)
	if !output.Shape().Equal(tensor.Shape{2, 1, 1, 1}) {
		t.Fatalf("output shape = %v, want [2 1 1 1]", output.Shape())
	}
	expected := []float32{10, 26}
	if !float32SliceEqual(output.AsFloat32(), expected) {
		t.Errorf("batched Conv2D = %v, want %v", output.AsFloat32(), expected)
	}
}

func TestConv2D_ShapeValidation(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{1, 1, 3, 3}, make([]float32, 9))
	badKernel := newFloat32(t, tensor.Shape{1, 2, 2, 2}, make([]float32, 8))
	assertPanics(t, "channel mismatch", func() { backend.Conv2D(input, badKernel, 1, 0) })

	input3d := newFloat32(t, tensor.Shape{1, 3, 3}, make([]float32, 9))
	kernel := newFloat32(t, tensor.Shape{1, 1, 2, 2}, make([]float32, 4))
	assertPanics(t, "3D input", func() { backend.Conv2D(input3d, kernel, 1, 0) })
}

func TestConv2D_InputBackward(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := newFloat32(t, tensor.Shape{1, 1, 1, 1}, []float32{3})
	grad := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 1})

	// With a 1x1 kernel of weight w, d(out)/d(in) is w everywhere.
	inputGrad := backend.Conv2DInputBackward(input, kernel, grad, 1, 0)
	if !inputGrad.Shape().Equal(input.Shape()) {
		t.Fatalf("input grad shape = %v, want %v", inputGrad.Shape(), input.Shape())
	}
	expected := []float32{3, 3, 3, 3}
	if !float32SliceEqual(inputGrad.AsFloat32(), expected) {
		t.Errorf("input grad = %v, want %v", inputGrad.AsFloat32(), expected)
	}
}

func TestConv2D_KernelBackward(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := newFloat32(t, tensor.Shape{1, 1, 1, 1}, []float32{3})
	grad := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 1})

	// d(loss)/d(w) = sum over positions of input * grad = 1+2+3+4.
	kernelGrad := backend.Conv2DKernelBackward(input, kernel, grad, 1, 0)
	if !kernelGrad.Shape().Equal(kernel.Shape()) {
		t.Fatalf("kernel grad shape = %v, want %v", kernelGrad.Shape(), kernel.Shape())
	}
	if !float32SliceEqual(kernelGrad.AsFloat32(), []float32{10}) {
		t.Errorf("kernel grad = %v, want [10]", kernelGrad.AsFloat32())
	}
}
