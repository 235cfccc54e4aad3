package cpu

import (
	"testing"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

func TestSumPool2D_KnownValues(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{1, 1, 4, 4}, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})

	output := backend.SumPool2D(input, 2, 2)
	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("output shape = %v, want [1 1 2 2]", output.Shape())
	}
	// Window sums, not averages.
	expected := []float32{14, 22, 46, 54}
	if !float32SliceEqual(output.AsFloat32(), expected) {
		t.Errorf("SumPool2D = %v, want %v", output.AsFloat32(), expected)
	}
}

func TestSumPool2D_SingleWindow(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	output := backend.SumPool2D(input, 2, 2)

	if !output.Shape().Equal(tensor.Shape{1, 1, 1, 1}) {
		t.Fatalf("output shape = %v, want [1 1 1 1]", output.Shape())
	}
	if !float32SliceEqual(output.AsFloat32(), []float32{10}) {
		t.Errorf("SumPool2D = %v, want [10]", output.AsFloat32())
	}
}

func TestSumPool2D_MultiChannel(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 1, 1, 1, // channel 0
		2, 2, 2, 2, // channel 1
	})
	output := backend.SumPool2D(input, 2, 2)

	if !output.Shape().Equal(tensor.Shape{1, 2, 1, 1}) {
		t.Fatalf("output shape = %v, want [1 2 1 1]", output.Shape())
	}
	if !float32SliceEqual(output.AsFloat32(), []float32{4, 8}) {
		t.Errorf("SumPool2D = %v, want [4 8]", output.AsFloat32())
	}
}

func TestSumPool2D_OddDimensionsPanic(t *testing.T) {
	backend := newTestBackend()

	oddHeight := newFloat32(t, tensor.Shape{1, 1, 3, 4}, make([]float32, 12))
	assertPanics(t, "odd height", func() { backend.SumPool2D(oddHeight, 2, 2) })

	oddWidth := newFloat32(t, tensor.Shape{1, 1, 4, 5}, make([]float32, 20))
	assertPanics(t, "odd width", func() { backend.SumPool2D(oddWidth, 2, 2) })
}

func TestSumPool2D_Backward(t *testing.T) {
	backend := newTestBackend()

	input := newFloat32(t, tensor.Shape{1, 1, 4, 4}, make([]float32, 16))
	grad := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})

	// Every input position contributes to exactly one window with
	// derivative 1, so the output gradient is broadcast to its window.
	inputGrad := backend.SumPool2DBackward(input, grad, 2, 2)
	if !inputGrad.Shape().Equal(input.Shape()) {
		t.Fatalf("input grad shape = %v, want %v", inputGrad.Shape(), input.Shape())
	}
	expected := []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	if !float32SliceEqual(inputGrad.AsFloat32(), expected) {
		t.Errorf("SumPool2DBackward = %v, want %v", inputGrad.AsFloat32(), expected)
	}
}
