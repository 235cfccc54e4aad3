package tensor

import (
	"math"
	"testing"
)

func assertEqualFloat32(t *testing.T, expected, actual float32, msg string) {
	t.Helper()
	if math.Abs(float64(expected-actual)) > 1e-5 {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

func assertEqualShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Float64, 8},
		{Int32, 4},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
	}
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{4, 1, 32, 32}, 4096},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("zero dimension accepted")
	}
	if err := (Shape{-1, 3}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b, want Shape
		wantErr    bool
	}{
		{Shape{2, 3}, Shape{2, 3}, Shape{2, 3}, false},
		{Shape{2, 3}, Shape{1, 3}, Shape{2, 3}, false},
		{Shape{2, 3}, Shape{3}, Shape{2, 3}, false},
		{Shape{4, 1}, Shape{1, 5}, Shape{4, 5}, false},
		{Shape{}, Shape{2, 3}, Shape{2, 3}, false},
		{Shape{2, 3}, Shape{4, 3}, nil, true},
	}

	for _, tt := range tests {
		got, _, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("BroadcastShapes(%v, %v): expected error", tt.a, tt.b)
			}
			continue
		}
		if err != nil {
			t.Errorf("BroadcastShapes(%v, %v): %v", tt.a, tt.b, err)
			continue
		}
		assertEqualShape(t, tt.want, got, "broadcast result")
	}
}

func TestCreation(t *testing.T) {
	backend := NewMockBackend()

	t.Run("Zeros", func(t *testing.T) {
		x := Zeros[float32](Shape{2, 3}, backend)
		assertEqualShape(t, Shape{2, 3}, x.Shape(), "Zeros shape")
		for i, v := range x.Data() {
			if v != 0 {
				t.Errorf("element %d = %v, want 0", i, v)
			}
		}
	})

	t.Run("Ones", func(t *testing.T) {
		x := Ones[float32](Shape{4}, backend)
		for i, v := range x.Data() {
			if v != 1 {
				t.Errorf("element %d = %v, want 1", i, v)
			}
		}
	})

	t.Run("Full", func(t *testing.T) {
		x := Full[float64](Shape{2, 2}, 3.5, backend)
		for i, v := range x.Data() {
			if v != 3.5 {
				t.Errorf("element %d = %v, want 3.5", i, v)
			}
		}
	})

	t.Run("FromSlice", func(t *testing.T) {
		x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
		if err != nil {
			t.Fatalf("FromSlice: %v", err)
		}
		assertEqualFloat32(t, 6, x.At(1, 2), "At(1,2)")
	})

	t.Run("FromSliceLengthMismatch", func(t *testing.T) {
		if _, err := FromSlice([]float32{1, 2, 3}, Shape{2, 3}, backend); err == nil {
			t.Error("expected error for mismatched length")
		}
	})

	t.Run("Randn", func(t *testing.T) {
		x := Randn[float32](Shape{1000}, backend)
		sum := float32(0)
		for _, v := range x.Data() {
			sum += v
		}
		mean := sum / 1000
		if mean < -0.2 || mean > 0.2 {
			t.Errorf("sample mean %v too far from 0", mean)
		}
	})
}

func TestAtSet(t *testing.T) {
	backend := NewMockBackend()
	x := Zeros[float32](Shape{2, 3}, backend)

	x.Set(7, 1, 2)
	assertEqualFloat32(t, 7, x.At(1, 2), "At after Set")
	assertEqualFloat32(t, 0, x.At(0, 0), "untouched element")
}

func TestTensorOps(t *testing.T) {
	backend := NewMockBackend()

	t.Run("Add", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, backend)
		b, _ := FromSlice([]float32{10, 20, 30, 40}, Shape{2, 2}, backend)
		c := a.Add(b)
		want := []float32{11, 22, 33, 44}
		for i, v := range c.Data() {
			assertEqualFloat32(t, want[i], v, "Add")
		}
	})

	t.Run("AddBroadcast", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
		b, _ := FromSlice([]float32{10, 20, 30}, Shape{1, 3}, backend)
		c := a.Add(b)
		want := []float32{11, 22, 33, 14, 25, 36}
		for i, v := range c.Data() {
			assertEqualFloat32(t, want[i], v, "broadcast Add")
		}
	})

	t.Run("MatMul", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
		b, _ := FromSlice([]float32{7, 8, 9, 10, 11, 12}, Shape{3, 2}, backend)
		c := a.MatMul(b)
		assertEqualShape(t, Shape{2, 2}, c.Shape(), "MatMul shape")
		want := []float32{58, 64, 139, 154}
		for i, v := range c.Data() {
			assertEqualFloat32(t, want[i], v, "MatMul")
		}
	})

	t.Run("Reshape", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
		b := a.Reshape(3, 2)
		assertEqualShape(t, Shape{3, 2}, b.Shape(), "Reshape shape")
		assertEqualFloat32(t, 4, b.At(1, 1), "Reshape preserves order")
	})

	t.Run("T", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
		b := a.T()
		assertEqualShape(t, Shape{3, 2}, b.Shape(), "T shape")
		assertEqualFloat32(t, 2, b.At(1, 0), "T element")
		assertEqualFloat32(t, 6, b.At(2, 1), "T element")
	})

	t.Run("Tanh", func(t *testing.T) {
		a, _ := FromSlice([]float32{0, 1, -1}, Shape{3}, backend)
		b := a.Tanh()
		assertEqualFloat32(t, 0, b.At(0), "tanh(0)")
		assertEqualFloat32(t, float32(math.Tanh(1)), b.At(1), "tanh(1)")
		assertEqualFloat32(t, float32(math.Tanh(-1)), b.At(2), "tanh(-1)")
	})

	t.Run("MulScalar", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 2, 3}, Shape{3}, backend)
		b := a.MulScalar(2.5)
		want := []float32{2.5, 5, 7.5}
		for i, v := range b.Data() {
			assertEqualFloat32(t, want[i], v, "MulScalar")
		}
	})

	t.Run("Sum", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, backend)
		s := a.Sum()
		assertEqualFloat32(t, 10, s.Data()[0], "Sum")
	})

	t.Run("SumDim", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
		s := a.SumDim(0, false)
		assertEqualShape(t, Shape{3}, s.Shape(), "SumDim shape")
		want := []float32{5, 7, 9}
		for i, v := range s.Data() {
			assertEqualFloat32(t, want[i], v, "SumDim")
		}
	})

	t.Run("Argmax", func(t *testing.T) {
		a, _ := FromSlice([]float32{1, 5, 2, 9, 0, 3}, Shape{2, 3}, backend)
		idx := a.Argmax(1)
		assertEqualShape(t, Shape{2}, idx.Shape(), "Argmax shape")
		if idx.Data()[0] != 1 || idx.Data()[1] != 0 {
			t.Errorf("Argmax = %v, want [1 0]", idx.Data())
		}
	})
}

func TestRawTensorClone(t *testing.T) {
	raw, err := NewRaw(Shape{2, 2}, Float32, CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	raw.AsFloat32()[0] = 42

	// Clone is shallow: it shares the buffer and bumps the refcount,
	// which disables inplace fast paths on both views.
	clone := raw.Clone()
	if clone.AsFloat32()[0] != 42 {
		t.Error("clone does not see original data")
	}
	if raw.IsUnique() || clone.IsUnique() {
		t.Error("shared buffer reported as unique")
	}

	clone.Release()
	if !raw.IsUnique() {
		t.Error("original not unique after clone released")
	}
}

func TestForceNonUnique(t *testing.T) {
	raw, err := NewRaw(Shape{2}, Float32, CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	if !raw.IsUnique() {
		t.Fatal("fresh tensor should be unique")
	}

	restore := raw.ForceNonUnique()
	if raw.IsUnique() {
		t.Error("tensor still unique after ForceNonUnique")
	}
	restore()
	if !raw.IsUnique() {
		t.Error("tensor not unique after restore")
	}
}
