package autodiff_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/lenet-ml/lenet5/internal/autodiff"
	"github.com/lenet-ml/lenet5/internal/backend/cpu"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() testBackend {
	return autodiff.New(cpu.New())
}

// numericalGradient perturbs data[idx] and re-evaluates f to estimate
// the partial derivative by central differences.
func numericalGradient(f func() float32, data []float32, idx int) float32 {
	const epsilon = 1e-3

	orig := data[idx]
	data[idx] = orig + epsilon
	plus := f()
	data[idx] = orig - epsilon
	minus := f()
	data[idx] = orig

	return (plus - minus) / (2 * epsilon)
}

func assertClose(t *testing.T, want, got float32, tol float64, msg string) {
	t.Helper()
	if math.Abs(float64(want-got)) > tol {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

func TestGradient_Square(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)
	if err != nil {
		t.Fatal(err)
	}

	y := x.Mul(x)
	grads := autodiff.Backward(y, backend)

	// d(x²)/dx = 2x = 6
	got := grads[x.Raw()].AsFloat32()[0]
	assertClose(t, 6, got, 1e-4, "d(x²)/dx")
}

func TestGradient_Tanh(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	points := []float32{-2, -0.5, 0, 0.5, 2}
	x, err := tensor.FromSlice(points, tensor.Shape{5}, backend)
	if err != nil {
		t.Fatal(err)
	}

	y := x.Tanh().Sum()
	grads := autodiff.Backward(y, backend)

	// d(tanh x)/dx = 1 - tanh²(x)
	gradData := grads[x.Raw()].AsFloat32()
	for i, p := range points {
		th := math.Tanh(float64(p))
		assertClose(t, float32(1-th*th), gradData[i], 1e-4, "tanh gradient")
	}
}

func TestGradient_MatMul(t *testing.T) {
	backend := newBackend()
	plain := cpu.New()

	aData := []float32{1, 2, 3, 4, 5, 6}
	bData := []float32{0.5, -1, 2, 0.1, -0.3, 1.5}

	loss := func() float32 {
		a, _ := tensor.FromSlice(aData, tensor.Shape{2, 3}, plain)
		b, _ := tensor.FromSlice(bData, tensor.Shape{3, 2}, plain)
		return a.MatMul(b).Sum().Data()[0]
	}

	backend.Tape().StartRecording()
	a, _ := tensor.FromSlice(aData, tensor.Shape{2, 3}, backend)
	b, _ := tensor.FromSlice(bData, tensor.Shape{3, 2}, backend)
	out := a.MatMul(b).Sum()
	grads := autodiff.Backward(out, backend)

	gradA := grads[a.Raw()].AsFloat32()
	for i := range aData {
		want := numericalGradient(loss, aData, i)
		assertClose(t, want, gradA[i], 1e-2, "matmul grad A")
	}

	gradB := grads[b.Raw()].AsFloat32()
	for i := range bData {
		want := numericalGradient(loss, bData, i)
		assertClose(t, want, gradB[i], 1e-2, "matmul grad B")
	}
}

func TestGradient_BroadcastAdd(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	bias, _ := tensor.FromSlice([]float32{10, 20, 30}, tensor.Shape{1, 3}, backend)

	out := a.Add(bias).Sum()
	grads := autodiff.Backward(out, backend)

	// The bias gradient is summed over the broadcast batch dimension.
	gradBias := grads[bias.Raw()]
	if !gradBias.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("bias grad shape = %v, want [1 3]", gradBias.Shape())
	}
	for i, v := range gradBias.AsFloat32() {
		assertClose(t, 2, v, 1e-4, fmt.Sprintf("bias grad element %d", i))
	}
}

func TestGradient_Conv2D(t *testing.T) {
	backend := newBackend()
	plain := cpu.New()

	inputData := []float32{1, -2, 3, 0.5, 2, -1, 0, 1, -0.5}
	kernelData := []float32{0.5, -1, 1.5, 2}

	loss := func() float32 {
		input, _ := tensor.FromSlice(inputData, tensor.Shape{1, 1, 3, 3}, plain)
		kernel, _ := tensor.FromSlice(kernelData, tensor.Shape{1, 1, 2, 2}, plain)
		out := tensor.New[float32](plain.Conv2D(input.Raw(), kernel.Raw(), 1, 0), plain)
		return out.Sum().Data()[0]
	}

	backend.Tape().StartRecording()
	input, _ := tensor.FromSlice(inputData, tensor.Shape{1, 1, 3, 3}, backend)
	kernel, _ := tensor.FromSlice(kernelData, tensor.Shape{1, 1, 2, 2}, backend)
	out := tensor.New[float32](backend.Conv2D(input.Raw(), kernel.Raw(), 1, 0), backend)
	grads := autodiff.Backward(out.Sum(), backend)

	gradInput := grads[input.Raw()].AsFloat32()
	for i := range inputData {
		want := numericalGradient(loss, inputData, i)
		assertClose(t, want, gradInput[i], 1e-2, "conv input grad")
	}

	gradKernel := grads[kernel.Raw()].AsFloat32()
	for i := range kernelData {
		want := numericalGradient(loss, kernelData, i)
		assertClose(t, want, gradKernel[i], 1e-2, "conv kernel grad")
	}
}

func TestGradient_SumPool2D(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	input, _ := tensor.FromSlice(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		tensor.Shape{1, 1, 4, 4}, backend)

	pooled := tensor.New[float32](backend.SumPool2D(input.Raw(), 2, 2), backend)
	grads := autodiff.Backward(pooled.Sum(), backend)

	// Every input element appears in exactly one window sum.
	gradData := grads[input.Raw()].AsFloat32()
	for i, v := range gradData {
		if v != 1 {
			t.Errorf("pool grad[%d] = %v, want 1", i, v)
		}
	}
}

func TestGradient_CrossEntropy(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	logitsData := []float32{2, 1, 0.1, 0.5, 2.5, -1}
	logits, _ := tensor.FromSlice(logitsData, tensor.Shape{2, 3}, backend)

	targetsRaw, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, backend.Device())
	if err != nil {
		t.Fatal(err)
	}
	targetsRaw.AsInt32()[0] = 0
	targetsRaw.AsInt32()[1] = 1

	lossRaw := backend.CrossEntropy(logits.Raw(), targetsRaw)
	loss := tensor.New[float32](lossRaw, backend)
	grads := autodiff.Backward(loss, backend)

	// d(loss)/d(logit) = (softmax - onehot) / batchSize
	softmax := cpu.New().Softmax(logits.Raw(), 1).AsFloat32()
	gradData := grads[logits.Raw()].AsFloat32()
	targets := []int{0, 1}
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			want := softmax[r*3+c]
			if c == targets[r] {
				want -= 1
			}
			want /= 2
			assertClose(t, want, gradData[r*3+c], 1e-4, "cross-entropy grad")
		}
	}
}

func TestGradient_ScaledTanhChain(t *testing.T) {
	backend := newBackend()
	plain := cpu.New()

	xData := []float32{0.3, -0.7, 1.2, -0.1}
	sData := []float32{1, 0.2, -0.3, 1} // remap matrix, 2x2

	loss := func() float32 {
		x, _ := tensor.FromSlice(xData, tensor.Shape{2, 2}, plain)
		s, _ := tensor.FromSlice(sData, tensor.Shape{2, 2}, plain)
		return x.MatMul(s.T()).Tanh().MulScalar(1.7159).Sum().Data()[0]
	}

	backend.Tape().StartRecording()
	x, _ := tensor.FromSlice(xData, tensor.Shape{2, 2}, backend)
	s, _ := tensor.FromSlice(sData, tensor.Shape{2, 2}, backend)
	out := x.MatMul(s.T()).Tanh().MulScalar(1.7159).Sum()
	grads := autodiff.Backward(out, backend)

	gradX := grads[x.Raw()].AsFloat32()
	for i := range xData {
		want := numericalGradient(loss, xData, i)
		assertClose(t, want, gradX[i], 1e-2, "scaled tanh grad x")
	}

	gradS := grads[s.Raw()].AsFloat32()
	for i := range sData {
		want := numericalGradient(loss, sData, i)
		assertClose(t, want, gradS[i], 1e-2, "scaled tanh grad s")
	}
}
