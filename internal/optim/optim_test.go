package optim_test

import (
	"testing"

	"github.com/lenet-ml/lenet5/internal/autodiff"
	"github.com/lenet-ml/lenet5/internal/backend/cpu"
	"github.com/lenet-ml/lenet5/internal/nn"
	"github.com/lenet-ml/lenet5/internal/optim"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func gradsFor[B tensor.Backend](t *testing.T, param *nn.Parameter[B], values []float32, backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	grad, err := tensor.NewRaw(param.Tensor().Shape(), tensor.Float32, backend.Device())
	if err != nil {
		t.Fatal(err)
	}
	copy(grad.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): grad}
}

func TestSGD_Step(t *testing.T) {
	backend := newBackend()

	w, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	param := nn.NewParameter("w", w)

	sgd := optim.NewSGD([]*nn.Parameter[Backend]{param}, optim.SGDConfig{LR: 0.1}, backend)
	sgd.Step(gradsFor(t, param, []float32{1, -1, 0.5}, backend))

	// w -= lr * grad
	expected := []float32{0.9, 2.1, 2.95}
	for i, want := range expected {
		got := param.Tensor().Data()[i]
		if diff := got - want; diff > 1e-5 || diff < -1e-5 {
			t.Errorf("param[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestSGD_Momentum(t *testing.T) {
	backend := newBackend()

	w, _ := tensor.FromSlice([]float32{0}, tensor.Shape{1}, backend)
	param := nn.NewParameter("w", w)

	sgd := optim.NewSGD([]*nn.Parameter[Backend]{param}, optim.SGDConfig{LR: 1, Momentum: 0.5}, backend)

	// Step 1: v = 1, w = -1. Step 2: v = 0.5 + 1 = 1.5, w = -2.5.
	sgd.Step(gradsFor(t, param, []float32{1}, backend))
	sgd.Step(gradsFor(t, param, []float32{1}, backend))

	got := param.Tensor().Data()[0]
	if diff := got + 2.5; diff > 1e-5 || diff < -1e-5 {
		t.Errorf("param = %v, want -2.5", got)
	}
}

func TestSGD_SkipsParamsWithoutGradient(t *testing.T) {
	backend := newBackend()

	w, _ := tensor.FromSlice([]float32{7}, tensor.Shape{1}, backend)
	param := nn.NewParameter("w", w)

	sgd := optim.NewSGD([]*nn.Parameter[Backend]{param}, optim.SGDConfig{LR: 0.1}, backend)
	sgd.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	if got := param.Tensor().Data()[0]; got != 7 {
		t.Errorf("param = %v, want unchanged 7", got)
	}
}

func TestAdam_StepDirection(t *testing.T) {
	backend := newBackend()

	w, _ := tensor.FromSlice([]float32{1, 1}, tensor.Shape{2}, backend)
	param := nn.NewParameter("w", w)

	adam := optim.NewAdam([]*nn.Parameter[Backend]{param}, optim.AdamConfig{LR: 0.1}, backend)
	adam.Step(gradsFor(t, param, []float32{1, -1}, backend))

	// First Adam step moves each weight by roughly lr against the
	// gradient sign (bias correction makes m_hat/sqrt(v_hat) ~ 1).
	data := param.Tensor().Data()
	if data[0] >= 1 {
		t.Errorf("param[0] = %v, expected decrease from 1", data[0])
	}
	if data[1] <= 1 {
		t.Errorf("param[1] = %v, expected increase from 1", data[1])
	}
}

func TestAdam_Defaults(t *testing.T) {
	backend := newBackend()
	adam := optim.NewAdam(nil, optim.AdamConfig{}, backend)
	if adam.GetLR() != 0.001 {
		t.Errorf("default LR = %v, want 0.001", adam.GetLR())
	}
}

// TestOptimizers_ReduceLoss trains a single linear layer on a fixed
// two-class batch and checks the loss goes down.
func TestOptimizers_ReduceLoss(t *testing.T) {
	for _, tc := range []struct {
		name string
		mk   func(params []*nn.Parameter[Backend], backend Backend) optim.Optimizer
	}{
		{"SGD", func(params []*nn.Parameter[Backend], backend Backend) optim.Optimizer {
			return optim.NewSGD(params, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
		}},
		{"Adam", func(params []*nn.Parameter[Backend], backend Backend) optim.Optimizer {
			return optim.NewAdam(params, optim.AdamConfig{LR: 0.05}, backend)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			backend := newBackend()
			layer := nn.NewLinear(4, 2, backend)
			loss := nn.NewCrossEntropyLoss(backend)
			optimizer := tc.mk(layer.Parameters(), backend)

			input, _ := tensor.FromSlice([]float32{
				1, 0, 0, 0,
				0, 0, 0, 1,
				1, 1, 0, 0,
				0, 0, 1, 1,
			}, tensor.Shape{4, 4}, backend)

			targetsRaw, err := tensor.NewRaw(tensor.Shape{4}, tensor.Int32, backend.Device())
			if err != nil {
				t.Fatal(err)
			}
			copy(targetsRaw.AsInt32(), []int32{0, 1, 0, 1})
			targets := tensor.New[int32](targetsRaw, backend)

			backend.Tape().StartRecording()

			var first, last float32
			for step := 0; step < 20; step++ {
				optimizer.ZeroGrad()

				logits := layer.Forward(input)
				l := loss.Forward(logits, targets)
				lossValue := l.Data()[0]
				if step == 0 {
					first = lossValue
				}
				last = lossValue

				grads := autodiff.Backward(l, backend)
				optimizer.Step(grads)
				backend.Tape().Clear()
			}

			if last >= first {
				t.Errorf("%s: loss did not decrease: first %v, last %v", tc.name, first, last)
			}
		})
	}
}
