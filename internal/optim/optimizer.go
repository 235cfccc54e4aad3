// Package optim implements the optimization algorithms used to train
// the network: SGD with optional momentum and Adam.
//
// Both optimizers consume the gradient map produced by
// autodiff.Backward and update parameter tensors in place:
//
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
package optim

import (
	"github.com/lenet-ml/lenet5/internal/nn"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Optimizer updates model parameters from a gradient map.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient
	// in the map. Parameters absent from the map are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient looks up the gradient recorded for a parameter's tensor.
// Returns nil when the parameter did not take part in the forward pass.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
