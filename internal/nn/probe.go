package nn

import (
	"iter"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// ProbeShapes yields (stage name, output shape) for every stage of a
// fresh LeNet5 network driven by a random (batchSize, 1, 32, 32) input.
//
// The sequence is lazy: nothing is built until iteration starts, each
// stage runs only when the consumer asks for the next pair, and breaking
// out of the loop stops the forward pass early. The sequence is single
// use; iterating a second time yields nothing.
func ProbeShapes[B tensor.Backend](batchSize, numClasses int, backend B) iter.Seq2[string, tensor.Shape] {
	done := false
	return func(yield func(string, tensor.Shape) bool) {
		if done {
			return
		}
		done = true

		model := NewLeNet5(numClasses, backend)
		x := Randn[B](tensor.Shape{batchSize, 1, 32, 32}, backend)
		for _, st := range model.stages {
			x = st.module.Forward(x)
			if !yield(st.name, x.Shape()) {
				return
			}
		}
	}
}
