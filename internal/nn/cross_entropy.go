package nn

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// CrossEntropyLoss computes softmax cross-entropy for classification.
//
// Expects raw logits [batch_size, num_classes] and int32 class indices
// [batch_size]; returns the scalar mean loss over the batch. Autodiff
// backends expose a fused CrossEntropy operation which is used when
// available so the loss lands on the tape with its one-subtraction
// backward pass.
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a cross-entropy loss criterion.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward computes the mean loss over the batch.
func (c *CrossEntropyLoss[B]) Forward(
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross entropy: logits must be 2D [batch_size, num_classes], got %v", shape))
	}
	targetsShape := targets.Shape()
	if len(targetsShape) != 1 || targetsShape[0] != shape[0] {
		panic(fmt.Sprintf("cross entropy: targets shape %v does not match logits batch %d",
			targetsShape, shape[0]))
	}

	// Gradient-capable backends fuse softmax and cross-entropy.
	type crossEntropyBackend interface {
		CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
	}
	if adBackend, ok := any(c.backend).(crossEntropyBackend); ok {
		return tensor.New[float32, B](adBackend.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
	}

	// Plain backends: compute through log-softmax directly.
	logProbs := logits.Softmax(1).Log()
	logProbsData := logProbs.Raw().AsFloat32()
	targetsData := targets.Raw().AsInt32()

	batchSize := shape[0]
	numClasses := shape[1]

	var total float32
	for b := 0; b < batchSize; b++ {
		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("cross entropy: target %d out of range [0, %d)", target, numClasses))
		}
		total += -logProbsData[b*numClasses+target]
	}

	lossRaw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, c.backend.Device())
	if err != nil {
		panic(err)
	}
	lossRaw.AsFloat32()[0] = total / float32(batchSize)
	return tensor.New[float32, B](lossRaw, c.backend)
}

// Accuracy returns the fraction of rows whose argmax matches the target
// class index.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("accuracy: logits must be 2D [batch_size, num_classes], got %v", shape))
	}

	predictions := logits.Argmax(1).Raw().AsInt32()
	targetsData := targets.Raw().AsInt32()

	if len(predictions) != len(targetsData) {
		panic(fmt.Sprintf("accuracy: %d predictions vs %d targets", len(predictions), len(targetsData)))
	}

	correct := 0
	for i, p := range predictions {
		if p == targetsData[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(targetsData))
}
