package ops

import (
	"fmt"
	"math"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// CrossEntropyOp records the fused softmax + cross-entropy loss.
//
// Forward:
//
//	loss = mean(-log_softmax(logits)[targets])
//
// using the log-sum-exp trick for stability.
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - one_hot(targets)) / batch_size
//
// Fusing the two keeps the backward pass to a single subtraction instead
// of pushing gradients through an explicit softmax Jacobian.
//
// Shapes: logits [batch_size, num_classes], targets [batch_size] (int32
// class indices), output scalar.
type CrossEntropyOp struct {
	logits  *tensor.RawTensor
	targets *tensor.RawTensor
	output  *tensor.RawTensor
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, targets: targets, output: output}
}

// Inputs returns only the logits; targets are class indices and carry no
// gradient.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

func (op *CrossEntropyOp) Output() *tensor.RawTensor { return op.output }

func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	logitsShape := op.logits.Shape()
	if len(logitsShape) != 2 {
		panic("cross entropy: backward only supports 2D logits [batch_size, num_classes]")
	}

	batchSize := logitsShape[0]
	numClasses := logitsShape[1]

	logitsGrad, err := tensor.NewRaw(logitsShape, op.logits.DType(), op.logits.Device())
	if err != nil {
		panic(fmt.Sprintf("cross entropy: %v", err))
	}

	switch op.logits.DType() {
	case tensor.Float32:
		crossEntropyGrad(
			op.logits.AsFloat32(), op.targets.AsInt32(),
			outputGrad.AsFloat32()[0], logitsGrad.AsFloat32(),
			batchSize, numClasses,
		)
	case tensor.Float64:
		crossEntropyGrad(
			op.logits.AsFloat64(), op.targets.AsInt32(),
			outputGrad.AsFloat64()[0], logitsGrad.AsFloat64(),
			batchSize, numClasses,
		)
	default:
		panic("cross entropy: backward only supports float32 and float64")
	}

	return []*tensor.RawTensor{logitsGrad}
}

func crossEntropyGrad[T ~float32 | ~float64](logits []T, targets []int32, gradScale T, grad []T, batchSize, numClasses int) {
	for b := 0; b < batchSize; b++ {
		row := logits[b*numClasses : (b+1)*numClasses]
		probs := softmaxRow(row)

		target := int(targets[b])
		for i := 0; i < numClasses; i++ {
			g := probs[i]
			if i == target {
				g -= 1
			}
			grad[b*numClasses+i] = gradScale * g / T(batchSize)
		}
	}
}

// softmaxRow computes softmax for a single row, shifted by the max.
func softmaxRow[T ~float32 | ~float64](row []T) []T {
	probs := make([]T, len(row))

	maxVal := row[0]
	for _, v := range row[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum T
	for i, v := range row {
		e := T(math.Exp(float64(v - maxVal)))
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// CrossEntropyForward computes the loss value. This is the forward half
// of CrossEntropyOp and is also usable outside a recorded graph.
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	logitsShape := logits.Shape()
	if len(logitsShape) != 2 {
		panic("cross entropy: logits must be 2D [batch_size, num_classes]")
	}
	targetsShape := targets.Shape()
	if len(targetsShape) != 1 {
		panic("cross entropy: targets must be 1D [batch_size]")
	}

	batchSize := logitsShape[0]
	numClasses := logitsShape[1]
	if targetsShape[0] != batchSize {
		panic(fmt.Sprintf("cross entropy: batch size mismatch: logits %d vs targets %d", batchSize, targetsShape[0]))
	}

	output, err := tensor.NewRaw(tensor.Shape{1}, logits.DType(), device)
	if err != nil {
		panic(fmt.Sprintf("cross entropy: %v", err))
	}

	switch logits.DType() {
	case tensor.Float32:
		output.AsFloat32()[0] = crossEntropyLoss(logits.AsFloat32(), targets.AsInt32(), batchSize, numClasses)
	case tensor.Float64:
		output.AsFloat64()[0] = crossEntropyLoss(logits.AsFloat64(), targets.AsInt32(), batchSize, numClasses)
	default:
		panic("cross entropy: only supports float32 and float64")
	}

	return output
}

func crossEntropyLoss[T ~float32 | ~float64](logits []T, targets []int32, batchSize, numClasses int) T {
	var total T
	for b := 0; b < batchSize; b++ {
		row := logits[b*numClasses : (b+1)*numClasses]

		target := int(targets[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("cross entropy: target %d out of range [0, %d)", target, numClasses))
		}

		// log_softmax(row)[target] = row[target] - (max + log Σ exp(row - max))
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sumExp T
		for _, v := range row {
			sumExp += T(math.Exp(float64(v - maxVal)))
		}
		logSumExp := maxVal + T(math.Log(float64(sumExp)))

		total += -(row[target] - logSumExp)
	}
	return total / T(batchSize)
}
