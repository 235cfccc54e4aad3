// Command lenet5 trains and evaluates the LeNet-5 digit recognizer on
// MNIST.
//
// Usage:
//
//	lenet5 -data ./data -epochs 10 -batch 32 -optimizer sgd
//	lenet5 -synthetic            # run without the IDX files
//	lenet5 -shapes               # print the per-stage shape table and exit
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/lenet-ml/lenet5/autodiff"
	"github.com/lenet-ml/lenet5/backend/cpu"
	"github.com/lenet-ml/lenet5/internal/mnist"
	"github.com/lenet-ml/lenet5/nn"
	"github.com/lenet-ml/lenet5/optim"
	"github.com/lenet-ml/lenet5/tensor"
)

func main() {
	dataDir := flag.String("data", "./data", "directory containing the MNIST IDX files")
	maxSamples := flag.Int("samples", 0, "max samples to load (0 = all)")
	epochs := flag.Int("epochs", 10, "number of training epochs")
	batchSize := flag.Int("batch", 32, "mini-batch size")
	lr := flag.Float64("lr", 0, "learning rate (0 = optimizer default)")
	momentum := flag.Float64("momentum", 0.9, "momentum for SGD")
	optimizerName := flag.String("optimizer", "sgd", "optimizer: sgd or adam")
	numClasses := flag.Int("classes", 10, "number of output classes")
	seed := flag.Int64("seed", 1, "shuffle seed")
	useSynthetic := flag.Bool("synthetic", false, "use synthetic data instead of the IDX files")
	showShapes := flag.Bool("shapes", false, "print the per-stage shape table and exit")
	flag.Parse()

	backend := autodiff.New(cpu.New())

	if *showShapes {
		printShapes(*batchSize, *numClasses, backend)
		return
	}

	model := nn.NewLeNet5(*numClasses, backend)
	fmt.Printf("LeNet-5: %d classes, %d parameters, backend %s\n",
		*numClasses, countParameters(model), backend.Name())

	trainData, valData := loadData(*dataDir, *useSynthetic, *maxSamples, *numClasses)
	fmt.Printf("Data: %d train / %d validation samples\n",
		trainData.NumSamples(), valData.NumSamples())

	optimizer := newOptimizer(*optimizerName, model, float32(*lr), float32(*momentum), backend)
	fmt.Printf("Optimizer: %s (lr=%g)\n", *optimizerName, optimizer.GetLR())

	rng := rand.New(rand.NewSource(*seed))
	valBatches, err := mnist.Batches(valData, 256, nil, backend)
	if err != nil {
		log.Fatalf("failed to build validation batches: %v", err)
	}

	backend.Tape().StartRecording()

	for epoch := 0; epoch < *epochs; epoch++ {
		trainBatches, err := mnist.Batches(trainData, *batchSize, rng, backend)
		if err != nil {
			log.Fatalf("failed to build training batches: %v", err)
		}

		trainLoss, trainAcc := trainEpoch(model, trainBatches, optimizer, backend)
		valLoss, valAcc := evaluate(model, valBatches, backend)

		fmt.Printf("epoch %2d/%d: loss=%.4f acc=%.2f%% | val loss=%.4f val acc=%.2f%%\n",
			epoch+1, *epochs, trainLoss, trainAcc*100, valLoss, valAcc*100)
	}

	valLoss, valAcc := evaluate(model, valBatches, backend)
	fmt.Printf("final: val loss=%.4f val acc=%.2f%%\n", valLoss, valAcc*100)
}

// loadData returns train and validation datasets, falling back to
// usage help when the IDX files are missing.
func loadData(dataDir string, synthetic bool, maxSamples, numClasses int) (train, val *mnist.Dataset) {
	if synthetic {
		n := maxSamples
		if n == 0 {
			n = 1000
		}
		return mnist.Synthetic(n, numClasses).Split(0.2)
	}

	data, err := mnist.Load(dataDir, true, maxSamples)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "MNIST IDX files not found in %s\n", dataDir)
			fmt.Fprintln(os.Stderr, "Download train-images-idx3-ubyte and train-labels-idx1-ubyte")
			fmt.Fprintln(os.Stderr, "from http://yann.lecun.com/exdb/mnist/ or run with -synthetic.")
			os.Exit(1)
		}
		log.Fatalf("failed to load MNIST: %v", err)
	}
	return data.Split(0.2)
}

func newOptimizer[B tensor.Backend](name string, model *nn.LeNet5[B], lr, momentum float32, backend B) optim.Optimizer {
	switch name {
	case "sgd":
		return optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: lr, Momentum: momentum}, backend)
	case "adam":
		return optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: lr}, backend)
	default:
		log.Fatalf("unknown optimizer %q (want sgd or adam)", name)
		return nil
	}
}

// trainEpoch runs one pass over the training batches, updating
// parameters after every batch.
func trainEpoch[B tensor.Backend](
	model *nn.LeNet5[*autodiff.AutodiffBackend[B]],
	batches []*mnist.Batch[*autodiff.AutodiffBackend[B]],
	optimizer optim.Optimizer,
	backend *autodiff.AutodiffBackend[B],
) (avgLoss float32, accuracy float64) {
	totalLoss := float32(0.0)
	totalCorrect := 0
	totalSamples := 0

	for _, batch := range batches {
		optimizer.ZeroGrad()

		logits := model.Forward(batch.Images)
		lossRaw := backend.CrossEntropy(logits.Raw(), batch.Labels.Raw())
		loss := tensor.New[float32](lossRaw, backend)

		grads := autodiff.Backward(loss, backend)
		optimizer.Step(grads)

		totalLoss += lossRaw.AsFloat32()[0]
		totalCorrect += int(nn.Accuracy(logits, batch.Labels) * float64(batch.Size))
		totalSamples += batch.Size

		backend.Tape().Clear()
	}

	return totalLoss / float32(len(batches)), float64(totalCorrect) / float64(totalSamples)
}

// evaluate computes loss and accuracy with gradient recording off.
func evaluate[B tensor.Backend](
	model *nn.LeNet5[*autodiff.AutodiffBackend[B]],
	batches []*mnist.Batch[*autodiff.AutodiffBackend[B]],
	backend *autodiff.AutodiffBackend[B],
) (avgLoss float32, accuracy float64) {
	wasRecording := backend.Tape().IsRecording()
	backend.Tape().StopRecording()
	defer func() {
		if wasRecording {
			backend.Tape().StartRecording()
		}
	}()

	totalLoss := float32(0.0)
	totalCorrect := 0
	totalSamples := 0

	for _, batch := range batches {
		logits := model.Forward(batch.Images)
		lossRaw := backend.CrossEntropy(logits.Raw(), batch.Labels.Raw())

		totalLoss += lossRaw.AsFloat32()[0]
		totalCorrect += int(nn.Accuracy(logits, batch.Labels) * float64(batch.Size))
		totalSamples += batch.Size
	}

	return totalLoss / float32(len(batches)), float64(totalCorrect) / float64(totalSamples)
}

// printShapes walks a fresh network with a random batch and prints the
// output shape of every stage.
func printShapes[B tensor.Backend](batchSize, numClasses int, backend B) {
	fmt.Printf("stage output shapes (batch=%d, classes=%d):\n", batchSize, numClasses)
	for name, shape := range nn.ProbeShapes[B](batchSize, numClasses, backend) {
		fmt.Printf("  %-8s %v\n", name, shape)
	}
}

func countParameters[B tensor.Backend](model *nn.LeNet5[B]) int {
	total := 0
	for _, p := range model.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}
