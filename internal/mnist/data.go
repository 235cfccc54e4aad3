package mnist

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// ImageSize is the side length of a network input image. MNIST digits
// are 28x28; they are zero-padded to 32x32 at load time so the first
// 5x5 convolution sees the full digit.
const ImageSize = 32

const rawImageSize = 28

// Dataset holds images already padded to 32x32 and normalized to
// [0, 1], alongside their labels.
type Dataset struct {
	Images [][]float32 // [numSamples, 32*32]
	Labels []int32     // [numSamples]
}

// Load reads the official IDX files from dataDir, normalizes pixels to
// [0, 1] and pads each 28x28 image to 32x32.
//
// Expected files:
//   - train-images-idx3-ubyte / train-labels-idx1-ubyte (train)
//   - t10k-images-idx3-ubyte / t10k-labels-idx1-ubyte (test)
//
// maxSamples limits how many samples are kept; 0 keeps all.
func Load(dataDir string, train bool, maxSamples int) (*Dataset, error) {
	var imageFile, labelFile string
	if train {
		imageFile = filepath.Join(dataDir, "train-images-idx3-ubyte")
		labelFile = filepath.Join(dataDir, "train-labels-idx1-ubyte")
	} else {
		imageFile = filepath.Join(dataDir, "t10k-images-idx3-ubyte")
		labelFile = filepath.Join(dataDir, "t10k-labels-idx1-ubyte")
	}

	imagesRaw, rows, cols, err := readIDXImages(imageFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	if rows != rawImageSize || cols != rawImageSize {
		return nil, fmt.Errorf("unexpected image size %dx%d, want %dx%d", rows, cols, rawImageSize, rawImageSize)
	}

	labelsRaw, err := readIDXLabels(labelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	if len(imagesRaw) != len(labelsRaw) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", len(imagesRaw), len(labelsRaw))
	}

	numSamples := len(imagesRaw)
	if maxSamples > 0 && numSamples > maxSamples {
		numSamples = maxSamples
	}

	images := make([][]float32, numSamples)
	labels := make([]int32, numSamples)
	for i := 0; i < numSamples; i++ {
		images[i] = padImage(imagesRaw[i])
		labels[i] = int32(labelsRaw[i])
	}

	return &Dataset{Images: images, Labels: labels}, nil
}

// padImage centers a 28x28 byte image inside a zeroed 32x32 float
// image, normalizing pixels to [0, 1].
func padImage(raw []byte) []float32 {
	padded := make([]float32, ImageSize*ImageSize)
	offset := (ImageSize - rawImageSize) / 2
	for r := 0; r < rawImageSize; r++ {
		for c := 0; c < rawImageSize; c++ {
			padded[(r+offset)*ImageSize+(c+offset)] = float32(raw[r*rawImageSize+c]) / 255.0
		}
	}
	return padded
}

// Synthetic builds a deterministic stand-in dataset so the training
// pipeline can run without the IDX files. Each class gets a distinct
// bright horizontal band plus a little noise; the patterns are
// separable enough for the loss to fall within a couple of epochs.
func Synthetic(numSamples, numClasses int) *Dataset {
	rng := rand.New(rand.NewSource(42))

	images := make([][]float32, numSamples)
	labels := make([]int32, numSamples)
	bandHeight := ImageSize / numClasses
	if bandHeight < 1 {
		bandHeight = 1
	}
	for i := 0; i < numSamples; i++ {
		class := i % numClasses
		img := make([]float32, ImageSize*ImageSize)

		startRow := (class * bandHeight) % (ImageSize - bandHeight + 1)
		for r := startRow; r < startRow+bandHeight; r++ {
			for c := 4; c < ImageSize-4; c++ {
				img[r*ImageSize+c] = 0.8
			}
		}
		for j := range img {
			img[j] += rng.Float32() * 0.05
		}

		images[i] = img
		labels[i] = int32(class)
	}

	return &Dataset{Images: images, Labels: labels}
}

// NumSamples returns the number of samples in the dataset.
func (d *Dataset) NumSamples() int {
	return len(d.Images)
}

// Split divides the dataset into train and validation parts.
// validationRatio is the fraction held out, e.g. 0.2.
func (d *Dataset) Split(validationRatio float32) (train, validation *Dataset) {
	splitIdx := int(float32(d.NumSamples()) * (1.0 - validationRatio))
	return &Dataset{Images: d.Images[:splitIdx], Labels: d.Labels[:splitIdx]},
		&Dataset{Images: d.Images[splitIdx:], Labels: d.Labels[splitIdx:]}
}

// Batch is one mini-batch of network-ready tensors.
type Batch[B tensor.Backend] struct {
	Images *tensor.Tensor[float32, B] // (size, 1, 32, 32)
	Labels *tensor.Tensor[int32, B]   // (size)
	Size   int
}

// Batches splits the dataset into mini-batches of (size, 1, 32, 32)
// image tensors and (size) label tensors. The last batch may be
// smaller. When rng is non-nil the sample order is shuffled first.
func Batches[B tensor.Backend](d *Dataset, batchSize int, rng *rand.Rand, backend B) ([]*Batch[B], error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("invalid batch size %d", batchSize)
	}
	numSamples := d.NumSamples()
	if numSamples != len(d.Labels) {
		return nil, fmt.Errorf("images and labels length mismatch")
	}

	indices := make([]int, numSamples)
	for i := range indices {
		indices[i] = i
	}
	if rng != nil {
		rng.Shuffle(numSamples, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	pixels := ImageSize * ImageSize
	batches := make([]*Batch[B], 0, (numSamples+batchSize-1)/batchSize)
	for start := 0; start < numSamples; start += batchSize {
		end := start + batchSize
		if end > numSamples {
			end = numSamples
		}
		size := end - start

		imagesRaw, err := tensor.NewRaw(tensor.Shape{size, 1, ImageSize, ImageSize}, tensor.Float32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("failed to create image tensor: %w", err)
		}
		labelsRaw, err := tensor.NewRaw(tensor.Shape{size}, tensor.Int32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("failed to create label tensor: %w", err)
		}

		imageData := imagesRaw.AsFloat32()
		labelData := labelsRaw.AsInt32()
		for j := start; j < end; j++ {
			idx := indices[j]
			copy(imageData[(j-start)*pixels:(j-start+1)*pixels], d.Images[idx])
			labelData[j-start] = d.Labels[idx]
		}

		batches = append(batches, &Batch[B]{
			Images: tensor.New[float32, B](imagesRaw, backend),
			Labels: tensor.New[int32, B](labelsRaw, backend),
			Size:   size,
		})
	}

	return batches, nil
}
