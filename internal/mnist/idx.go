// Package mnist loads the MNIST handwritten-digit dataset from the
// official IDX binary files and prepares it as padded image batches
// for the network.
package mnist

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	imageMagic = 2051
	labelMagic = 2049
)

// readIDXImages reads an IDX image file.
//
// Layout:
//
//	magic number: 0x00000803 (2051)
//	number of images, rows, cols: 4 bytes each, big-endian
//	pixel data: unsigned bytes (0-255), row-major
func readIDXImages(filename string) (images [][]byte, rows, cols int, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, 0, err
	}
	defer file.Close()

	var magic uint32
	if err := binary.Read(file, binary.BigEndian, &magic); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != imageMagic {
		return nil, 0, 0, fmt.Errorf("invalid magic number: got %d, want %d", magic, imageMagic)
	}

	var numImages, numRows, numCols uint32
	if err := binary.Read(file, binary.BigEndian, &numImages); err != nil {
		return nil, 0, 0, err
	}
	if err := binary.Read(file, binary.BigEndian, &numRows); err != nil {
		return nil, 0, 0, err
	}
	if err := binary.Read(file, binary.BigEndian, &numCols); err != nil {
		return nil, 0, 0, err
	}

	imageSize := int(numRows * numCols)
	images = make([][]byte, numImages)
	for i := range images {
		images[i] = make([]byte, imageSize)
		if _, err := io.ReadFull(file, images[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read image %d: %w", i, err)
		}
	}

	return images, int(numRows), int(numCols), nil
}

// readIDXLabels reads an IDX label file.
//
// Layout:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes, big-endian
//	label data: unsigned bytes
func readIDXLabels(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var magic uint32
	if err := binary.Read(file, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != labelMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", magic, labelMagic)
	}

	var numLabels uint32
	if err := binary.Read(file, binary.BigEndian, &numLabels); err != nil {
		return nil, err
	}

	labels := make([]byte, numLabels)
	if _, err := io.ReadFull(file, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	return labels, nil
}
