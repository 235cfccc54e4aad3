package cpu

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/parallel"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// SumPool2D performs 2D sum pooling: each output element is the plain sum
// of the values in its pooling window. No averaging is applied; any
// rescaling happens in the layers built on top of this op.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, height/kernelSize, width/kernelSize]
//
// The spatial dimensions must tile exactly: windows never overlap and
// never run off the edge, so H and W must be divisible by the window when
// stride == kernelSize.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],     Output: [[14,22],
//	        [5,6,7,8],              [46,54]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) SumPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("sumpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	N := inputShape[0]
	C := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]

	if kernelSize <= 0 {
		panic(fmt.Sprintf("sumpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("sumpool2d: invalid stride %d", stride))
	}
	if stride == kernelSize {
		if H%kernelSize != 0 {
			panic(fmt.Sprintf("sumpool2d: input height %d not divisible by window %d", H, kernelSize))
		}
		if W%kernelSize != 0 {
			panic(fmt.Sprintf("sumpool2d: input width %d not divisible by window %d", W, kernelSize))
		}
	}
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("sumpool2d: kernel size %d too large for input %dx%d", kernelSize, H, W))
	}

	HOut := (H-kernelSize)/stride + 1
	WOut := (W-kernelSize)/stride + 1

	output, err := tensor.NewRaw(tensor.Shape{N, C, HOut, WOut}, input.DType(), cpu.Device())
	if err != nil {
		panic(fmt.Sprintf("sumpool2d: failed to create output: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		sumpool2dFloat32(output, input, N, C, H, W, HOut, WOut, kernelSize, stride, cpu.pool)
	case tensor.Float64:
		sumpool2dFloat64(output, input, N, C, H, W, HOut, WOut, kernelSize, stride, cpu.pool)
	default:
		panic(fmt.Sprintf("sumpool2d: unsupported dtype %s", input.DType()))
	}

	return output
}

func sumpool2dFloat32(output, input *tensor.RawTensor, N, C, H, W, HOut, WOut, kernelSize, stride int, pool parallel.Config) {
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		channelOffset := (n*C + c) * H * W
		channelData := inputData[channelOffset : channelOffset+H*W]

		for outH := 0; outH < HOut; outH++ {
			hStart := outH * stride
			for outW := 0; outW < WOut; outW++ {
				wStart := outW * stride

				sum := float32(0)
				for kh := 0; kh < kernelSize; kh++ {
					rowStart := (hStart + kh) * W
					rowData := channelData[rowStart : rowStart+W]
					for kw := 0; kw < kernelSize; kw++ {
						sum += rowData[wStart+kw]
					}
				}

				outputData[((n*C+c)*HOut+outH)*WOut+outW] = sum
			}
		}
	}, pool)
}

func sumpool2dFloat64(output, input *tensor.RawTensor, N, C, H, W, HOut, WOut, kernelSize, stride int, pool parallel.Config) {
	inputData := input.AsFloat64()
	outputData := output.AsFloat64()

	parallel.ForBatch(N, C, func(n, c int) {
		channelOffset := (n*C + c) * H * W
		channelData := inputData[channelOffset : channelOffset+H*W]

		for outH := 0; outH < HOut; outH++ {
			hStart := outH * stride
			for outW := 0; outW < WOut; outW++ {
				wStart := outW * stride

				sum := float64(0)
				for kh := 0; kh < kernelSize; kh++ {
					rowStart := (hStart + kh) * W
					rowData := channelData[rowStart : rowStart+W]
					for kw := 0; kw < kernelSize; kw++ {
						sum += rowData[wStart+kw]
					}
				}

				outputData[((n*C+c)*HOut+outH)*WOut+outW] = sum
			}
		}
	}, pool)
}

// SumPool2DBackward computes the gradient of SumPool2D. The derivative of
// a window sum w.r.t. each of its inputs is 1, so each output gradient is
// broadcast unchanged to every position in its window.
func (cpu *CPUBackend) SumPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	gradShape := grad.Shape()

	N := inputShape[0]
	C := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	HOut := gradShape[2]
	WOut := gradShape[3]

	inputGrad, err := tensor.NewRaw(inputShape.Clone(), grad.DType(), cpu.Device())
	if err != nil {
		panic(fmt.Sprintf("sumpool2d backward: failed to create gradient tensor: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		sumpool2dBackwardFloat32(inputGrad, grad, N, C, H, W, HOut, WOut, kernelSize, stride, cpu.pool)
	case tensor.Float64:
		sumpool2dBackwardFloat64(inputGrad, grad, N, C, H, W, HOut, WOut, kernelSize, stride, cpu.pool)
	default:
		panic(fmt.Sprintf("sumpool2d backward: unsupported dtype %s", grad.DType()))
	}

	return inputGrad
}

func sumpool2dBackwardFloat32(inputGrad, grad *tensor.RawTensor, N, C, H, W, HOut, WOut, kernelSize, stride int, pool parallel.Config) {
	inputGradData := inputGrad.AsFloat32()
	gradData := grad.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		channelOffset := (n*C + c) * H * W
		igChannel := inputGradData[channelOffset : channelOffset+H*W]

		for outH := 0; outH < HOut; outH++ {
			hStart := outH * stride
			for outW := 0; outW < WOut; outW++ {
				wStart := outW * stride
				g := gradData[((n*C+c)*HOut+outH)*WOut+outW]

				for kh := 0; kh < kernelSize; kh++ {
					rowStart := (hStart + kh) * W
					rowData := igChannel[rowStart : rowStart+W]
					for kw := 0; kw < kernelSize; kw++ {
						rowData[wStart+kw] += g
					}
				}
			}
		}
	}, pool)
}

func sumpool2dBackwardFloat64(inputGrad, grad *tensor.RawTensor, N, C, H, W, HOut, WOut, kernelSize, stride int, pool parallel.Config) {
	inputGradData := inputGrad.AsFloat64()
	gradData := grad.AsFloat64()

	parallel.ForBatch(N, C, func(n, c int) {
		channelOffset := (n*C + c) * H * W
		igChannel := inputGradData[channelOffset : channelOffset+H*W]

		for outH := 0; outH < HOut; outH++ {
			hStart := outH * stride
			for outW := 0; outW < WOut; outW++ {
				wStart := outW * stride
				g := gradData[((n*C+c)*HOut+outH)*WOut+outW]

				for kh := 0; kh < kernelSize; kh++ {
					rowStart := (hStart + kh) * W
					rowData := igChannel[rowStart : rowStart+W]
					for kw := 0; kw < kernelSize; kw++ {
						rowData[wStart+kw] += g
					}
				}
			}
		}
	}, pool)
}
