package cpu

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/parallel"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Im2col lowers the convolution to a matrix product: input patches become
// rows of a column buffer, the kernel becomes a [C_out, C_in*K_h*K_w]
// matrix, and the product is rearranged into NCHW layout.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	KH := kernelShape[2]
	KW := kernelShape[3]

	if CIn != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, kernelShape[1]))
	}

	HOut := (H+2*padding-KH)/stride + 1
	WOut := (W+2*padding-KW)/stride + 1

	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	output, err := tensor.NewRaw(tensor.Shape{N, COut, HOut, WOut}, input.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: failed to create output tensor: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		conv2dFloat32(output, input, kernel, conv2dDims{N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding}, cpu.pool)
	case tensor.Float64:
		conv2dFloat64(output, input, kernel, conv2dDims{N, CIn, H, W, COut, KH, KW, HOut, WOut, stride, padding}, cpu.pool)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

// conv2dDims bundles the geometry of a convolution so the typed kernels
// do not each take eleven ints.
type conv2dDims struct {
	N, CIn, H, W    int
	COut, KH, KW    int
	HOut, WOut      int
	stride, padding int
}

func conv2dFloat32(output, input, kernel *tensor.RawTensor, d conv2dDims, pool parallel.Config) {
	inputData := input.AsFloat32()
	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()

	colWidth := d.CIn * d.KH * d.KW
	colHeight := d.N * d.HOut * d.WOut
	colBuf := make([]float32, colHeight*colWidth)

	im2colFloat32(colBuf, inputData, d)

	// result[c, n*H_out*W_out + h*W_out + w] = kernel row c dot patch row,
	// written directly into the NCHW output position.
	perImage := d.HOut * d.WOut
	parallel.For(d.COut, func(c int) {
		for j := 0; j < colHeight; j++ {
			sum := float32(0)
			for k := 0; k < colWidth; k++ {
				sum += kernelData[c*colWidth+k] * colBuf[j*colWidth+k]
			}
			n := j / perImage
			outputData[n*d.COut*perImage+c*perImage+j%perImage] = sum
		}
	}, pool)
}

// im2colFloat32 flattens each input patch into a row of colBuf.
// colBuf layout: [N * H_out * W_out, C * K_h * K_w]. Out-of-bounds
// positions (padding) read as zero.
func im2colFloat32(colBuf, inputData []float32, d conv2dDims) {
	colWidth := d.CIn * d.KH * d.KW
	colIdx := 0

	for n := 0; n < d.N; n++ {
		for outH := 0; outH < d.HOut; outH++ {
			for outW := 0; outW < d.WOut; outW++ {
				hStart := outH*d.stride - d.padding
				wStart := outW*d.stride - d.padding
				bufIdx := colIdx * colWidth

				for c := 0; c < d.CIn; c++ {
					for kh := 0; kh < d.KH; kh++ {
						for kw := 0; kw < d.KW; kw++ {
							h := hStart + kh
							w := wStart + kw
							if h >= 0 && h < d.H && w >= 0 && w < d.W {
								colBuf[bufIdx] = inputData[n*d.CIn*d.H*d.W+c*d.H*d.W+h*d.W+w]
							} else {
								colBuf[bufIdx] = 0
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}
}

func conv2dFloat64(output, input, kernel *tensor.RawTensor, d conv2dDims, pool parallel.Config) {
	inputData := input.AsFloat64()
	kernelData := kernel.AsFloat64()
	outputData := output.AsFloat64()

	colWidth := d.CIn * d.KH * d.KW
	colHeight := d.N * d.HOut * d.WOut
	colBuf := make([]float64, colHeight*colWidth)

	im2colFloat64(colBuf, inputData, d)

	perImage := d.HOut * d.WOut
	parallel.For(d.COut, func(c int) {
		for j := 0; j < colHeight; j++ {
			sum := float64(0)
			for k := 0; k < colWidth; k++ {
				sum += kernelData[c*colWidth+k] * colBuf[j*colWidth+k]
			}
			n := j / perImage
			outputData[n*d.COut*perImage+c*perImage+j%perImage] = sum
		}
	}, pool)
}

func im2colFloat64(colBuf, inputData []float64, d conv2dDims) {
	colWidth := d.CIn * d.KH * d.KW
	colIdx := 0

	for n := 0; n < d.N; n++ {
		for outH := 0; outH < d.HOut; outH++ {
			for outW := 0; outW < d.WOut; outW++ {
				hStart := outH*d.stride - d.padding
				wStart := outW*d.stride - d.padding
				bufIdx := colIdx * colWidth

				for c := 0; c < d.CIn; c++ {
					for kh := 0; kh < d.KH; kh++ {
						for kw := 0; kw < d.KW; kw++ {
							h := hStart + kh
							w := wStart + kw
							if h >= 0 && h < d.H && w >= 0 && w < d.W {
								colBuf[bufIdx] = inputData[n*d.CIn*d.H*d.W+c*d.H*d.W+h*d.W+w]
							} else {
								colBuf[bufIdx] = 0
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}
}
