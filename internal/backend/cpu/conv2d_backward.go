package cpu

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/parallel"
	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the convolution input
// (transposed convolution): each output gradient is scattered back through
// the kernel to every input position that contributed to it.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	d := backwardDims(input, kernel, grad, stride, padding)

	inputGrad, err := tensor.NewRaw(input.Shape().Clone(), grad.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d input backward: failed to create gradient tensor: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		conv2dInputBackwardFloat32(inputGrad, grad, kernel, d, cpu.pool)
	case tensor.Float64:
		conv2dInputBackwardFloat64(inputGrad, grad, kernel, d, cpu.pool)
	default:
		panic(fmt.Sprintf("conv2d input backward: unsupported dtype %s", grad.DType()))
	}

	return inputGrad
}

// Conv2DKernelBackward computes the gradient w.r.t. the kernel: a
// correlation of the input with the output gradient, accumulated over the
// batch.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	d := backwardDims(input, kernel, grad, stride, padding)

	kernelGrad, err := tensor.NewRaw(kernel.Shape().Clone(), grad.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d kernel backward: failed to create gradient tensor: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		conv2dKernelBackwardFloat32(kernelGrad, grad, input, d, cpu.pool)
	case tensor.Float64:
		conv2dKernelBackwardFloat64(kernelGrad, grad, input, d, cpu.pool)
	default:
		panic(fmt.Sprintf("conv2d kernel backward: unsupported dtype %s", grad.DType()))
	}

	return kernelGrad
}

func backwardDims(input, kernel, grad *tensor.RawTensor, stride, padding int) conv2dDims {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	return conv2dDims{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		HOut: gradShape[2], WOut: gradShape[3],
		stride: stride, padding: padding,
	}
}

// conv2dInputBackwardFloat32 parallelizes over the batch: each sample's
// input gradient plane is written by exactly one worker, so no atomics are
// needed.
func conv2dInputBackwardFloat32(inputGrad, grad, kernel *tensor.RawTensor, d conv2dDims, pool parallel.Config) {
	inputGradData := inputGrad.AsFloat32()
	gradData := grad.AsFloat32()
	kernelData := kernel.AsFloat32()

	parallel.For(d.N, func(n int) {
		igBatch := inputGradData[n*d.CIn*d.H*d.W : (n+1)*d.CIn*d.H*d.W]
		gBatch := gradData[n*d.COut*d.HOut*d.WOut : (n+1)*d.COut*d.HOut*d.WOut]

		for outH := 0; outH < d.HOut; outH++ {
			for outW := 0; outW < d.WOut; outW++ {
				for cOut := 0; cOut < d.COut; cOut++ {
					gradVal := gBatch[cOut*d.HOut*d.WOut+outH*d.WOut+outW]
					kCOut := kernelData[cOut*d.CIn*d.KH*d.KW : (cOut+1)*d.CIn*d.KH*d.KW]

					for cIn := 0; cIn < d.CIn; cIn++ {
						igPlane := igBatch[cIn*d.H*d.W : (cIn+1)*d.H*d.W]
						kPlane := kCOut[cIn*d.KH*d.KW : (cIn+1)*d.KH*d.KW]

						for kh := 0; kh < d.KH; kh++ {
							for kw := 0; kw < d.KW; kw++ {
								h := outH*d.stride - d.padding + kh
								w := outW*d.stride - d.padding + kw
								if h >= 0 && h < d.H && w >= 0 && w < d.W {
									igPlane[h*d.W+w] += gradVal * kPlane[kh*d.KW+kw]
								}
							}
						}
					}
				}
			}
		}
	}, pool)
}

func conv2dInputBackwardFloat64(inputGrad, grad, kernel *tensor.RawTensor, d conv2dDims, pool parallel.Config) {
	inputGradData := inputGrad.AsFloat64()
	gradData := grad.AsFloat64()
	kernelData := kernel.AsFloat64()

	parallel.For(d.N, func(n int) {
		igBatch := inputGradData[n*d.CIn*d.H*d.W : (n+1)*d.CIn*d.H*d.W]
		gBatch := gradData[n*d.COut*d.HOut*d.WOut : (n+1)*d.COut*d.HOut*d.WOut]

		for outH := 0; outH < d.HOut; outH++ {
			for outW := 0; outW < d.WOut; outW++ {
				for cOut := 0; cOut < d.COut; cOut++ {
					gradVal := gBatch[cOut*d.HOut*d.WOut+outH*d.WOut+outW]
					kCOut := kernelData[cOut*d.CIn*d.KH*d.KW : (cOut+1)*d.CIn*d.KH*d.KW]

					for cIn := 0; cIn < d.CIn; cIn++ {
						igPlane := igBatch[cIn*d.H*d.W : (cIn+1)*d.H*d.W]
						kPlane := kCOut[cIn*d.KH*d.KW : (cIn+1)*d.KH*d.KW]

						for kh := 0; kh < d.KH; kh++ {
							for kw := 0; kw < d.KW; kw++ {
								h := outH*d.stride - d.padding + kh
								w := outW*d.stride - d.padding + kw
								if h >= 0 && h < d.H && w >= 0 && w < d.W {
									igPlane[h*d.W+w] += gradVal * kPlane[kh*d.KW+kw]
								}
							}
						}
					}
				}
			}
		}
	}, pool)
}

// conv2dKernelBackwardFloat32 parallelizes over output channels: each
// worker owns the kernel gradient slab for one c_out.
func conv2dKernelBackwardFloat32(kernelGrad, grad, input *tensor.RawTensor, d conv2dDims, pool parallel.Config) {
	kernelGradData := kernelGrad.AsFloat32()
	gradData := grad.AsFloat32()
	inputData := input.AsFloat32()

	parallel.For(d.COut, func(cOut int) {
		for cIn := 0; cIn < d.CIn; cIn++ {
			for kh := 0; kh < d.KH; kh++ {
				for kw := 0; kw < d.KW; kw++ {
					sum := float32(0)
					for n := 0; n < d.N; n++ {
						for outH := 0; outH < d.HOut; outH++ {
							for outW := 0; outW < d.WOut; outW++ {
								h := outH*d.stride - d.padding + kh
								w := outW*d.stride - d.padding + kw
								if h >= 0 && h < d.H && w >= 0 && w < d.W {
									inputIdx := n*d.CIn*d.H*d.W + cIn*d.H*d.W + h*d.W + w
									gradIdx := n*d.COut*d.HOut*d.WOut + cOut*d.HOut*d.WOut + outH*d.WOut + outW
									sum += inputData[inputIdx] * gradData[gradIdx]
								}
							}
						}
					}
					kernelGradData[cOut*d.CIn*d.KH*d.KW+cIn*d.KH*d.KW+kh*d.KW+kw] = sum
				}
			}
		}
	}, pool)
}

func conv2dKernelBackwardFloat64(kernelGrad, grad, input *tensor.RawTensor, d conv2dDims, pool parallel.Config) {
	kernelGradData := kernelGrad.AsFloat64()
	gradData := grad.AsFloat64()
	inputData := input.AsFloat64()

	parallel.For(d.COut, func(cOut int) {
		for cIn := 0; cIn < d.CIn; cIn++ {
			for kh := 0; kh < d.KH; kh++ {
				for kw := 0; kw < d.KW; kw++ {
					sum := float64(0)
					for n := 0; n < d.N; n++ {
						for outH := 0; outH < d.HOut; outH++ {
							for outW := 0; outW < d.WOut; outW++ {
								h := outH*d.stride - d.padding + kh
								w := outW*d.stride - d.padding + kw
								if h >= 0 && h < d.H && w >= 0 && w < d.W {
									inputIdx := n*d.CIn*d.H*d.W + cIn*d.H*d.W + h*d.W + w
									gradIdx := n*d.COut*d.HOut*d.WOut + cOut*d.HOut*d.WOut + outH*d.WOut + outW
									sum += inputData[inputIdx] * gradData[gradIdx]
								}
							}
						}
					}
					kernelGradData[cOut*d.CIn*d.KH*d.KW+cIn*d.KH*d.KW+kh*d.KW+kw] = sum
				}
			}
		}
	}, pool)
}
