package nn

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// Conv2D is a 2D convolutional layer: output = Conv2D(input, weight) + bias.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Kernels use LeCun-uniform initialization (±2.4/fan_in), which keeps
// pre-activations in the quasi-linear region of the scaled tanh that
// follows every convolution in this network.
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewConv2D creates a square-kernel convolutional layer.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, backend B) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	weightShape := tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}
	fanIn := inChannels * kernelSize * kernelSize
	weight := NewParameter("conv2d.weight", LeCunUniform(fanIn, weightShape, backend))
	bias := NewParameter("conv2d.bias", Zeros(tensor.Shape{outChannels}, backend))

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      weight,
		bias:        bias,
		backend:     backend,
	}
}

// Forward performs the convolution and adds the per-channel bias.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding)
	output := tensor.New[float32, B](outputRaw, c.backend)

	// Bias [out_channels] broadcasts as [1, out_channels, 1, 1]; the
	// reshape goes through the Tensor API so it lands on the tape.
	biasReshaped := c.bias.Tensor().Reshape(1, c.outChannels, 1, 1)
	return output.Add(biasReshaped)
}

// Parameters returns [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// String describes the layer configuration.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding)
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// ComputeOutputSize returns the output spatial dimensions for a given
// input size.
func (c *Conv2D[B]) ComputeOutputSize(inputH, inputW int) (int, int) {
	outH := (inputH+2*c.padding-c.kernelSize)/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize)/c.stride + 1
	return outH, outW
}
