package nn

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// SumPool is the subsampling layer: a fixed 2x2/stride-2 windowed sum
// followed by a learned affine remap of the trailing dimension.
//
// Stage 1: windowed sum. Each non-overlapping 2x2 window is reduced to
// the plain sum of its four values. Not the average and not the max:
// the learned remap supplies any rescaling. (N,C,H,W) -> (N,C,H/2,W/2);
// odd H or W panics during construction of the output, naming the
// offending dimension.
//
// Stage 2: affine remap. Weight [out, in] and bias [out] applied to
// the trailing dimension of the pooled map, where in is the post-pool
// width. The weight starts as 0.25*I, so an untrained layer reproduces
// average pooling and training moves it away from there.
type SumPool[B tensor.Backend] struct {
	in      int
	out     int
	weight  *Parameter[B] // [out, in]
	bias    *Parameter[B] // [out]
	backend B
}

// NewSumPool creates a SumPool whose remap maps trailing width in to
// out. For the square feature maps of this network in == out.
func NewSumPool[B tensor.Backend](in, out int, backend B) *SumPool[B] {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("sumpool: invalid remap widths in=%d, out=%d", in, out))
	}

	var weight *Parameter[B]
	if in == out {
		weight = NewParameter("sumpool.weight", Identity(in, 0.25, backend))
	} else {
		weight = NewParameter("sumpool.weight", LeCunUniform(in, tensor.Shape{out, in}, backend))
	}
	bias := NewParameter("sumpool.bias", Zeros(tensor.Shape{out}, backend))

	return &SumPool[B]{
		in:      in,
		out:     out,
		weight:  weight,
		bias:    bias,
		backend: backend,
	}
}

// Forward applies the windowed sum, then the trailing-dimension remap.
func (s *SumPool[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("sumpool: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}

	// Stage 1: windowed sum. The backend rejects spatial dimensions
	// that do not tile into 2x2 windows.
	pooledRaw := s.backend.SumPool2D(input.Raw(), 2, 2)
	pooled := tensor.New[float32, B](pooledRaw, s.backend)

	pooledShape := pooled.Shape()
	if pooledShape[3] != s.in {
		panic(fmt.Sprintf("sumpool: pooled width %d != remap input width %d", pooledShape[3], s.in))
	}

	// Stage 2: affine remap along the trailing dimension.
	rows := pooled.NumElements() / s.in
	flat := pooled.Reshape(rows, s.in)
	remapped := flat.MatMul(s.weight.Tensor().T()).Add(s.bias.Tensor().Reshape(1, s.out))

	return remapped.Reshape(pooledShape[0], pooledShape[1], pooledShape[2], s.out)
}

// Parameters returns [weight, bias] of the remap stage.
func (s *SumPool[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{s.weight, s.bias}
}

// String describes the layer configuration.
func (s *SumPool[B]) String() string {
	return fmt.Sprintf("SumPool(window=2, stride=2, remap=%dx%d)", s.out, s.in)
}
