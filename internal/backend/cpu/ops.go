package cpu

import (
	"fmt"

	"github.com/lenet-ml/lenet5/internal/tensor"
)

// binaryOp dispatches an elementwise binary operation, handling dtype
// dispatch and broadcasting. Same-shape float tensors go through tight
// typed loops; broadcast cases fall back to a stride-walking loop.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, op func(x, y float64) float64) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	// Inplace fast path: when a uniquely owns its buffer and no broadcast
	// is needed, write the result straight into a. The autodiff wrapper
	// bumps refcounts around recorded ops so tape-held tensors never land
	// here.
	if !needsBroadcast && a.IsUnique() {
		switch a.DType() {
		case tensor.Float32:
			x, y := a.AsFloat32(), b.AsFloat32()
			for i := range x {
				x[i] = float32(op(float64(x[i]), float64(y[i])))
			}
		case tensor.Float64:
			x, y := a.AsFloat64(), b.AsFloat64()
			for i := range x {
				x[i] = op(x[i], y[i])
			}
		case tensor.Int32:
			x, y := a.AsInt32(), b.AsInt32()
			for i := range x {
				x[i] = int32(op(float64(x[i]), float64(y[i])))
			}
		default:
			panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
		}
		return a
	}

	result, err := tensor.NewRaw(outShape, a.DType(), a.Device())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if !needsBroadcast {
		switch a.DType() {
		case tensor.Float32:
			x, y, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
			for i := range out {
				out[i] = float32(op(float64(x[i]), float64(y[i])))
			}
		case tensor.Float64:
			x, y, out := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
			for i := range out {
				out[i] = op(x[i], y[i])
			}
		case tensor.Int32:
			x, y, out := a.AsInt32(), b.AsInt32(), result.AsInt32()
			for i := range out {
				out[i] = int32(op(float64(x[i]), float64(y[i])))
			}
		default:
			panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
		}
		return result
	}

	broadcastOp(name, result, a, b, op)
	return result
}

// broadcastOp walks the output coordinates, projecting each back onto the
// (possibly size-1) dimensions of the two operands.
func broadcastOp(name string, result, a, b *tensor.RawTensor, op func(x, y float64) float64) {
	outShape := result.Shape()
	ndim := len(outShape)
	outStrides := outShape.ComputeStrides()

	aIdx := alignedStrides(a.Shape(), outShape)
	bIdx := alignedStrides(b.Shape(), outShape)

	n := outShape.NumElements()
	coords := make([]int, ndim)

	readAt := func(t *tensor.RawTensor, flat int) float64 {
		switch t.DType() {
		case tensor.Float32:
			return float64(t.AsFloat32()[flat])
		case tensor.Float64:
			return t.AsFloat64()[flat]
		case tensor.Int32:
			return float64(t.AsInt32()[flat])
		}
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, t.DType()))
	}
	writeAt := func(t *tensor.RawTensor, flat int, v float64) {
		switch t.DType() {
		case tensor.Float32:
			t.AsFloat32()[flat] = float32(v)
		case tensor.Float64:
			t.AsFloat64()[flat] = v
		case tensor.Int32:
			t.AsInt32()[flat] = int32(v)
		}
	}

	for i := 0; i < n; i++ {
		rem := i
		aFlat, bFlat := 0, 0
		for d := 0; d < ndim; d++ {
			coords[d] = rem / outStrides[d]
			rem %= outStrides[d]
			aFlat += coords[d] * aIdx[d]
			bFlat += coords[d] * bIdx[d]
		}
		writeAt(result, i, op(readAt(a, aFlat), readAt(b, bFlat)))
	}
}

// alignedStrides returns per-output-dimension strides into a tensor whose
// shape broadcasts to outShape. Broadcast (size-1 or missing) dims get
// stride 0 so the same element is reused across the dimension.
func alignedStrides(shape, outShape tensor.Shape) []int {
	ndim := len(outShape)
	offset := ndim - len(shape)
	strides := shape.ComputeStrides()

	aligned := make([]int, ndim)
	for d := 0; d < ndim; d++ {
		if d < offset || shape[d-offset] == 1 {
			aligned[d] = 0
		} else {
			aligned[d] = strides[d-offset]
		}
	}
	return aligned
}
