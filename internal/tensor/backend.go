package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: pure Go with worker-pool parallelism
//   - autodiff: decorator adding gradient tracking around any Backend
//
// The operation set is the closure of what the LeNet-5 network, its loss and
// its optimizers require; backward entry points for the structured ops
// (convolution, sum pooling) live here so autodiff operations stay pure
// orchestration.
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor // 2D: (M,K) @ (K,N) -> (M,N)

	// Convolution and subsampling.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	SumPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	SumPool2DBackward(input, grad *RawTensor, kernelSize, stride int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations (element-wise with scalar).
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor

	// Element-wise unary math.
	Tanh(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor

	// Activation functions.
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reduction operations.
	Sum(x *RawTensor) *RawTensor                           // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor // sum along dimension
	Argmax(x *RawTensor, dim int) *RawTensor               // index of maximum along dimension

	// Metadata.
	Name() string
	Device() Device
}
