// Package dynops executes tensor operators whose output shape depends on the values of
// auxiliary "control" tensors, not only on their static shapes.
//
//   - Execute: runs one operator (an Op) over concrete input tensors and returns the output tensor.
//   - ExecuteAll: runs many independent calls concurrently.
//   - InferShape: the static (pre-execution) shape of an operator's output, with unresolved axes.
//   - Resolve*: the shape resolution of each operator family, as pure functions over ints.
//   - Materialize*: allocation and filling of the output buffer for a resolved shape.
//   - MarshalTensor, UnmarshalTensor, ReadTensorFile, WriteTensorFile: ONNX TensorProto (de)serialization.
//
// The operator families are Reshape (with the 0, -1 and -3 reshape codes), ReshapeFromShape,
// Tile, Zeros, Ones, Full and SparseToDense.
//
// Tensors are GoMLX tensors.Tensor values with local storage. Inputs are never modified.
package dynops
