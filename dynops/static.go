package dynops

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
)

// InferShape returns the output shape of op given only the shapes of its inputs, before the
// values of the control tensors are known.
//
// The rank and dtype of the output are always known; the dimensions are resolved only for
// ReshapeFromShape, where they come from the shape of the second input. It validates
// arity, control tensor ranks and dtypes.
func InferShape(op Op, inputShapes []shapes.Shape) (DynamicShape, error) {
	if err := checkArity(op, inputShapes); err != nil {
		return DynamicShape{}, err
	}
	switch op.Kind {
	case KindReshape:
		data, newShape := inputShapes[0], inputShapes[1]
		if err := checkShapeControl(op, "new shape", newShape); err != nil {
			return DynamicShape{}, err
		}
		return Unresolved(data.DType, newShape.Dimensions[0]), nil

	case KindReshapeFromShape:
		data, source := inputShapes[0], inputShapes[1]
		if data.Size() != source.Size() {
			return DynamicShape{}, shapeMismatchf("%s: can't reshape %s (%d elements) to the shape of %s (%d elements)",
				op, data, data.Size(), source, source.Size())
		}
		return DynamicShape{DType: data.DType, Dimensions: append([]int{}, source.Dimensions...)}, nil

	case KindTile:
		data, reps := inputShapes[0], inputShapes[1]
		if err := checkShapeControl(op, "reps", reps); err != nil {
			return DynamicShape{}, err
		}
		return Unresolved(data.DType, max(data.Rank(), reps.Dimensions[0])), nil

	case KindZeros, KindOnes:
		if err := checkOutputDType(op, op.DType); err != nil {
			return DynamicShape{}, err
		}
		if err := checkShapeControl(op, "shape", inputShapes[0]); err != nil {
			return DynamicShape{}, err
		}
		return Unresolved(op.DType, inputShapes[0].Dimensions[0]), nil

	case KindFull:
		fillValue, shape := inputShapes[0], inputShapes[1]
		dtype := op.DType
		if dtype == dtypes.InvalidDType {
			dtype = fillValue.DType
		}
		if err := checkOutputDType(op, dtype); err != nil {
			return DynamicShape{}, err
		}
		if fillValue.Size() != 1 {
			return DynamicShape{}, arityf("%s: fill value must have exactly one element, got %s", op, fillValue)
		}
		if err := checkShapeControl(op, "shape", shape); err != nil {
			return DynamicShape{}, err
		}
		return Unresolved(dtype, shape.Dimensions[0]), nil

	case KindSparseToDense:
		return inferSparseToDense(op, inputShapes)
	}
	return DynamicShape{}, arityf("invalid operator %s", op)
}

// numInputs returns the minimum and maximum number of inputs of each kind.
func numInputs(kind Kind) (minInputs, maxInputs int) {
	switch kind {
	case KindReshape, KindReshapeFromShape, KindTile, KindFull:
		return 2, 2
	case KindZeros, KindOnes:
		return 1, 1
	case KindSparseToDense:
		return 3, 4
	}
	return 0, -1
}

func checkArity(op Op, inputShapes []shapes.Shape) error {
	minInputs, maxInputs := numInputs(op.Kind)
	if maxInputs < 0 {
		return arityf("invalid operator %s", op)
	}
	if len(inputShapes) < minInputs || len(inputShapes) > maxInputs {
		if minInputs == maxInputs {
			return arityf("%s takes %d inputs, got %d", op, minInputs, len(inputShapes))
		}
		return arityf("%s takes %d to %d inputs, got %d", op, minInputs, maxInputs, len(inputShapes))
	}
	return nil
}

// checkControlDType validates that a control tensor holds integer or float values.
func checkControlDType(op Op, name string, shape shapes.Shape) error {
	if !shape.DType.IsInt() && !shape.DType.IsFloat() {
		return invalidControlf("%s: %s must be an integer or float tensor, got %s", op, name, shape)
	}
	return nil
}

// checkShapeControl validates a control tensor whose values form a list: it must have rank 1.
func checkShapeControl(op Op, name string, shape shapes.Shape) error {
	if shape.Rank() != 1 {
		return arityf("%s: %s must have rank 1, got %s", op, name, shape)
	}
	return checkControlDType(op, name, shape)
}

func checkOutputDType(op Op, dtype dtypes.DType) error {
	if dtype == dtypes.InvalidDType {
		return dtypef("%s requires an output dtype", op)
	}
	if !isCastable(dtype) {
		return dtypef("%s: unsupported output dtype %s", op, dtype)
	}
	return nil
}

func inferSparseToDense(op Op, inputShapes []shapes.Shape) (DynamicShape, error) {
	indices, values := inputShapes[0], inputShapes[1]
	outputShape := inputShapes[len(inputShapes)-1]
	dtype := op.DType
	if dtype == dtypes.InvalidDType {
		dtype = values.DType
	}
	if err := checkOutputDType(op, dtype); err != nil {
		return DynamicShape{}, err
	}
	if err := checkControlDType(op, "indices", indices); err != nil {
		return DynamicShape{}, err
	}
	if err := checkShapeControl(op, "output shape", outputShape); err != nil {
		return DynamicShape{}, err
	}
	outputRank := outputShape.Dimensions[0]

	var numCoords int
	switch indices.Rank() {
	case 0, 1:
		numCoords = 1
		if indices.Rank() == 1 {
			numCoords = indices.Dimensions[0]
		}
		if outputRank != 1 {
			return DynamicShape{}, arityf("%s: indices %s only address rank-1 outputs, got output rank %d", op, indices, outputRank)
		}
	case 2:
		numCoords = indices.Dimensions[0]
		if indices.Dimensions[1] != outputRank {
			return DynamicShape{}, arityf("%s: indices %s hold coordinates of rank %d, but output has rank %d",
				op, indices, indices.Dimensions[1], outputRank)
		}
	default:
		return DynamicShape{}, arityf("%s: indices must be a scalar, a vector or a matrix, got %s", op, indices)
	}

	switch values.Rank() {
	case 0:
	case 1:
		if values.Dimensions[0] != numCoords {
			return DynamicShape{}, arityf("%s: %d values given for %d coordinates", op, values.Dimensions[0], numCoords)
		}
	default:
		return DynamicShape{}, arityf("%s: values must be a scalar or a vector, got %s", op, values)
	}

	if len(inputShapes) == 4 && inputShapes[2].Size() != 1 {
		return DynamicShape{}, arityf("%s: default value must have exactly one element, got %s", op, inputShapes[2])
	}
	return Unresolved(dtype, outputRank), nil
}
