package dynops

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// FillSpec describes the output of Zeros, Ones and Full.
type FillSpec struct {
	Dims  []int
	DType dtypes.DType

	// Value is a scalar of DType.
	Value *tensors.Tensor
}

// ResolveFill returns the output dimensions given by the values of a shape control tensor.
// Negative values fail with ErrShapeMismatch: they are not clamped. So does a shape with more
// elements than fit an int.
func ResolveFill(shapeValues []int) ([]int, error) {
	if _, err := checkedSize(shapeValues); err != nil {
		return nil, errors.WithMessage(err, "shape")
	}
	return append(make([]int, 0, len(shapeValues)), shapeValues...), nil
}

// NewFillSpec resolves the shape and converts value, a tensor with exactly one element, to a scalar of dtype.
//
// It fails with ErrDType if the value can't be represented in dtype.
func NewFillSpec(shapeValues []int, value *tensors.Tensor, dtype dtypes.DType) (FillSpec, error) {
	dims, err := ResolveFill(shapeValues)
	if err != nil {
		return FillSpec{}, err
	}
	if value.Size() != 1 {
		return FillSpec{}, arityf("fill value must have exactly one element, got shape %s", value.Shape())
	}
	scalar, err := CastTensor(value, dtype)
	if err != nil {
		return FillSpec{}, errors.WithMessage(err, "fill value")
	}
	if scalar.Rank() != 0 {
		scalar = MaterializeReshape(scalar, nil)
	}
	return FillSpec{Dims: dims, DType: dtype, Value: scalar}, nil
}

// scalarOf returns a scalar tensor of dtype holding v, used for the constants of Zeros and Ones.
func scalarOf(v int, dtype dtypes.DType) (*tensors.Tensor, error) {
	return CastTensor(tensors.FromScalar(int64(v)), dtype)
}
