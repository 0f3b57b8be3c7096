package dynops

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/dynshape/internal/controls"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Execute runs op on the given inputs and returns a newly allocated output tensor.
//
// Inputs are, per kind:
//
//   - Reshape: (data, newShape)
//   - ReshapeFromShape: (data, shapeSource)
//   - Tile: (data, reps)
//   - Zeros, Ones: (shape)
//   - Full: (fillValue, shape)
//   - SparseToDense: (indices, values, [defaultValue], outputShape)
//
// Inputs are never modified. Errors wrap one of ErrShapeMismatch, ErrInvalidControlValue,
// ErrArity or ErrDType, and are always returned before the output is allocated.
func Execute(op Op, inputs ...*tensors.Tensor) (output *tensors.Tensor, err error) {
	panicErr := exceptions.TryCatch[error](func() {
		output, err = execute(op, inputs)
	})
	if panicErr != nil {
		return nil, errors.WithMessagef(panicErr, "while executing %s", op)
	}
	return output, err
}

// resolved is the outcome of resolving an operator: its output dimensions, and how to
// build the output once the dimensions are checked.
type resolved struct {
	dims        []int
	materialize func(shape shapes.Shape) *tensors.Tensor
}

func execute(op Op, inputs []*tensors.Tensor) (*tensors.Tensor, error) {
	inputShapes := make([]shapes.Shape, len(inputs))
	for ii, x := range inputs {
		if x == nil {
			return nil, arityf("%s: input #%d is nil", op, ii)
		}
		inputShapes[ii] = x.Shape()
	}
	static, err := InferShape(op, inputShapes)
	if err != nil {
		return nil, err
	}

	var r resolved
	switch op.Kind {
	case KindReshape:
		r, err = resolveReshapeOp(op, inputs[0], inputs[1])
	case KindReshapeFromShape:
		r, err = resolveReshapeFromShapeOp(op, inputs[0], ShapeOf(inputs[1]))
	case KindTile:
		r, err = resolveTileOp(op, inputs[0], inputs[1])
	case KindZeros, KindOnes:
		constant := 0
		if op.Kind == KindOnes {
			constant = 1
		}
		var value *tensors.Tensor
		value, err = scalarOf(constant, static.DType)
		if err == nil {
			r, err = resolveFillOp(op, value, inputs[0], static)
		}
	case KindFull:
		r, err = resolveFillOp(op, inputs[0], inputs[1], static)
	case KindSparseToDense:
		var defaultValue *tensors.Tensor
		if len(inputs) == 4 {
			defaultValue = inputs[2]
		}
		r, err = resolveSparseToDenseOp(op, inputs[0], inputs[1], defaultValue, inputs[len(inputs)-1], static)
	}
	if err != nil {
		return nil, err
	}

	shape, err := static.Resolve(r.dims)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: resolved shape doesn't match %s", op, static)
	}
	output := r.materialize(shape)
	if klog.V(1).Enabled() {
		klog.Infof("%s%v -> %s (%s)", op, inputShapes, output.Shape(), humanize.Bytes(uint64(output.Memory())))
	}
	return output, nil
}

// controlValues reads the values of a control tensor, converting failures to ErrInvalidControlValue.
func controlValues(op Op, name string, control *tensors.Tensor) ([]int, error) {
	values, err := controls.Ints(control)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidControlValue, "%s: %s: %v", op, name, err)
	}
	if control.DType().IsFloat() {
		klog.V(1).Infof("%s: %s given as %s, values rounded to %v", op, name, control.DType(), values)
	} else {
		klog.V(2).Infof("%s: %s=%v", op, name, values)
	}
	return values, nil
}

func resolveReshapeOp(op Op, data, newShape *tensors.Tensor) (resolved, error) {
	codes, err := controlValues(op, "new shape", newShape)
	if err != nil {
		return resolved{}, err
	}
	dims, err := ResolveReshape(data.Shape().Dimensions, codes)
	if err != nil {
		return resolved{}, err
	}
	return resolved{
		dims: dims,
		materialize: func(shape shapes.Shape) *tensors.Tensor {
			return MaterializeReshape(data, shape.Dimensions)
		},
	}, nil
}

// resolveReshapeFromShapeOp takes the dimensions literally: a 0 taken from the shape of an
// empty tensor is an empty axis, not a copy code.
func resolveReshapeFromShapeOp(op Op, data, shapeControl *tensors.Tensor) (resolved, error) {
	dims, err := controlValues(op, "shape source", shapeControl)
	if err != nil {
		return resolved{}, err
	}
	size, err := checkedSize(dims)
	if err != nil {
		return resolved{}, errors.WithMessagef(err, "%s: can't reshape %s", op, data.Shape())
	}
	if size != data.Size() {
		return resolved{}, shapeMismatchf("%s: can't reshape %s to %v", op, data.Shape(), dims)
	}
	return resolved{
		dims: dims,
		materialize: func(shape shapes.Shape) *tensors.Tensor {
			return MaterializeReshape(data, shape.Dimensions)
		},
	}, nil
}

func resolveTileOp(op Op, data, repsControl *tensors.Tensor) (resolved, error) {
	reps, err := controlValues(op, "reps", repsControl)
	if err != nil {
		return resolved{}, err
	}
	dims, spec, err := ResolveTile(data.Shape().Dimensions, reps)
	if err != nil {
		return resolved{}, err
	}
	return resolved{
		dims: dims,
		materialize: func(shapes.Shape) *tensors.Tensor {
			return MaterializeTile(data, spec)
		},
	}, nil
}

func resolveFillOp(op Op, value, shapeControl *tensors.Tensor, static DynamicShape) (resolved, error) {
	shapeValues, err := controlValues(op, "shape", shapeControl)
	if err != nil {
		return resolved{}, err
	}
	spec, err := NewFillSpec(shapeValues, value, static.DType)
	if err != nil {
		return resolved{}, errors.WithMessagef(err, "%s", op)
	}
	return resolved{
		dims: spec.Dims,
		materialize: func(shapes.Shape) *tensors.Tensor {
			return MaterializeFill(spec)
		},
	}, nil
}

func resolveSparseToDenseOp(op Op, indices, values, defaultValue, outputShape *tensors.Tensor, static DynamicShape) (resolved, error) {
	coords, err := controlValues(op, "indices", indices)
	if err != nil {
		return resolved{}, err
	}
	dims, err := controlValues(op, "output shape", outputShape)
	if err != nil {
		return resolved{}, err
	}
	entries, err := ResolveSparseToDense(indices.Shape().Dimensions, coords, values.Shape().Dimensions, dims)
	if err != nil {
		return resolved{}, err
	}
	values, err = CastTensor(values, static.DType)
	if err != nil {
		return resolved{}, errors.WithMessagef(err, "%s: values", op)
	}
	if defaultValue != nil {
		defaultValue, err = CastTensor(defaultValue, static.DType)
		if err != nil {
			return resolved{}, errors.WithMessagef(err, "%s: default value", op)
		}
	}
	return resolved{
		dims: dims,
		materialize: func(shape shapes.Shape) *tensors.Tensor {
			return MaterializeSparseToDense(shape, entries, values, defaultValue)
		},
	}, nil
}
