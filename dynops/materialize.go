package dynops

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// The materializers allocate and fill the output of an operator whose shape has already been
// resolved. They work on the bytes of the flat data, so one implementation serves all dtypes.
//
// They panic (with exceptions.Panicf) on inconsistent arguments: Execute validates everything
// before calling them.

// MaterializeReshape returns a new tensor with the data of x and the given dimensions.
func MaterializeReshape(x *tensors.Tensor, dims []int) *tensors.Tensor {
	if size, err := checkedSize(dims); err != nil || size != x.Size() {
		exceptions.Panicf("MaterializeReshape: can't reshape %s (%d elements) to %v", x.Shape(), x.Size(), dims)
	}
	output := tensors.FromShape(shapes.Make(x.DType(), dims...))
	if output.Size() == 0 {
		return output
	}
	withBytes(x, output, func(src, dst []byte) {
		copy(dst, src)
	})
	return output
}

// MaterializeTile returns x repeated along each axis as described by spec.
//
// Output element at index idx is the input element at idx[k] mod spec.InputDims[k], for every axis k.
func MaterializeTile(x *tensors.Tensor, spec TileSpec) *tensors.Tensor {
	if len(spec.InputDims) != len(spec.Reps) || Size(spec.InputDims) != x.Size() {
		exceptions.Panicf("MaterializeTile: invalid spec %+v for input %s", spec, x.Shape())
	}
	output := tensors.FromShape(shapes.Make(x.DType(), spec.OutputDims()...))
	if output.Size() == 0 {
		return output
	}
	rank := len(spec.InputDims)
	if rank == 0 {
		withBytes(x, output, func(src, dst []byte) { copy(dst, src) })
		return output
	}

	elementSize := x.DType().Size()
	inputStrides := strides(spec.InputDims)
	lastAxis := rank - 1
	rowBytes := spec.InputDims[lastAxis] * elementSize
	outerDims := spec.OutputDims()[:lastAxis]
	withBytes(x, output, func(src, dst []byte) {
		// Iterate over the output rows (all axes but the last) in row-major order, each output row
		// is the corresponding input row repeated spec.Reps[lastAxis] times.
		outerIdx := make([]int, lastAxis)
		dstPos := 0
		for dstPos < len(dst) {
			srcPos := 0
			for axis, idx := range outerIdx {
				srcPos += (idx % spec.InputDims[axis]) * inputStrides[axis]
			}
			srcRow := src[srcPos*elementSize : srcPos*elementSize+rowBytes]
			for range spec.Reps[lastAxis] {
				dstPos += copy(dst[dstPos:], srcRow)
			}
			for axis := lastAxis - 1; axis >= 0; axis-- {
				outerIdx[axis]++
				if outerIdx[axis] < outerDims[axis] {
					break
				}
				outerIdx[axis] = 0
			}
		}
	})
	return output
}

// MaterializeFill returns a tensor of spec.Dims with every element set to spec.Value.
func MaterializeFill(spec FillSpec) *tensors.Tensor {
	if spec.Value.DType() != spec.DType || spec.Value.Size() != 1 {
		exceptions.Panicf("MaterializeFill: value %s is not a scalar of %s", spec.Value.Shape(), spec.DType)
	}
	output := tensors.FromShape(shapes.Make(spec.DType, spec.Dims...))
	if output.Size() == 0 {
		return output
	}
	withBytes(spec.Value, output, fillBytes)
	return output
}

// MaterializeSparseToDense returns a tensor of the given shape filled with defaultValue, with
// the values scattered at the entries' coordinates. Later entries overwrite earlier ones
// with the same coordinate.
//
// values and defaultValue must already have the output dtype. A nil defaultValue means zero.
func MaterializeSparseToDense(shape shapes.Shape, entries []SparseEntry, values, defaultValue *tensors.Tensor) *tensors.Tensor {
	if values.DType() != shape.DType || (defaultValue != nil && defaultValue.DType() != shape.DType) {
		exceptions.Panicf("MaterializeSparseToDense: values and default value must have dtype %s", shape.DType)
	}
	output := tensors.FromShape(shape)
	if output.Size() == 0 {
		if len(entries) > 0 {
			exceptions.Panicf("MaterializeSparseToDense: %d entries given for empty output %s", len(entries), shape)
		}
		return output
	}
	if defaultValue != nil {
		withBytes(defaultValue, output, fillBytes)
	}
	if len(entries) == 0 {
		return output
	}

	elementSize := shape.DType.Size()
	outputStrides := strides(shape.Dimensions)
	withBytes(values, output, func(src, dst []byte) {
		for _, entry := range entries {
			dstPos := 0
			for axis, c := range entry.Coordinate {
				dstPos += c * outputStrides[axis]
			}
			dstPos *= elementSize
			srcPos := entry.ValueIndex * elementSize
			copy(dst[dstPos:dstPos+elementSize], src[srcPos:srcPos+elementSize])
		}
	})
	return output
}

// fillBytes fills dst with repeated copies of value, doubling the filled prefix at each step.
func fillBytes(value, dst []byte) {
	n := copy(dst, value)
	for n < len(dst) {
		n += copy(dst[n:], dst[:n])
	}
}

// strides returns the row-major strides, in elements, of the given dimensions.
func strides(dims []int) []int {
	s := make([]int, len(dims))
	stride := 1
	for axis := len(dims) - 1; axis >= 0; axis-- {
		s[axis] = stride
		stride *= dims[axis]
	}
	return s
}

// withBytes calls fn with the bytes of src and the mutable bytes of dst.
// Both tensors must be non-empty.
func withBytes(src, dst *tensors.Tensor, fn func(src, dst []byte)) {
	err := src.ConstBytes(func(srcBytes []byte) {
		err := dst.MutableBytes(func(dstBytes []byte) {
			fn(srcBytes, dstBytes)
		})
		if err != nil {
			exceptions.Panicf("failed to access output bytes: %+v", err)
		}
	})
	if err != nil {
		exceptions.Panicf("failed to access input bytes: %+v", err)
	}
}
