package dynops

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
)

// UnresolvedDim marks an axis of a DynamicShape whose dimension is only known at execution.
const UnresolvedDim = -1

// Size returns the number of elements of a tensor with the given dimensions: 1 for a scalar.
func Size(dims []int) int {
	size := 1
	for _, d := range dims {
		size *= d
	}
	return size
}

// checkedSize is Size for dimensions read from control values: it fails with ErrShapeMismatch
// on negative dimensions or if the number of elements doesn't fit an int.
// Any 0 dimension makes the size 0, regardless of the other dimensions.
func checkedSize(dims []int) (int, error) {
	for axis, d := range dims {
		if d < 0 {
			return 0, shapeMismatchf("dimensions %v have negative dimension at axis %d", dims, axis)
		}
	}
	if slices.Contains(dims, 0) {
		return 0, nil
	}
	size := 1
	for _, d := range dims {
		if size > math.MaxInt/d {
			return 0, shapeMismatchf("dimensions %v have more elements than fit an int", dims)
		}
		size *= d
	}
	return size, nil
}

// DynamicShape is the shape of an output before its control values are known:
// the rank is known, but some dimensions may be UnresolvedDim.
type DynamicShape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Unresolved returns a DynamicShape of the given rank with all dimensions unresolved.
func Unresolved(dtype dtypes.DType, rank int) DynamicShape {
	dims := make([]int, rank)
	for ii := range dims {
		dims[ii] = UnresolvedDim
	}
	return DynamicShape{DType: dtype, Dimensions: dims}
}

// Rank of the shape.
func (s DynamicShape) Rank() int { return len(s.Dimensions) }

// IsResolved returns whether all dimensions are known.
func (s DynamicShape) IsResolved() bool {
	return !slices.Contains(s.Dimensions, UnresolvedDim)
}

// Resolve returns the concrete shape for the given dimensions, after checking they are
// compatible with s: same rank, non-negative, and equal to s on every resolved axis.
func (s DynamicShape) Resolve(dims []int) (shapes.Shape, error) {
	if len(dims) != s.Rank() {
		return shapes.Shape{}, shapeMismatchf("resolved dimensions %v have rank %d, expected shape %s", dims, len(dims), s)
	}
	for axis, dim := range dims {
		if dim < 0 {
			return shapes.Shape{}, shapeMismatchf("resolved dimensions %v have negative dimension at axis %d", dims, axis)
		}
		if s.Dimensions[axis] != UnresolvedDim && s.Dimensions[axis] != dim {
			return shapes.Shape{}, shapeMismatchf("resolved dimensions %v don't match expected shape %s at axis %d", dims, s, axis)
		}
	}
	return checkedShape(s.DType, dims)
}

// checkedShape returns the shape with the given dtype and dimensions, failing with ErrShapeMismatch
// if its number of elements or of bytes doesn't fit an int.
func checkedShape(dtype dtypes.DType, dims []int) (shapes.Shape, error) {
	size, err := checkedSize(dims)
	if err != nil {
		return shapes.Shape{}, err
	}
	if elementSize := dtype.Size(); elementSize > 0 && size > math.MaxInt/elementSize {
		return shapes.Shape{}, shapeMismatchf("dimensions %v of %s take more bytes than fit an int", dims, dtype)
	}
	return shapes.Make(dtype, dims...), nil
}

// String implements fmt.Stringer. Unresolved axes are printed as "?".
func (s DynamicShape) String() string {
	parts := make([]string, len(s.Dimensions))
	for ii, d := range s.Dimensions {
		if d == UnresolvedDim {
			parts[ii] = "?"
		} else {
			parts[ii] = fmt.Sprintf("%d", d)
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}
