package dynops

import (
	"math"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/require"
)

func TestResolveFill(t *testing.T) {
	dims, err := ResolveFill([]int{1, 3, 0})
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 0}, dims)

	dims, err = ResolveFill(nil)
	require.NoError(t, err)
	require.Empty(t, dims)

	_, err = ResolveFill([]int{2, -1})
	require.ErrorIs(t, err, ErrShapeMismatch)

	// Element counts that wrap around int.
	_, err = ResolveFill([]int{1 << 32, 1 << 32})
	require.ErrorIs(t, err, ErrShapeMismatch)
	_, err = ResolveFill([]int{math.MaxInt, math.MaxInt})
	require.ErrorIs(t, err, ErrShapeMismatch)

	// A 0 dimension makes the tensor empty, however large the others are.
	dims, err = ResolveFill([]int{math.MaxInt, math.MaxInt, 0})
	require.NoError(t, err)
	require.Equal(t, []int{math.MaxInt, math.MaxInt, 0}, dims)
}

func TestNewFillSpec(t *testing.T) {
	spec, err := NewFillSpec([]int{2, 2}, tensors.FromValue([]int64{4}), dtypes.Float32)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, spec.Dims)
	require.Equal(t, float32(4), spec.Value.Value())

	_, err = NewFillSpec([]int{2}, tensors.FromValue([]int32{1, 2}), dtypes.Int32)
	require.ErrorIs(t, err, ErrArity)

	_, err = NewFillSpec([]int{2}, tensors.FromScalar(float32(4.5)), dtypes.Int32)
	require.ErrorIs(t, err, ErrDType)

	_, err = NewFillSpec([]int{-2}, tensors.FromScalar(int32(1)), dtypes.Int32)
	require.ErrorIs(t, err, ErrShapeMismatch)
}
