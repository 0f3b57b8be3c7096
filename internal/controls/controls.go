// Package controls converts control tensors -- small tensors whose values define a shape,
// repeat counts or coordinates -- to Go ints.
//
// Integer tensors are converted exactly. Float tensors are rounded to the nearest integer,
// and rejected if the value is not within IntegralTolerance of it.
package controls

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// IntegralTolerance is the maximum relative distance from a float control value to its
// nearest integer for the value to be accepted.
const IntegralTolerance = 1e-6

var (
	// ErrNotIntegral is returned when a float control value isn't (close enough to) an integer.
	ErrNotIntegral = errors.New("control value is not an integer")

	// ErrUnsupportedDType is returned for control tensors that are neither integer nor float.
	ErrUnsupportedDType = errors.New("control tensor dtype must be integer or float")
)

// Ints returns the flat values of t as ints.
func Ints(t *tensors.Tensor) (values []int, err error) {
	if t == nil {
		return nil, errors.New("nil control tensor")
	}
	accessErr := t.ConstFlatData(func(flat any) {
		switch flat := flat.(type) {
		case []int8:
			values = signedToInts(flat)
		case []int16:
			values = signedToInts(flat)
		case []int32:
			values = signedToInts(flat)
		case []int64:
			values = signedToInts(flat)
		case []uint8:
			values, err = unsignedToInts(flat)
		case []uint16:
			values, err = unsignedToInts(flat)
		case []uint32:
			values, err = unsignedToInts(flat)
		case []uint64:
			values, err = unsignedToInts(flat)
		case []float32:
			values, err = floatsToInts(flat, RoundFloat32)
		case []float64:
			values, err = floatsToInts(flat, RoundFloat64)
		case []float16.Float16:
			values, err = floatsToInts(flat, func(v float16.Float16) (int, error) { return RoundFloat32(v.Float32()) })
		case []bfloat16.BFloat16:
			values, err = floatsToInts(flat, func(v bfloat16.BFloat16) (int, error) { return RoundFloat32(v.Float32()) })
		default:
			err = errors.Wrapf(ErrUnsupportedDType, "got %s", t.DType())
		}
	})
	if accessErr != nil {
		return nil, errors.WithMessage(accessErr, "reading control tensor")
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}

// FromInts returns a rank-1 Int64 tensor with the given values.
func FromInts(values []int) *tensors.Tensor {
	flat := make([]int64, len(values))
	for ii, v := range values {
		flat[ii] = int64(v)
	}
	return tensors.FromFlatDataAndDimensions(flat, len(flat))
}

func signedToInts[T int8 | int16 | int32 | int64](flat []T) []int {
	values := make([]int, len(flat))
	for ii, v := range flat {
		values[ii] = int(v)
	}
	return values
}

func unsignedToInts[T uint8 | uint16 | uint32 | uint64](flat []T) ([]int, error) {
	values := make([]int, len(flat))
	for ii, v := range flat {
		if uint64(v) > math.MaxInt {
			return nil, errors.Errorf("control value %d at position %d overflows int", v, ii)
		}
		values[ii] = int(v)
	}
	return values, nil
}

func floatsToInts[T any](flat []T, round func(T) (int, error)) ([]int, error) {
	values := make([]int, len(flat))
	for ii, v := range flat {
		var err error
		values[ii], err = round(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "at position %d", ii)
		}
	}
	return values, nil
}

// RoundFloat32 rounds v to the nearest integer, failing if v is not integral within IntegralTolerance.
func RoundFloat32(v float32) (int, error) {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrNotIntegral, "got %g", v)
	}
	r := math32.Round(v)
	if math32.Abs(v-r) > IntegralTolerance*math32.Max(1, math32.Abs(r)) {
		return 0, errors.Wrapf(ErrNotIntegral, "got %g", v)
	}
	if float64(r) >= math.MaxInt64 || float64(r) < math.MinInt64 {
		return 0, errors.Errorf("control value %g overflows int", v)
	}
	return int(r), nil
}

// RoundFloat64 rounds v to the nearest integer, failing if v is not integral within IntegralTolerance.
func RoundFloat64(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrNotIntegral, "got %g", v)
	}
	r := math.Round(v)
	if math.Abs(v-r) > IntegralTolerance*math.Max(1, math.Abs(r)) {
		return 0, errors.Wrapf(ErrNotIntegral, "got %g", v)
	}
	if r >= math.MaxInt64 || r < math.MinInt64 {
		return 0, errors.Errorf("control value %g overflows int", v)
	}
	return int(r), nil
}
