package dynops

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Largest finite values of the reduced precision floats.
const (
	maxFloat16  = 65504
	maxBFloat16 = 3.3895313892515355e38
)

// CastTensor returns t converted to dtype, or t itself if it already has that dtype.
//
// The conversion is exact or fails with ErrDType:
//
//   - Integer targets require integral values within range.
//   - Bool targets require 0 or 1.
//   - Float targets require values within the finite range of the target; NaN and infinities
//     are kept when the source is already a float.
//   - Complex values only convert to complex targets.
func CastTensor(t *tensors.Tensor, dtype dtypes.DType) (*tensors.Tensor, error) {
	if !isCastable(dtype) {
		return nil, dtypef("can't cast to dtype %s", dtype)
	}
	if t.DType() == dtype {
		return t, nil
	}
	var src []number
	var err error
	accessErr := t.ConstFlatData(func(flat any) {
		src, err = numbersOf(flat)
	})
	if accessErr != nil {
		return nil, errors.WithMessage(accessErr, "reading tensor to cast")
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "casting %s to %s", t.Shape(), dtype)
	}

	out := tensors.FromShape(shapes.Make(dtype, t.Shape().Dimensions...))
	accessErr = out.MutableFlatData(func(flat any) {
		err = setNumbers(flat, src)
	})
	if accessErr != nil {
		return nil, errors.WithMessage(accessErr, "writing cast tensor")
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "casting %s to %s", t.Shape(), dtype)
	}
	return out, nil
}

func isCastable(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Bool,
		dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
		dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
		dtypes.Complex64, dtypes.Complex128:
		return true
	}
	return false
}

type numberKind int

const (
	numberSigned numberKind = iota
	numberUnsigned
	numberFloat
	numberBool
	numberComplex
)

// number holds one element of any supported dtype, without loss.
type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
	c    complex128
}

func signedNumbers[T int8 | int16 | int32 | int64 | int](flat []T) []number {
	nums := make([]number, len(flat))
	for ii, v := range flat {
		nums[ii] = number{kind: numberSigned, i: int64(v)}
	}
	return nums
}

func unsignedNumbers[T uint8 | uint16 | uint32 | uint64](flat []T) []number {
	nums := make([]number, len(flat))
	for ii, v := range flat {
		nums[ii] = number{kind: numberUnsigned, u: uint64(v)}
	}
	return nums
}

func floatNumbers[T any](flat []T, toFloat64 func(T) float64) []number {
	nums := make([]number, len(flat))
	for ii, v := range flat {
		nums[ii] = number{kind: numberFloat, f: toFloat64(v)}
	}
	return nums
}

func numbersOf(flat any) ([]number, error) {
	switch flat := flat.(type) {
	case []int8:
		return signedNumbers(flat), nil
	case []int16:
		return signedNumbers(flat), nil
	case []int32:
		return signedNumbers(flat), nil
	case []int64:
		return signedNumbers(flat), nil
	case []int:
		return signedNumbers(flat), nil
	case []uint8:
		return unsignedNumbers(flat), nil
	case []uint16:
		return unsignedNumbers(flat), nil
	case []uint32:
		return unsignedNumbers(flat), nil
	case []uint64:
		return unsignedNumbers(flat), nil
	case []float32:
		return floatNumbers(flat, func(v float32) float64 { return float64(v) }), nil
	case []float64:
		return floatNumbers(flat, func(v float64) float64 { return v }), nil
	case []float16.Float16:
		return floatNumbers(flat, func(v float16.Float16) float64 { return float64(v.Float32()) }), nil
	case []bfloat16.BFloat16:
		return floatNumbers(flat, func(v bfloat16.BFloat16) float64 { return float64(v.Float32()) }), nil
	case []bool:
		nums := make([]number, len(flat))
		for ii, v := range flat {
			if v {
				nums[ii] = number{kind: numberBool, u: 1}
			} else {
				nums[ii] = number{kind: numberBool}
			}
		}
		return nums, nil
	case []complex64:
		nums := make([]number, len(flat))
		for ii, v := range flat {
			nums[ii] = number{kind: numberComplex, c: complex128(v)}
		}
		return nums, nil
	case []complex128:
		nums := make([]number, len(flat))
		for ii, v := range flat {
			nums[ii] = number{kind: numberComplex, c: v}
		}
		return nums, nil
	default:
		return nil, dtypef("unsupported source data type %T", flat)
	}
}

// String implements fmt.Stringer, for error messages.
func (n number) String() string {
	switch n.kind {
	case numberSigned:
		return fmt.Sprintf("%d", n.i)
	case numberUnsigned, numberBool:
		return fmt.Sprintf("%d", n.u)
	case numberFloat:
		return fmt.Sprintf("%g", n.f)
	default:
		return fmt.Sprintf("%g", n.c)
	}
}

// asInt returns n as an integer in the range [lo, hi].
func (n number) asInt(lo, hi int64) (int64, error) {
	switch n.kind {
	case numberSigned:
		if n.i < lo || n.i > hi {
			return 0, dtypef("value %s out of range [%d, %d]", n, lo, hi)
		}
		return n.i, nil
	case numberUnsigned, numberBool:
		if n.u > uint64(hi) {
			return 0, dtypef("value %s out of range [%d, %d]", n, lo, hi)
		}
		return int64(n.u), nil
	case numberFloat:
		if n.f != math.Trunc(n.f) || math.IsInf(n.f, 0) {
			return 0, dtypef("value %s is not an integer", n)
		}
		// float64(hi)+1 is exact for every hi used, including 2^63 for MaxInt64.
		if n.f < float64(lo) || n.f >= float64(hi)+1 {
			return 0, dtypef("value %s out of range [%d, %d]", n, lo, hi)
		}
		return int64(n.f), nil
	default:
		return 0, dtypef("complex value %s can't be converted to an integer", n)
	}
}

// asUint returns n as an unsigned integer in the range [0, hi].
func (n number) asUint(hi uint64) (uint64, error) {
	switch n.kind {
	case numberSigned:
		if n.i < 0 || uint64(n.i) > hi {
			return 0, dtypef("value %s out of range [0, %d]", n, hi)
		}
		return uint64(n.i), nil
	case numberUnsigned, numberBool:
		if n.u > hi {
			return 0, dtypef("value %s out of range [0, %d]", n, hi)
		}
		return n.u, nil
	case numberFloat:
		if n.f != math.Trunc(n.f) || math.IsInf(n.f, 0) {
			return 0, dtypef("value %s is not an integer", n)
		}
		if n.f < 0 || n.f >= float64(hi)+1 {
			return 0, dtypef("value %s out of range [0, %d]", n, hi)
		}
		return uint64(n.f), nil
	default:
		return 0, dtypef("complex value %s can't be converted to an integer", n)
	}
}

// asFloat returns n as a float whose magnitude is at most maxFinite, unless n is already
// a non-finite float.
func (n number) asFloat(maxFinite float64) (float64, error) {
	var f float64
	switch n.kind {
	case numberSigned:
		f = float64(n.i)
	case numberUnsigned, numberBool:
		f = float64(n.u)
	case numberFloat:
		if math.IsNaN(n.f) || math.IsInf(n.f, 0) {
			return n.f, nil
		}
		f = n.f
	default:
		return 0, dtypef("complex value %s can't be converted to a real number", n)
	}
	if math.Abs(f) > maxFinite {
		return 0, dtypef("value %s overflows, maximum magnitude is %g", n, maxFinite)
	}
	return f, nil
}

func (n number) asBool() (bool, error) {
	v, err := n.asUint(1)
	if err != nil {
		return false, dtypef("value %s is not a boolean (0 or 1)", n)
	}
	return v == 1, nil
}

func (n number) asComplex() (complex128, error) {
	if n.kind == numberComplex {
		return n.c, nil
	}
	f, err := n.asFloat(math.MaxFloat64)
	if err != nil {
		return 0, err
	}
	return complex(f, 0), nil
}

func castInto[T any](dst []T, src []number, convert func(number) (T, error)) error {
	for ii, n := range src {
		v, err := convert(n)
		if err != nil {
			return errors.WithMessagef(err, "element #%d", ii)
		}
		dst[ii] = v
	}
	return nil
}

func toSigned[T int8 | int16 | int32 | int64](lo, hi int64) func(number) (T, error) {
	return func(n number) (T, error) {
		v, err := n.asInt(lo, hi)
		return T(v), err
	}
}

func toUnsigned[T uint8 | uint16 | uint32 | uint64](hi uint64) func(number) (T, error) {
	return func(n number) (T, error) {
		v, err := n.asUint(hi)
		return T(v), err
	}
}

func toFloat[T float32 | float64](maxFinite float64) func(number) (T, error) {
	return func(n number) (T, error) {
		v, err := n.asFloat(maxFinite)
		return T(v), err
	}
}

func setNumbers(flat any, src []number) error {
	switch flat := flat.(type) {
	case []int8:
		return castInto(flat, src, toSigned[int8](math.MinInt8, math.MaxInt8))
	case []int16:
		return castInto(flat, src, toSigned[int16](math.MinInt16, math.MaxInt16))
	case []int32:
		return castInto(flat, src, toSigned[int32](math.MinInt32, math.MaxInt32))
	case []int64:
		return castInto(flat, src, toSigned[int64](math.MinInt64, math.MaxInt64))
	case []uint8:
		return castInto(flat, src, toUnsigned[uint8](math.MaxUint8))
	case []uint16:
		return castInto(flat, src, toUnsigned[uint16](math.MaxUint16))
	case []uint32:
		return castInto(flat, src, toUnsigned[uint32](math.MaxUint32))
	case []uint64:
		return castInto(flat, src, toUnsigned[uint64](math.MaxUint64))
	case []float32:
		return castInto(flat, src, toFloat[float32](math.MaxFloat32))
	case []float64:
		return castInto(flat, src, toFloat[float64](math.MaxFloat64))
	case []float16.Float16:
		return castInto(flat, src, func(n number) (float16.Float16, error) {
			v, err := n.asFloat(maxFloat16)
			return float16.Fromfloat32(float32(v)), err
		})
	case []bfloat16.BFloat16:
		return castInto(flat, src, func(n number) (bfloat16.BFloat16, error) {
			v, err := n.asFloat(maxBFloat16)
			return bfloat16.FromFloat64(v), err
		})
	case []bool:
		return castInto(flat, src, number.asBool)
	case []complex64:
		return castInto(flat, src, func(n number) (complex64, error) {
			c, err := n.asComplex()
			if err == nil && !cmplx.IsInf(c) && !cmplx.IsNaN(c) &&
				(math.Abs(real(c)) > math.MaxFloat32 || math.Abs(imag(c)) > math.MaxFloat32) {
				err = dtypef("value %s overflows complex64", n)
			}
			return complex64(c), err
		})
	case []complex128:
		return castInto(flat, src, number.asComplex)
	default:
		return dtypef("unsupported target data type %T", flat)
	}
}
