package dynops

import (
	"github.com/pkg/errors"
)

// Errors returned by the operators. All of them are local validation failures, detected
// before the output buffer is allocated. Use errors.Is to test for them.
var (
	// ErrShapeMismatch is returned when the resolved element count disagrees with the input's,
	// or a dimension or coordinate is negative or out of range.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidControlValue is returned for control values that have no meaning: repeated
	// inferred reshape dimensions, unknown reshape codes, negative or fractional repeats.
	ErrInvalidControlValue = errors.New("invalid control value")

	// ErrArity is returned when the number of inputs, or the rank or length of a control tensor,
	// doesn't match what the operator requires.
	ErrArity = errors.New("arity mismatch")

	// ErrDType is returned when a value can't be represented in the requested dtype.
	ErrDType = errors.New("dtype mismatch")
)

var errorKinds = []error{ErrShapeMismatch, ErrInvalidControlValue, ErrArity, ErrDType}

// ErrorKindOf returns which of ErrShapeMismatch, ErrInvalidControlValue, ErrArity or ErrDType
// err wraps, or nil if none.
func ErrorKindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func shapeMismatchf(format string, args ...any) error {
	return errors.Wrapf(ErrShapeMismatch, format, args...)
}

func invalidControlf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidControlValue, format, args...)
}

func arityf(format string, args ...any) error {
	return errors.Wrapf(ErrArity, format, args...)
}

func dtypef(format string, args ...any) error {
	return errors.Wrapf(ErrDType, format, args...)
}
