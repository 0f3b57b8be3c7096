package dynops

import (
	"fmt"
	"slices"

	"github.com/gomlx/dynshape/internal/controls"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// ReshapeCodeKind is the meaning of one value of a reshape control tensor.
type ReshapeCodeKind int

const (
	// CodeExplicit (value > 0) uses the value as the output dimension.
	CodeExplicit ReshapeCodeKind = iota

	// CodeCopyOriginal (value 0) copies the original dimension at the cursor.
	CodeCopyOriginal

	// CodeInfer (value -1) is computed so the total number of elements is preserved.
	// At most one per reshape.
	CodeInfer

	// CodeMergeWithNext (value -3) multiplies the original dimension at the cursor by the next one.
	CodeMergeWithNext
)

// Values of the sentinel reshape codes.
const (
	ReshapeValueCopy  = 0
	ReshapeValueInfer = -1
	ReshapeValueMerge = -3
)

// ReshapeCode is one parsed value of a reshape control tensor.
type ReshapeCode struct {
	Kind ReshapeCodeKind

	// Dim is the literal dimension, only used for CodeExplicit.
	Dim int
}

// String implements fmt.Stringer.
func (c ReshapeCode) String() string {
	switch c.Kind {
	case CodeExplicit:
		return fmt.Sprintf("%d", c.Dim)
	case CodeCopyOriginal:
		return "Copy"
	case CodeInfer:
		return "Infer"
	case CodeMergeWithNext:
		return "Merge"
	default:
		return fmt.Sprintf("ReshapeCode(%d)", int(c.Kind))
	}
}

// ParseReshapeCodes converts the values of a reshape control tensor to reshape codes.
//
// It fails with ErrInvalidControlValue for negative values other than -1 and -3, or for more than one -1.
func ParseReshapeCodes(values []int) ([]ReshapeCode, error) {
	codes := make([]ReshapeCode, len(values))
	inferPosition := -1
	for ii, v := range values {
		switch {
		case v > 0:
			codes[ii] = ReshapeCode{Kind: CodeExplicit, Dim: v}
		case v == ReshapeValueCopy:
			codes[ii] = ReshapeCode{Kind: CodeCopyOriginal}
		case v == ReshapeValueInfer:
			if inferPosition >= 0 {
				return nil, invalidControlf("reshape codes %v have more than one -1 (positions %d and %d)", values, inferPosition, ii)
			}
			inferPosition = ii
			codes[ii] = ReshapeCode{Kind: CodeInfer}
		case v == ReshapeValueMerge:
			codes[ii] = ReshapeCode{Kind: CodeMergeWithNext}
		default:
			return nil, invalidControlf("reshape codes %v have unknown code %d at position %d", values, v, ii)
		}
	}
	return codes, nil
}

// ResolveReshape returns the output dimensions of reshaping a tensor with originalDims
// according to the reshape codes in controlValues.
//
// The codes are read left to right, with a cursor on the original dimensions:
//
//   - n > 0: output dimension n; the cursor advances by one.
//   - 0: copies the original dimension at the cursor, which advances by one.
//     It is an error if the cursor is past the original rank.
//   - -1: inferred so that the number of elements is preserved; the cursor advances by one.
//   - -3: the product of the original dimensions at the cursor and the next one; the cursor advances by two.
//
// Without a -1 the product of the resolved dimensions must match the original number of elements.
func ResolveReshape(originalDims, controlValues []int) ([]int, error) {
	codes, err := ParseReshapeCodes(controlValues)
	if err != nil {
		return nil, err
	}
	outputDims := make([]int, 0, len(codes))
	inferAxis := -1
	cursor := 0
	for position, code := range codes {
		switch code.Kind {
		case CodeExplicit:
			outputDims = append(outputDims, code.Dim)
			cursor++
		case CodeCopyOriginal:
			if cursor >= len(originalDims) {
				return nil, shapeMismatchf("Reshape(%v, %v): code 0 at position %d has no original dimension to copy",
					originalDims, controlValues, position)
			}
			outputDims = append(outputDims, originalDims[cursor])
			cursor++
		case CodeInfer:
			inferAxis = len(outputDims)
			outputDims = append(outputDims, 1)
			cursor++
		case CodeMergeWithNext:
			if cursor+1 >= len(originalDims) {
				return nil, shapeMismatchf("Reshape(%v, %v): code -3 at position %d needs two original dimensions, but only %d are left",
					originalDims, controlValues, position, max(len(originalDims)-cursor, 0))
			}
			merged, err := checkedSize(originalDims[cursor : cursor+2])
			if err != nil {
				return nil, errors.WithMessagef(err, "Reshape(%v, %v): code -3 at position %d", originalDims, controlValues, position)
			}
			outputDims = append(outputDims, merged)
			cursor += 2
		}
	}

	total := Size(originalDims)
	if inferAxis >= 0 {
		others := slices.Delete(slices.Clone(outputDims), inferAxis, inferAxis+1)
		known, err := checkedSize(others)
		if err != nil {
			return nil, errors.WithMessagef(err, "Reshape(%v, %v)", originalDims, controlValues)
		}
		if known == 0 {
			return nil, shapeMismatchf("Reshape(%v, %v): can't infer dimension when the other dimensions %v have no elements",
				originalDims, controlValues, outputDims)
		}
		if total%known != 0 {
			return nil, shapeMismatchf("Reshape(%v, %v): %d elements are not divisible by %d",
				originalDims, controlValues, total, known)
		}
		outputDims[inferAxis] = total / known
		return outputDims, nil
	}
	got, err := checkedSize(outputDims)
	if err != nil {
		return nil, errors.WithMessagef(err, "Reshape(%v, %v)", originalDims, controlValues)
	}
	if got != total {
		return nil, shapeMismatchf("Reshape(%v, %v): resolved dimensions %v have %d elements, but the input has %d",
			originalDims, controlValues, outputDims, got, total)
	}
	return outputDims, nil
}

// ShapeOf returns the dimensions of t as a rank-1 Int64 tensor, suitable as the control
// tensor of a Reshape.
func ShapeOf(t *tensors.Tensor) *tensors.Tensor {
	return controls.FromInts(t.Shape().Dimensions)
}
