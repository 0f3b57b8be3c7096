package dynops

import (
	"fmt"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// Kind of operator. The set is closed: adding an operator means adding a Kind and its
// cases in InferShape and Execute.
type Kind int

const (
	KindInvalid Kind = iota

	// KindReshape takes (data, newShape): newShape values are reshape codes, see ResolveReshape.
	KindReshape

	// KindReshapeFromShape takes (data, shapeSource): data is reshaped to the shape of shapeSource.
	KindReshapeFromShape

	// KindTile takes (data, reps), see ResolveTile.
	KindTile

	// KindZeros takes (shape) and requires Op.DType.
	KindZeros

	// KindOnes takes (shape) and requires Op.DType.
	KindOnes

	// KindFull takes (fillValue, shape). Op.DType defaults to the dtype of fillValue.
	KindFull

	// KindSparseToDense takes (indices, values, [defaultValue], outputShape).
	// Op.DType defaults to the dtype of values.
	KindSparseToDense
)

var kindNames = [...]string{
	KindInvalid:          "Invalid",
	KindReshape:          "Reshape",
	KindReshapeFromShape: "ReshapeFromShape",
	KindTile:             "Tile",
	KindZeros:            "Zeros",
	KindOnes:             "Ones",
	KindFull:             "Full",
	KindSparseToDense:    "SparseToDense",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns all valid operator kinds.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames)-1)
	for k := KindReshape; int(k) < len(kindNames); k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseKind converts a name to a Kind. It is case-insensitive and ignores underscores and dashes,
// so "sparse_to_dense" and "SparseToDense" are the same.
func ParseKind(name string) (Kind, error) {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(name))
	for _, k := range Kinds() {
		if strings.ToLower(k.String()) == normalized {
			return k, nil
		}
	}
	return KindInvalid, errors.Errorf("unknown operator %q, valid operators are %v", name, Kinds())
}

// Op describes one operator instance.
type Op struct {
	Kind Kind

	// DType of the output, for the operators that create new values (Zeros, Ones, Full, SparseToDense).
	// Ignored by the others.
	DType dtypes.DType
}

// String implements fmt.Stringer.
func (op Op) String() string {
	switch op.Kind {
	case KindZeros, KindOnes, KindFull, KindSparseToDense:
		if op.DType != dtypes.InvalidDType {
			return fmt.Sprintf("%s[%s]", op.Kind, op.DType)
		}
	}
	return op.Kind.String()
}
