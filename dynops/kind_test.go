package dynops

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{
		"reshape":            KindReshape,
		"reshape_from_shape": KindReshapeFromShape,
		"Tile":               KindTile,
		"zeros":              KindZeros,
		"ONES":               KindOnes,
		"full":               KindFull,
		"sparse-to-dense":    KindSparseToDense,
	} {
		got, err := ParseKind(name)
		require.NoError(t, err, "ParseKind(%q)", name)
		require.Equal(t, want, got)
	}
	_, err := ParseKind("concat")
	require.Error(t, err)

	require.Len(t, Kinds(), 7)
	require.Equal(t, "Kind(42)", Kind(42).String())
	require.Equal(t, "Full[Int32]", Op{Kind: KindFull, DType: dtypes.Int32}.String())
	require.Equal(t, "Tile", Op{Kind: KindTile, DType: dtypes.Int32}.String())
}

func TestErrorKindOf(t *testing.T) {
	require.Nil(t, ErrorKindOf(nil))
	require.Equal(t, ErrArity, ErrorKindOf(arityf("wrapped %d times", 1)))
	_, err := ResolveFill([]int{-1})
	require.Equal(t, ErrShapeMismatch, ErrorKindOf(err))
}
