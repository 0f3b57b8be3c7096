package dynops

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/dynshape/internal/onnxpb"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// rawBytes returns a copy of the bytes of t.
func rawBytes(t *tensors.Tensor) []byte {
	var data []byte
	if t.Size() == 0 {
		return data
	}
	must.M(t.ConstBytes(func(b []byte) { data = append(data, b...) }))
	return data
}

func TestMarshalTensor(t *testing.T) {
	values := []*tensors.Tensor{
		iotaTensor(2, 3, 4),
		tensors.FromValue([]int64{-1, math.MaxInt64}),
		tensors.FromValue([][]bool{{true, false}}),
		tensors.FromScalar(math.NaN()),
		tensors.FromValue([]uint32{math.MaxUint32}),
		tensors.FromValue([]complex128{1 - 2i}),
		tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(-0.5)}, 1, 1),
		tensors.FromFlatDataAndDimensions([]bfloat16.BFloat16{bfloat16.FromFloat32(3)}, 1),
		tensors.FromShape(shapes.Make(dtypes.Int8, 3, 0)),
	}
	for _, x := range values {
		t.Run(x.Shape().String(), func(t *testing.T) {
			data := must.M1(MarshalTensor("x", x))
			name, y, err := UnmarshalTensor(data)
			require.NoError(t, err)
			require.Equal(t, "x", name)
			require.True(t, x.Shape().Equal(y.Shape()), "got shape %s, wanted %s", y.Shape(), x.Shape())
			require.Equal(t, rawBytes(x), rawBytes(y))
		})
	}
}

func TestTensorFromProto(t *testing.T) {
	t.Run("TypedData", func(t *testing.T) {
		y := must.M1(TensorFromProto(&onnxpb.TensorProto{
			Dims: []int64{3}, DataType: onnxpb.DataTypeUint8, Int32Data: []int32{1, 2, 255},
		}))
		require.Equal(t, []uint8{1, 2, 255}, y.Value())

		y = must.M1(TensorFromProto(&onnxpb.TensorProto{
			Dims: []int64{2}, DataType: onnxpb.DataTypeFloat16, Int32Data: []int32{int32(float16.Fromfloat32(1).Bits()), 0},
		}))
		require.Equal(t, []float16.Float16{float16.Fromfloat32(1), 0}, y.Value())

		y = must.M1(TensorFromProto(&onnxpb.TensorProto{
			DataType: onnxpb.DataTypeUint32, Uint64Data: []uint64{7},
		}))
		require.Equal(t, uint32(7), y.Value())
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := TensorFromProto(&onnxpb.TensorProto{Dims: []int64{2}, DataType: onnxpb.DataTypeInt64, Int64Data: []int64{1}})
		require.Error(t, err)

		_, err = TensorFromProto(&onnxpb.TensorProto{Dims: []int64{2}, DataType: onnxpb.DataTypeInt64, RawData: []byte{1}})
		require.Error(t, err)

		_, err = TensorFromProto(&onnxpb.TensorProto{DataType: onnxpb.DataTypeFloat, HasExternalData: true})
		require.Error(t, err)

		_, err = TensorFromProto(&onnxpb.TensorProto{DataType: onnxpb.DataTypeString})
		require.Error(t, err)
	})
}

func TestTensorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pb")
	x := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	require.NoError(t, WriteTensorFile(path, "weights", x))
	name, y, err := ReadTensorFile(path)
	require.NoError(t, err)
	require.Equal(t, "weights", name)
	require.Equal(t, x.Value(), y.Value())

	_, _, err = ReadTensorFile(filepath.Join(t.TempDir(), "missing.pb"))
	require.Error(t, err)

	t.Run("Empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.pb")
		x := tensors.FromShape(shapes.Make(dtypes.Int16, 3, 0))
		require.NoError(t, WriteTensorFile(path, "empty", x))
		_, y, err := ReadTensorFile(path)
		require.NoError(t, err)
		require.True(t, x.Shape().Equal(y.Shape()))
	})

	t.Run("TypedData", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "typed.pb")
		proto := &onnxpb.TensorProto{Name: "ids", Dims: []int64{3}, DataType: onnxpb.DataTypeInt64, Int64Data: []int64{7, -1, 3}}
		require.NoError(t, os.WriteFile(path, proto.Marshal(), 0o644))
		name, y, err := ReadTensorFile(path)
		require.NoError(t, err)
		require.Equal(t, "ids", name)
		require.Equal(t, []int64{7, -1, 3}, y.Value())
	})

	t.Run("Errors", func(t *testing.T) {
		dir := t.TempDir()
		for fileName, proto := range map[string]*onnxpb.TensorProto{
			"short.pb":    {Dims: []int64{2}, DataType: onnxpb.DataTypeInt64, RawData: []byte{1, 2, 3}},
			"overflow.pb": {Dims: []int64{1 << 32, 1 << 32}, DataType: onnxpb.DataTypeUint8, RawData: []byte{}},
		} {
			path := filepath.Join(dir, fileName)
			require.NoError(t, os.WriteFile(path, proto.Marshal(), 0o644))
			_, _, err := ReadTensorFile(path)
			require.Error(t, err, fileName)
		}
	})
}
