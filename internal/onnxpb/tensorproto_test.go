package onnxpb

import (
	"bytes"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDType(t *testing.T) {
	for dt := range dataTypeNames {
		if dt == DataTypeUndefined || dt == DataTypeString {
			_, err := DType(dt)
			require.Error(t, err)
			continue
		}
		dtype, err := DType(dt)
		require.NoError(t, err, "DataType %s", dt)
		back, err := FromDType(dtype)
		require.NoError(t, err)
		require.Equal(t, dt, back)
	}
	_, err := FromDType(dtypes.InvalidDType)
	require.Error(t, err)
	require.Equal(t, "DataType(99)", DataType(99).String())
}

func TestMarshalUnmarshal(t *testing.T) {
	t.Run("RawData", func(t *testing.T) {
		p := &TensorProto{
			Name:     "x",
			Dims:     []int64{2, 0, 3},
			DataType: DataTypeInt64,
			RawData:  []byte{},
		}
		got := must.M1(Unmarshal(p.Marshal()))
		require.Equal(t, "x", got.Name)
		require.Equal(t, []int64{2, 0, 3}, got.Dims)
		require.Equal(t, DataTypeInt64, got.DataType)
		require.NotNil(t, got.RawData)
		require.Empty(t, got.RawData)
	})

	t.Run("TypedData", func(t *testing.T) {
		p := &TensorProto{
			Dims:       []int64{3},
			DataType:   DataTypeInt32,
			Int32Data:  []int32{-1, 0, 7},
			FloatData:  []float32{1.5},
			DoubleData: []float64{-2.25},
			Int64Data:  []int64{-3},
			Uint64Data: []uint64{1 << 63},
		}
		got := must.M1(Unmarshal(p.Marshal()))
		require.Equal(t, []int32{-1, 0, 7}, got.Int32Data)
		require.Equal(t, []float32{1.5}, got.FloatData)
		require.Equal(t, []float64{-2.25}, got.DoubleData)
		require.Equal(t, []int64{-3}, got.Int64Data)
		require.Equal(t, []uint64{1 << 63}, got.Uint64Data)
		require.Nil(t, got.RawData)
	})
}

func TestUnmarshalUnpacked(t *testing.T) {
	var b []byte
	for _, d := range []int64{4, 5} {
		b = protowire.AppendTag(b, fieldDims, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d))
	}
	b = protowire.AppendTag(b, fieldDataType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(DataTypeFloat))
	b = protowire.AppendTag(b, fieldFloatData, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 0x3f800000) // 1.0
	// doc_string
	b = protowire.AppendTag(b, 12, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")
	b = protowire.AppendTag(b, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 0)

	got := must.M1(Unmarshal(b))
	require.Equal(t, []int64{4, 5}, got.Dims)
	require.Equal(t, DataTypeFloat, got.DataType)
	require.Equal(t, []float32{1}, got.FloatData)
}

func TestUnmarshalUnsupported(t *testing.T) {
	t.Run("Segment", func(t *testing.T) {
		var b []byte
		b = protowire.AppendTag(b, fieldSegment, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte{0x08, 0x01})
		got := must.M1(Unmarshal(b))
		require.True(t, got.HasSegment)
	})

	t.Run("ExternalData", func(t *testing.T) {
		var b []byte
		b = protowire.AppendTag(b, fieldDataLocation, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
		got := must.M1(Unmarshal(b))
		require.True(t, got.HasExternalData)
	})

	t.Run("NotEncoded", func(t *testing.T) {
		p := &TensorProto{Name: "x", DataType: DataTypeFloat, HasSegment: true, HasExternalData: true}
		got := must.M1(Unmarshal(p.Marshal()))
		require.False(t, got.HasSegment)
		require.False(t, got.HasExternalData)
	})

	t.Run("StringData", func(t *testing.T) {
		var b []byte
		b = protowire.AppendTag(b, fieldStringData, protowire.BytesType)
		b = protowire.AppendString(b, "abc")
		_, err := Unmarshal(b)
		require.ErrorContains(t, err, "string_data")
	})

	t.Run("Truncated", func(t *testing.T) {
		p := &TensorProto{Name: "truncated", RawData: []byte{1, 2, 3, 4}}
		b := p.Marshal()
		_, err := Unmarshal(b[:len(b)-2])
		require.Error(t, err)
	})
}

func TestUnmarshalAt(t *testing.T) {
	t.Run("RawData", func(t *testing.T) {
		p := &TensorProto{
			Name:     "weights",
			Dims:     []int64{2, 3},
			DataType: DataTypeUint8,
			RawData:  []byte{1, 2, 3, 4, 5, 6},
		}
		b := p.Marshal()
		got, raw, err := UnmarshalAt(bytes.NewReader(b), int64(len(b)))
		require.NoError(t, err)
		require.Equal(t, "weights", got.Name)
		require.Equal(t, []int64{2, 3}, got.Dims)
		require.Equal(t, DataTypeUint8, got.DataType)
		require.Nil(t, got.RawData)
		require.NotNil(t, raw)
		require.Equal(t, p.RawData, b[raw.Offset:raw.Offset+raw.Length])
	})

	t.Run("TypedData", func(t *testing.T) {
		p := &TensorProto{Dims: []int64{2}, DataType: DataTypeInt64, Int64Data: []int64{-1, 1 << 40}}
		b := p.Marshal()
		got, raw, err := UnmarshalAt(bytes.NewReader(b), int64(len(b)))
		require.NoError(t, err)
		require.Nil(t, raw)
		require.Equal(t, p.Int64Data, got.Int64Data)
	})

	t.Run("Truncated", func(t *testing.T) {
		p := &TensorProto{Name: "truncated", RawData: []byte{1, 2, 3, 4}}
		b := p.Marshal()
		_, _, err := UnmarshalAt(bytes.NewReader(b), int64(len(b)-2))
		require.Error(t, err)
	})
}
