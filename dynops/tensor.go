package dynops

import (
	"io"
	"os"

	"github.com/gomlx/dynshape/internal/onnxpb"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/mmap"
)

// Shape converts the data type and dimensions of an ONNX TensorProto to a shapes.Shape.
func Shape(proto *onnxpb.TensorProto) (shape shapes.Shape, err error) {
	if proto == nil {
		err = errors.New("TensorProto is nil")
		return
	}
	shape.DType, err = onnxpb.DType(proto.DataType)
	if err != nil {
		return
	}
	shape.Dimensions = make([]int, len(proto.Dims))
	for axis, dim := range proto.Dims {
		if dim < 0 {
			err = errors.Errorf("tensor %q has negative dimension %d at axis %d", proto.Name, dim, axis)
			return
		}
		shape.Dimensions[axis] = int(dim)
	}
	if shape, err = checkedShape(shape.DType, shape.Dimensions); err != nil {
		err = errors.WithMessagef(err, "tensor %q", proto.Name)
		return
	}
	if proto.HasSegment {
		err = errors.Errorf("tensor %q: segmented tensors are not supported", proto.Name)
		return
	}
	if proto.HasExternalData {
		err = errors.Errorf("tensor %q: external data is not supported", proto.Name)
		return
	}
	return
}

// fromTypedData creates a tensor from one of the typed data fields of a TensorProto,
// converting each value with convert.
func fromTypedData[S any, T dtypes.Supported](proto *onnxpb.TensorProto, data []S, shape shapes.Shape, convert func(S) T) (*tensors.Tensor, error) {
	if len(data) != shape.Size() {
		return nil, errors.Errorf("tensor %q shaped %s has size %d, but %d values were given",
			proto.Name, shape, shape.Size(), len(data))
	}
	flat := make([]T, len(data))
	for ii, v := range data {
		flat[ii] = convert(v)
	}
	return tensors.FromFlatDataAndDimensions(flat, shape.Dimensions...), nil
}

func identity[T any](v T) T { return v }

func checkRawDataSize(proto *onnxpb.TensorProto, shape shapes.Shape, length int64) error {
	if want := shape.Memory(); length < 0 || uintptr(length) != want {
		return errors.Errorf("tensor %q shaped %s uses %d bytes, but %d bytes of raw data were given",
			proto.Name, shape, want, length)
	}
	return nil
}

// TensorFromProto converts an ONNX TensorProto to a tensor.
//
// The data may be given as raw_data (little-endian) or in the typed field ONNX uses for the
// data type.
func TensorFromProto(proto *onnxpb.TensorProto) (t *tensors.Tensor, err error) {
	shape, err := Shape(proto)
	if err != nil {
		return nil, errors.WithMessagef(err, "while parsing tensor %q", proto.Name)
	}

	if proto.RawData != nil {
		if err = checkRawDataSize(proto, shape, int64(len(proto.RawData))); err != nil {
			return nil, err
		}
		t = tensors.FromShape(shape)
		if shape.Size() > 0 {
			err = t.MutableBytes(func(data []byte) {
				copy(data, proto.RawData)
			})
		}
		return t, err
	}

	switch shape.DType {
	case dtypes.Float32:
		return fromTypedData(proto, proto.FloatData, shape, identity[float32])
	case dtypes.Float64:
		return fromTypedData(proto, proto.DoubleData, shape, identity[float64])
	case dtypes.Int64:
		return fromTypedData(proto, proto.Int64Data, shape, identity[int64])
	case dtypes.Int32:
		return fromTypedData(proto, proto.Int32Data, shape, identity[int32])
	case dtypes.Int16:
		return fromTypedData(proto, proto.Int32Data, shape, func(v int32) int16 { return int16(v) })
	case dtypes.Int8:
		return fromTypedData(proto, proto.Int32Data, shape, func(v int32) int8 { return int8(v) })
	case dtypes.Uint16:
		return fromTypedData(proto, proto.Int32Data, shape, func(v int32) uint16 { return uint16(v) })
	case dtypes.Uint8:
		return fromTypedData(proto, proto.Int32Data, shape, func(v int32) uint8 { return uint8(v) })
	case dtypes.Bool:
		return fromTypedData(proto, proto.Int32Data, shape, func(v int32) bool { return v != 0 })
	case dtypes.Float16:
		return fromTypedData(proto, proto.Int32Data, shape, func(v int32) float16.Float16 { return float16.Frombits(uint16(v)) })
	case dtypes.BFloat16:
		return fromTypedData(proto, proto.Int32Data, shape, func(v int32) bfloat16.BFloat16 { return bfloat16.FromBits(uint16(v)) })
	case dtypes.Uint32:
		return fromTypedData(proto, proto.Uint64Data, shape, func(v uint64) uint32 { return uint32(v) })
	case dtypes.Uint64:
		return fromTypedData(proto, proto.Uint64Data, shape, identity[uint64])
	}
	return nil, errors.Errorf("tensor %q shaped %s has no supported format of data", proto.Name, shape)
}

// TensorToProto converts t to an ONNX TensorProto, with the data in raw_data.
func TensorToProto(name string, t *tensors.Tensor) (*onnxpb.TensorProto, error) {
	shape := t.Shape()
	dataType, err := onnxpb.FromDType(shape.DType)
	if err != nil {
		return nil, errors.WithMessagef(err, "while converting tensor %q", name)
	}
	proto := &onnxpb.TensorProto{
		Name:     name,
		Dims:     make([]int64, shape.Rank()),
		DataType: dataType,
		RawData:  []byte{},
	}
	for axis, dim := range shape.Dimensions {
		proto.Dims[axis] = int64(dim)
	}
	if shape.Size() > 0 {
		err = t.ConstBytes(func(data []byte) {
			proto.RawData = append(make([]byte, 0, len(data)), data...)
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "while reading tensor %q", name)
		}
	}
	return proto, nil
}

// MarshalTensor serializes t as an ONNX TensorProto.
// UnmarshalTensor restores the exact same dtype, dimensions and bytes.
func MarshalTensor(name string, t *tensors.Tensor) ([]byte, error) {
	proto, err := TensorToProto(name, t)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(), nil
}

// UnmarshalTensor parses a serialized ONNX TensorProto, returning its name and value.
func UnmarshalTensor(data []byte) (name string, t *tensors.Tensor, err error) {
	proto, err := onnxpb.Unmarshal(data)
	if err != nil {
		return "", nil, err
	}
	t, err = TensorFromProto(proto)
	if err != nil {
		return "", nil, err
	}
	return proto.Name, t, nil
}

// WriteTensorFile writes t serialized as an ONNX TensorProto to path.
func WriteTensorFile(path, name string, t *tensors.Tensor) error {
	data, err := MarshalTensor(name, t)
	if err != nil {
		return err
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write tensor %q to %q", name, path)
	}
	return nil
}

// ReadTensorFile reads a tensor file written by WriteTensorFile, or any serialized ONNX TensorProto
// that holds its data inline. The file is memory-mapped, and raw data is copied from the mapping
// straight into the tensor.
func ReadTensorFile(path string) (name string, t *tensors.Tensor, err error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return "", nil, errors.Wrapf(err, "failed to mmap tensor file %q", path)
	}
	defer func() { _ = reader.Close() }()

	proto, raw, err := onnxpb.UnmarshalAt(reader, int64(reader.Len()))
	if err == nil {
		if raw == nil {
			t, err = TensorFromProto(proto)
		} else {
			t, err = tensorFromSection(proto, reader, *raw)
		}
	}
	if err != nil {
		return "", nil, errors.WithMessagef(err, "while parsing tensor file %q", path)
	}
	return proto.Name, t, nil
}

// tensorFromSection creates the tensor described by proto, reading its raw data from the section
// of r directly into the tensor's buffer.
func tensorFromSection(proto *onnxpb.TensorProto, r io.ReaderAt, raw onnxpb.Section) (*tensors.Tensor, error) {
	shape, err := Shape(proto)
	if err != nil {
		return nil, errors.WithMessagef(err, "while parsing tensor %q", proto.Name)
	}
	if err = checkRawDataSize(proto, shape, raw.Length); err != nil {
		return nil, err
	}
	t := tensors.FromShape(shape)
	if shape.Size() == 0 {
		return t, nil
	}
	var readErr error
	err = t.MutableBytes(func(data []byte) {
		_, readErr = r.ReadAt(data, raw.Offset)
	})
	if err == nil && readErr != nil {
		err = errors.Wrapf(readErr, "failed to read raw data of tensor %q", proto.Name)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
