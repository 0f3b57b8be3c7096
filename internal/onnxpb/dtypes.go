// Package onnxpb encodes and decodes ONNX TensorProto messages, the format used to
// store and exchange concrete tensors.
//
// Only the fields needed to carry a dense tensor are handled: dims, data_type, name,
// raw_data and the typed repeated data fields. Unknown fields are skipped when decoding.
package onnxpb

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// DataType mirrors the ONNX TensorProto.DataType enum.
type DataType int32

const (
	DataTypeUndefined  DataType = 0
	DataTypeFloat      DataType = 1
	DataTypeUint8      DataType = 2
	DataTypeInt8       DataType = 3
	DataTypeUint16     DataType = 4
	DataTypeInt16      DataType = 5
	DataTypeInt32      DataType = 6
	DataTypeInt64      DataType = 7
	DataTypeString     DataType = 8
	DataTypeBool       DataType = 9
	DataTypeFloat16    DataType = 10
	DataTypeDouble     DataType = 11
	DataTypeUint32     DataType = 12
	DataTypeUint64     DataType = 13
	DataTypeComplex64  DataType = 14
	DataTypeComplex128 DataType = 15
	DataTypeBFloat16   DataType = 16
)

var dataTypeNames = map[DataType]string{
	DataTypeUndefined:  "UNDEFINED",
	DataTypeFloat:      "FLOAT",
	DataTypeUint8:      "UINT8",
	DataTypeInt8:       "INT8",
	DataTypeUint16:     "UINT16",
	DataTypeInt16:      "INT16",
	DataTypeInt32:      "INT32",
	DataTypeInt64:      "INT64",
	DataTypeString:     "STRING",
	DataTypeBool:       "BOOL",
	DataTypeFloat16:    "FLOAT16",
	DataTypeDouble:     "DOUBLE",
	DataTypeUint32:     "UINT32",
	DataTypeUint64:     "UINT64",
	DataTypeComplex64:  "COMPLEX64",
	DataTypeComplex128: "COMPLEX128",
	DataTypeBFloat16:   "BFLOAT16",
}

// String implements fmt.Stringer.
func (dt DataType) String() string {
	if name, found := dataTypeNames[dt]; found {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int32(dt))
}

// DType converts an ONNX data type to a GoMLX data type.
func DType(dt DataType) (dtypes.DType, error) {
	switch dt {
	case DataTypeFloat:
		return dtypes.Float32, nil
	case DataTypeFloat16:
		return dtypes.Float16, nil
	case DataTypeBFloat16:
		return dtypes.BFloat16, nil
	case DataTypeDouble:
		return dtypes.Float64, nil
	case DataTypeInt32:
		return dtypes.Int32, nil
	case DataTypeInt64:
		return dtypes.Int64, nil
	case DataTypeUint8:
		return dtypes.Uint8, nil
	case DataTypeInt8:
		return dtypes.Int8, nil
	case DataTypeInt16:
		return dtypes.Int16, nil
	case DataTypeUint16:
		return dtypes.Uint16, nil
	case DataTypeUint32:
		return dtypes.Uint32, nil
	case DataTypeUint64:
		return dtypes.Uint64, nil
	case DataTypeBool:
		return dtypes.Bool, nil
	case DataTypeComplex64:
		return dtypes.Complex64, nil
	case DataTypeComplex128:
		return dtypes.Complex128, nil
	default:
		return dtypes.InvalidDType, errors.Errorf("unsupported/unknown ONNX data type %s", dt)
	}
}

// FromDType converts a GoMLX data type to the ONNX data type.
func FromDType(dtype dtypes.DType) (DataType, error) {
	switch dtype {
	case dtypes.Float32:
		return DataTypeFloat, nil
	case dtypes.Float16:
		return DataTypeFloat16, nil
	case dtypes.BFloat16:
		return DataTypeBFloat16, nil
	case dtypes.Float64:
		return DataTypeDouble, nil
	case dtypes.Int32:
		return DataTypeInt32, nil
	case dtypes.Int64:
		return DataTypeInt64, nil
	case dtypes.Uint8:
		return DataTypeUint8, nil
	case dtypes.Int8:
		return DataTypeInt8, nil
	case dtypes.Int16:
		return DataTypeInt16, nil
	case dtypes.Uint16:
		return DataTypeUint16, nil
	case dtypes.Uint32:
		return DataTypeUint32, nil
	case dtypes.Uint64:
		return DataTypeUint64, nil
	case dtypes.Bool:
		return DataTypeBool, nil
	case dtypes.Complex64:
		return DataTypeComplex64, nil
	case dtypes.Complex128:
		return DataTypeComplex128, nil
	default:
		return DataTypeUndefined, errors.Errorf("dtype %s has no ONNX equivalent", dtype)
	}
}
