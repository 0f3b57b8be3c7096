package onnxpb

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of onnx.TensorProto.
const (
	fieldDims         protowire.Number = 1
	fieldDataType     protowire.Number = 2
	fieldSegment      protowire.Number = 3
	fieldFloatData    protowire.Number = 4
	fieldInt32Data    protowire.Number = 5
	fieldStringData   protowire.Number = 6
	fieldInt64Data    protowire.Number = 7
	fieldName         protowire.Number = 8
	fieldRawData      protowire.Number = 9
	fieldDoubleData   protowire.Number = 10
	fieldUint64Data   protowire.Number = 11
	fieldExternalData protowire.Number = 13
	fieldDataLocation protowire.Number = 14
)

// TensorProto holds the dense-tensor subset of onnx.TensorProto.
//
// segment, external_data and data_location are only detected by Unmarshal (HasSegment and
// HasExternalData) and string_data is rejected: none of them is ever encoded by Marshal.
//
// At most one of the data fields is expected to be set. The typed fields follow the ONNX
// conventions: Int32Data also carries int8/int16/uint8/uint16/bool/float16/bfloat16 values,
// Uint64Data carries uint32/uint64.
type TensorProto struct {
	Name     string
	Dims     []int64
	DataType DataType
	RawData  []byte

	FloatData  []float32
	Int32Data  []int32
	Int64Data  []int64
	DoubleData []float64
	Uint64Data []uint64

	// HasSegment and HasExternalData flag features present in the message that aren't supported.
	HasSegment      bool
	HasExternalData bool
}

// Marshal serializes the proto in the protobuf wire format. Repeated numeric fields are packed.
// HasSegment and HasExternalData are not encoded.
func (p *TensorProto) Marshal() []byte {
	var b []byte
	if len(p.Dims) > 0 {
		var packed []byte
		for _, d := range p.Dims {
			packed = protowire.AppendVarint(packed, uint64(d))
		}
		b = protowire.AppendTag(b, fieldDims, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if p.DataType != DataTypeUndefined {
		b = protowire.AppendTag(b, fieldDataType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(p.DataType)))
	}
	if len(p.FloatData) > 0 {
		var packed []byte
		for _, v := range p.FloatData {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		b = protowire.AppendTag(b, fieldFloatData, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(p.Int32Data) > 0 {
		var packed []byte
		for _, v := range p.Int32Data {
			packed = protowire.AppendVarint(packed, uint64(int64(v)))
		}
		b = protowire.AppendTag(b, fieldInt32Data, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(p.Int64Data) > 0 {
		var packed []byte
		for _, v := range p.Int64Data {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = protowire.AppendTag(b, fieldInt64Data, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if p.Name != "" {
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, p.Name)
	}
	if p.RawData != nil {
		b = protowire.AppendTag(b, fieldRawData, protowire.BytesType)
		b = protowire.AppendBytes(b, p.RawData)
	}
	if len(p.DoubleData) > 0 {
		var packed []byte
		for _, v := range p.DoubleData {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		b = protowire.AppendTag(b, fieldDoubleData, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(p.Uint64Data) > 0 {
		var packed []byte
		for _, v := range p.Uint64Data {
			packed = protowire.AppendVarint(packed, v)
		}
		b = protowire.AppendTag(b, fieldUint64Data, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

// Unmarshal parses a serialized onnx.TensorProto.
//
// Both packed and unpacked encodings of repeated fields are accepted.
func Unmarshal(b []byte) (*TensorProto, error) {
	p := &TensorProto{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "parsing TensorProto field tag")
		}
		b = b[n:]

		var err error
		switch num {
		case fieldDims:
			err = consumeRepeatedVarint(&b, typ, func(v uint64) { p.Dims = append(p.Dims, int64(v)) })
		case fieldDataType:
			err = consumeRepeatedVarint(&b, typ, func(v uint64) { p.DataType = DataType(int32(int64(v))) })
		case fieldFloatData:
			err = consumeRepeatedFixed32(&b, typ, func(v uint32) { p.FloatData = append(p.FloatData, math.Float32frombits(v)) })
		case fieldInt32Data:
			err = consumeRepeatedVarint(&b, typ, func(v uint64) { p.Int32Data = append(p.Int32Data, int32(int64(v))) })
		case fieldInt64Data:
			err = consumeRepeatedVarint(&b, typ, func(v uint64) { p.Int64Data = append(p.Int64Data, int64(v)) })
		case fieldDoubleData:
			err = consumeRepeatedFixed64(&b, typ, func(v uint64) { p.DoubleData = append(p.DoubleData, math.Float64frombits(v)) })
		case fieldUint64Data:
			err = consumeRepeatedVarint(&b, typ, func(v uint64) { p.Uint64Data = append(p.Uint64Data, v) })
		case fieldName:
			var s []byte
			s, err = consumeBytes(&b, typ)
			p.Name = string(s)
		case fieldRawData:
			var raw []byte
			raw, err = consumeBytes(&b, typ)
			if err == nil {
				// Own the data: the caller may reuse b.
				p.RawData = append(make([]byte, 0, len(raw)), raw...)
			}
		case fieldSegment:
			p.HasSegment = true
			err = skipField(&b, num, typ)
		case fieldExternalData:
			p.HasExternalData = true
			err = skipField(&b, num, typ)
		case fieldDataLocation:
			err = consumeRepeatedVarint(&b, typ, func(v uint64) {
				if v != 0 {
					p.HasExternalData = true
				}
			})
		case fieldStringData:
			return nil, errors.New("TensorProto with string_data is not supported")
		default:
			// doc_string and anything unknown.
			err = skipField(&b, num, typ)
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "parsing TensorProto field #%d", num)
		}
	}
	return p, nil
}

func skipField(b *[]byte, num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, *b)
	if n < 0 {
		return protowire.ParseError(n)
	}
	*b = (*b)[n:]
	return nil
}

func consumeBytes(b *[]byte, typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, errors.Errorf("expected length-delimited field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(*b)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	*b = (*b)[n:]
	return v, nil
}

func consumeRepeatedVarint(b *[]byte, typ protowire.Type, fn func(uint64)) error {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(*b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		*b = (*b)[n:]
		fn(v)
		return nil
	case protowire.BytesType:
		packed, err := consumeBytes(b, typ)
		if err != nil {
			return err
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				return protowire.ParseError(n)
			}
			packed = packed[n:]
			fn(v)
		}
		return nil
	default:
		return errors.Errorf("unexpected wire type %d for varint field", typ)
	}
}

func consumeRepeatedFixed32(b *[]byte, typ protowire.Type, fn func(uint32)) error {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(*b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		*b = (*b)[n:]
		fn(v)
		return nil
	case protowire.BytesType:
		packed, err := consumeBytes(b, typ)
		if err != nil {
			return err
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeFixed32(packed)
			if n < 0 {
				return protowire.ParseError(n)
			}
			packed = packed[n:]
			fn(v)
		}
		return nil
	default:
		return errors.Errorf("unexpected wire type %d for fixed32 field", typ)
	}
}

func consumeRepeatedFixed64(b *[]byte, typ protowire.Type, fn func(uint64)) error {
	switch typ {
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(*b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		*b = (*b)[n:]
		fn(v)
		return nil
	case protowire.BytesType:
		packed, err := consumeBytes(b, typ)
		if err != nil {
			return err
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeFixed64(packed)
			if n < 0 {
				return protowire.ParseError(n)
			}
			packed = packed[n:]
			fn(v)
		}
		return nil
	default:
		return errors.Errorf("unexpected wire type %d for fixed64 field", typ)
	}
}
