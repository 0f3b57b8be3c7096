package onnxpb

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Section is a byte range of a serialized message.
type Section struct {
	Offset, Length int64
}

// maxFieldHead is the most bytes a field tag plus a varint (its value or its length) can take.
const maxFieldHead = 2 * binary.MaxVarintLen64

// UnmarshalAt parses the serialized onnx.TensorProto of the given size stored in r, without
// reading its raw_data: raw holds where raw_data is in r instead, or is nil if it's not set.
// This lets the caller read the (usually large) raw data straight into its destination.
//
// The returned proto has RawData nil.
func UnmarshalAt(r io.ReaderAt, size int64) (p *TensorProto, raw *Section, err error) {
	// Every field other than raw_data, re-assembled to be parsed by Unmarshal.
	var rest []byte
	var head [maxFieldHead]byte
	for pos := int64(0); pos < size; {
		n, readErr := r.ReadAt(head[:min(int64(len(head)), size-pos)], pos)
		if readErr != nil && readErr != io.EOF {
			return nil, nil, errors.Wrapf(readErr, "reading TensorProto field at offset %d", pos)
		}
		b := head[:n]
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return nil, nil, errors.Wrapf(protowire.ParseError(tagLen), "parsing TensorProto field tag at offset %d", pos)
		}

		if typ != protowire.BytesType {
			// Scalars fit in head.
			valueLen := protowire.ConsumeFieldValue(num, typ, b[tagLen:])
			if valueLen < 0 {
				return nil, nil, errors.Wrapf(protowire.ParseError(valueLen), "parsing TensorProto field #%d", num)
			}
			rest = append(rest, b[:tagLen+valueLen]...)
			pos += int64(tagLen + valueLen)
			continue
		}

		length, lengthLen := protowire.ConsumeVarint(b[tagLen:])
		if lengthLen < 0 {
			return nil, nil, errors.Wrapf(protowire.ParseError(lengthLen), "parsing TensorProto field #%d length", num)
		}
		start := pos + int64(tagLen+lengthLen)
		if length > uint64(size-start) {
			return nil, nil, errors.Errorf("TensorProto field #%d has %d bytes, but only %d are left", num, length, size-start)
		}
		end := start + int64(length)
		if num == fieldRawData {
			raw = &Section{Offset: start, Length: int64(length)}
		} else {
			field := make([]byte, end-pos)
			if n, readErr = r.ReadAt(field, pos); n < len(field) {
				if readErr == nil {
					readErr = io.ErrUnexpectedEOF
				}
				return nil, nil, errors.Wrapf(readErr, "reading TensorProto field #%d", num)
			}
			rest = append(rest, field...)
		}
		pos = end
	}
	p, err = Unmarshal(rest)
	if err != nil {
		return nil, nil, err
	}
	return p, raw, nil
}
