// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
)

// ValueType identifies the wire representation of a BinXML typed value.
// Array variants OR the scalar type with arrayTypeFlag (0x80).
type ValueType uint8

// Scalar value types, spec §4.4.
const (
	ValueNull         ValueType = 0x00
	ValueString       ValueType = 0x01
	ValueAnsiString   ValueType = 0x02
	ValueInt8         ValueType = 0x03
	ValueUint8        ValueType = 0x04
	ValueInt16        ValueType = 0x05
	ValueUint16       ValueType = 0x06
	ValueInt32        ValueType = 0x07
	ValueUint32       ValueType = 0x08
	ValueInt64        ValueType = 0x09
	ValueUint64       ValueType = 0x0A
	ValueReal32       ValueType = 0x0B
	ValueReal64       ValueType = 0x0C
	ValueBool         ValueType = 0x0D
	ValueBinary       ValueType = 0x0E
	ValueGUID         ValueType = 0x0F
	ValueSizeT        ValueType = 0x10
	ValueFileTime     ValueType = 0x11
	ValueSysTime      ValueType = 0x12
	ValueSID          ValueType = 0x13
	ValueHexInt32     ValueType = 0x14
	ValueHexInt64     ValueType = 0x15
	ValueEvtHandle    ValueType = 0x20
	ValueBinXml       ValueType = 0x21
	ValueEvtXml       ValueType = 0x23
)

const arrayTypeFlag ValueType = 0x80

// IsArray reports whether t is the array variant of a scalar type.
func (t ValueType) IsArray() bool { return t&arrayTypeFlag != 0 }

// Scalar strips the array flag, returning the element type.
func (t ValueType) Scalar() ValueType { return t &^ arrayTypeFlag }

// TypedValue is a fully decoded BinXML value: a scalar, or a slice of
// scalars when Type.IsArray() is true.
type TypedValue struct {
	Type ValueType
	// Scalar holds the decoded value when !Type.IsArray().
	Scalar interface{}
	// Array holds the decoded elements when Type.IsArray().
	Array []interface{}
}

// Text renders the value the way it appears in an XML text node or
// attribute value: space-joined for arrays, per spec §4.9.
func (v TypedValue) Text() string {
	if v.Type.IsArray() {
		parts := make([]string, len(v.Array))
		for i, e := range v.Array {
			parts[i] = scalarText(v.Type.Scalar(), e)
		}
		return strings.Join(parts, " ")
	}
	return scalarText(v.Type, v.Scalar)
}

// JSONValue renders the value as a native Go value suitable for
// encoding/json: a []interface{} for arrays, a scalar otherwise.
func (v TypedValue) JSONValue() interface{} {
	if v.Type.IsArray() {
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = scalarJSON(v.Type.Scalar(), e)
		}
		return out
	}
	return scalarJSON(v.Type, v.Scalar)
}

func scalarText(t ValueType, v interface{}) string {
	switch t {
	case ValueNull:
		return ""
	case ValueString, ValueAnsiString:
		return v.(string)
	case ValueInt8:
		return strconv.FormatInt(int64(v.(int8)), 10)
	case ValueUint8:
		return strconv.FormatUint(uint64(v.(uint8)), 10)
	case ValueInt16:
		return strconv.FormatInt(int64(v.(int16)), 10)
	case ValueUint16:
		return strconv.FormatUint(uint64(v.(uint16)), 10)
	case ValueInt32:
		return strconv.FormatInt(int64(v.(int32)), 10)
	case ValueUint32:
		return strconv.FormatUint(uint64(v.(uint32)), 10)
	case ValueInt64:
		return strconv.FormatInt(v.(int64), 10)
	case ValueUint64, ValueSizeT:
		return strconv.FormatUint(v.(uint64), 10)
	case ValueReal32:
		return strconv.FormatFloat(float64(v.(float32)), 'g', -1, 32)
	case ValueReal64:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64)
	case ValueBool:
		if v.(bool) {
			return "true"
		}
		return "false"
	case ValueBinary:
		return fmt.Sprintf("%X", v.([]byte))
	case ValueGUID:
		return v.(string)
	case ValueFileTime:
		return formatTimestamp(v.(timestampValue))
	case ValueSysTime:
		return formatTimestamp(v.(timestampValue))
	case ValueSID:
		return v.(string)
	case ValueHexInt32:
		return fmt.Sprintf("0x%x", v.(uint32))
	case ValueHexInt64:
		return fmt.Sprintf("0x%x", v.(uint64))
	case ValueEvtHandle:
		return fmt.Sprintf("0x%x", v.(uint64))
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
}

func scalarJSON(t ValueType, v interface{}) interface{} {
	switch t {
	case ValueFileTime, ValueSysTime:
		return formatTimestamp(v.(timestampValue))
	case ValueBinary:
		return fmt.Sprintf("%X", v.([]byte))
	case ValueHexInt32:
		return fmt.Sprintf("0x%x", v.(uint32))
	case ValueHexInt64:
		return fmt.Sprintf("0x%x", v.(uint64))
	case ValueEvtHandle:
		return fmt.Sprintf("0x%x", v.(uint64))
	case ValueNull:
		return nil
	default:
		return v
	}
}

// readValue decodes one value of type t from r. ansiEnc is used only for
// ValueAnsiString; pass nil if the ANSI string won't be encountered.
func readValue(r *Reader, t ValueType, length uint32, ansiEnc encoding.Encoding) (interface{}, error) {
	if t.IsArray() {
		return readValueArray(r, t.Scalar(), length, ansiEnc)
	}
	switch t {
	case ValueNull:
		return nil, nil
	case ValueString:
		if length > 0 {
			return r.readUTF16Units(length / 2)
		}
		return r.ReadUTF16NulTerminated()
	case ValueAnsiString:
		if length > 0 {
			return r.ReadANSI(length, ansiEnc)
		}
		b, err := readUntilNulByte(r)
		if err != nil {
			return nil, err
		}
		return decodeANSI(b, ansiEnc)
	case ValueInt8:
		return r.ReadI8()
	case ValueUint8:
		return r.ReadU8()
	case ValueInt16:
		return r.ReadI16()
	case ValueUint16:
		return r.ReadU16()
	case ValueInt32:
		return r.ReadI32()
	case ValueUint32:
		return r.ReadU32()
	case ValueInt64:
		return r.ReadI64()
	case ValueUint64:
		return r.ReadU64()
	case ValueReal32:
		return r.ReadF32()
	case ValueReal64:
		return r.ReadF64()
	case ValueBool:
		v, err := r.ReadI32()
		return v != 0, err
	case ValueBinary:
		return r.ReadBytes(length)
	case ValueGUID:
		return r.ReadGUID()
	case ValueSizeT:
		if length == 4 {
			v, err := r.ReadU32()
			return uint64(v), err
		}
		return r.ReadU64()
	case ValueFileTime:
		t, err := r.ReadFileTime()
		return timestampValue{t: t}, err
	case ValueSysTime:
		st, err := r.ReadSystemTime()
		return timestampValue{t: st.Time()}, err
	case ValueSID:
		return r.ReadSID()
	case ValueHexInt32:
		return r.ReadU32()
	case ValueHexInt64:
		return r.ReadU64()
	case ValueEvtHandle:
		return r.ReadU64()
	case ValueBinXml, ValueEvtXml:
		return r.ReadBytes(length)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnexpectedValueType, uint8(t))
	}
}

// readValueArray decodes length bytes as a packed array of elemType. String
// element types are null-delimited UTF-16/ANSI runs; fixed-width scalars are
// simply length/width elements in sequence.
func readValueArray(r *Reader, elemType ValueType, length uint32, ansiEnc encoding.Encoding) ([]interface{}, error) {
	end := r.Pos() + length
	var out []interface{}

	switch elemType {
	case ValueString:
		for r.Pos() < end {
			s, err := readUTF16UntilNulOrEnd(r, end)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case ValueAnsiString:
		for r.Pos() < end {
			b, err := readUntilNulOrEnd(r, end)
			if err != nil {
				return nil, err
			}
			s, err := decodeANSI(b, ansiEnc)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}

	width, ok := fixedWidth[elemType]
	if !ok {
		return nil, fmt.Errorf("%w: array of 0x%02x", ErrUnexpectedValueType, uint8(elemType))
	}
	for r.Pos()+width <= end {
		v, err := readValue(r, elemType, width, ansiEnc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

var fixedWidth = map[ValueType]uint32{
	ValueInt8: 1, ValueUint8: 1, ValueInt16: 2, ValueUint16: 2,
	ValueInt32: 4, ValueUint32: 4, ValueInt64: 8, ValueUint64: 8,
	ValueReal32: 4, ValueReal64: 8, ValueBool: 4, ValueGUID: 16,
	ValueFileTime: 8, ValueSysTime: 16, ValueHexInt32: 4, ValueHexInt64: 8,
}

func readUntilNulByte(r *Reader) ([]byte, error) {
	var out []byte
	for {
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return out, nil
		}
		out = append(out, b)
	}
}

func readUntilNulOrEnd(r *Reader, end uint32) ([]byte, error) {
	var out []byte
	for r.Pos() < end {
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return out, nil
		}
		out = append(out, b)
	}
	return out, nil
}

func readUTF16UntilNulOrEnd(r *Reader, end uint32) (string, error) {
	var units []uint16
	for r.Pos() < end {
		u, err := r.ReadU16()
		if err != nil {
			return "", err
		}
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return utf16ToString(units), nil
}
