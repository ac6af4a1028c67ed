// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
)

// filetimeToUnixTicks is the number of 100-ns ticks between the FILETIME
// epoch (1601-01-01 UTC) and the Unix epoch (1970-01-01 UTC).
const filetimeToUnixTicks = 116444736000000000

// Reader is a bounds-checked, little-endian cursor over a byte slice. It
// never reads past the end of the slice it was constructed with; every
// primitive read returns ErrOutsideBoundary instead.
//
// Reader is the single place this package pokes at raw bytes; everything
// above it (value, token, name, template) goes through these methods so
// the bounds check lives in exactly one place.
type Reader struct {
	buf []byte
	pos uint32
}

// NewReader wraps buf for bounds-checked sequential reads starting at 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor position.
func (r *Reader) Pos() uint32 { return r.pos }

// Len returns the length of the backing buffer.
func (r *Reader) Len() uint32 { return uint32(len(r.buf)) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() uint32 {
	if r.pos >= uint32(len(r.buf)) {
		return 0
	}
	return uint32(len(r.buf)) - r.pos
}

// Seek moves the cursor to an absolute offset. It does not itself fail on
// an out-of-range offset; the next read will.
func (r *Reader) Seek(offset uint32) { r.pos = offset }

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n uint32) { r.pos += n }

func (r *Reader) require(n uint32) error {
	total := r.pos + n
	if total < r.pos || total > uint32(len(r.buf)) {
		return ErrOutsideBoundary
	}
	return nil
}

// ReadBytes returns the next n bytes without copying.
func (r *Reader) ReadBytes(n uint32) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// PeekBytes returns the next n bytes without advancing the cursor.
func (r *Reader) PeekBytes(n uint32) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	return r.buf[r.pos : r.pos+n], nil
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadI8 reads a signed byte.
func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadI16 reads a little-endian int16.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadI32 reads a little-endian int32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadI64 reads a little-endian int64.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadF32 reads a little-endian IEEE-754 single precision float.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads a little-endian IEEE-754 double precision float.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadGUID reads a 16-byte Windows mixed-endian GUID and formats it as
// "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx". The first three fields are
// stored little-endian on disk and byte-swapped to network order before
// handing them to uuid.FromBytes; the trailing 8 bytes are already in
// display order.
func (r *Reader) ReadGUID() (string, error) {
	raw, err := r.ReadBytes(16)
	if err != nil {
		return "", err
	}
	var b [16]byte
	// Data1: 4 bytes LE -> BE.
	b[0], b[1], b[2], b[3] = raw[3], raw[2], raw[1], raw[0]
	// Data2: 2 bytes LE -> BE.
	b[4], b[5] = raw[5], raw[4]
	// Data3: 2 bytes LE -> BE.
	b[6], b[7] = raw[7], raw[6]
	// Data4: 8 bytes, already in display order.
	copy(b[8:], raw[8:16])
	u, err := uuid.FromBytes(b[:])
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ReadFileTime reads a 64-bit FILETIME (100-ns ticks since 1601-01-01 UTC)
// and returns the equivalent UTC time, accurate to the microsecond.
func (r *Reader) ReadFileTime() (time.Time, error) {
	ticks, err := r.ReadU64()
	if err != nil {
		return time.Time{}, err
	}
	return fileTimeToTime(ticks), nil
}

func fileTimeToTime(ticks uint64) time.Time {
	unixTicks := int64(ticks) - filetimeToUnixTicks
	sec := unixTicks / 10_000_000
	rem := unixTicks % 10_000_000
	if rem < 0 {
		sec--
		rem += 10_000_000
	}
	return time.Unix(sec, rem*100).UTC()
}

// SystemTime mirrors the Windows SYSTEMTIME structure's field order.
type SystemTime struct {
	Year         uint16
	Month        uint16
	DayOfWeek    uint16
	Day          uint16
	Hour         uint16
	Minute       uint16
	Second       uint16
	Milliseconds uint16
}

// Time converts st to a UTC time.Time, millisecond precision.
func (st SystemTime) Time() time.Time {
	return time.Date(int(st.Year), time.Month(st.Month), int(st.Day),
		int(st.Hour), int(st.Minute), int(st.Second),
		int(st.Milliseconds)*1_000_000, time.UTC)
}

// ReadSystemTime reads the 8 little-endian uint16 fields of a SYSTEMTIME.
func (r *Reader) ReadSystemTime() (SystemTime, error) {
	var st SystemTime
	fields := []*uint16{&st.Year, &st.Month, &st.DayOfWeek, &st.Day,
		&st.Hour, &st.Minute, &st.Second, &st.Milliseconds}
	for _, f := range fields {
		v, err := r.ReadU16()
		if err != nil {
			return SystemTime{}, err
		}
		*f = v
	}
	return st, nil
}

// ReadSID reads a Windows SID (1-byte revision, 1-byte sub-authority
// count n, 6-byte big-endian authority, n little-endian uint32
// sub-authorities) and renders it "S-R-A-s1-...-sn".
func (r *Reader) ReadSID() (string, error) {
	revision, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	subCount, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	authBytes, err := r.ReadBytes(6)
	if err != nil {
		return "", err
	}
	var authority uint64
	for _, b := range authBytes {
		authority = authority<<8 | uint64(b)
	}
	sid := sidBuilder{revision: revision, authority: authority}
	for i := uint8(0); i < subCount; i++ {
		v, err := r.ReadU32()
		if err != nil {
			return "", err
		}
		sid.subAuthorities = append(sid.subAuthorities, v)
	}
	return sid.String(), nil
}

type sidBuilder struct {
	revision       uint8
	authority      uint64
	subAuthorities []uint32
}

func (s sidBuilder) String() string {
	out := "S-" + uitoa(uint64(s.revision)) + "-" + uitoa(s.authority)
	for _, sa := range s.subAuthorities {
		out += "-" + uitoa(uint64(sa))
	}
	return out
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// ReadUTF16LenPrefixed reads a 2-byte char count followed by that many
// UTF-16LE code units.
func (r *Reader) ReadUTF16LenPrefixed() (string, error) {
	count, err := r.ReadU16()
	if err != nil {
		return "", err
	}
	return r.readUTF16Units(uint32(count))
}

// ReadUTF16NulTerminated reads UTF-16LE code units until a 0x0000 unit.
func (r *Reader) ReadUTF16NulTerminated() (string, error) {
	var units []uint16
	for {
		u, err := r.ReadU16()
		if err != nil {
			return "", err
		}
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

func (r *Reader) readUTF16Units(count uint32) (string, error) {
	if count == 0 {
		return "", nil
	}
	b, err := r.ReadBytes(count * 2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, count)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units)), nil
}

// timestampValue wraps a decoded time.Time so readValue can distinguish a
// FILETIME/SYSTEMTIME result from a plain int64 at the type-switch in
// scalarText/scalarJSON.
type timestampValue struct {
	t time.Time
}

// formatTimestamp renders t as ISO-8601 UTC with 6 fractional digits,
// e.g. "2024-01-02T03:04:05.123456Z". A SYSTEMTIME's millisecond precision
// naturally right-pads with zeros through the same Format call.
func formatTimestamp(v timestampValue) string {
	return v.t.Format("2006-01-02T15:04:05.000000Z")
}

func utf16ToString(units []uint16) string {
	return string(utf16.Decode(units))
}

// ReadANSI decodes n bytes through the configured single-byte codec.
func (r *Reader) ReadANSI(n uint32, enc encoding.Encoding) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return decodeANSI(b, enc)
}
