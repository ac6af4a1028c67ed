// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import "testing"

func newTestNameCache(entries map[uint32]string) *nameCache {
	chunk := make([]byte, 256)
	nc := newNameCache(chunk)
	for off, val := range entries {
		blob := buildNameBlob(0, 0, val)
		copy(chunk[off:], blob)
	}
	return nc
}

func TestTokenDecoderOpenStartElement(t *testing.T) {
	names := newTestNameCache(map[uint32]string{16: "Event"})

	buf := []byte{
		0x01,                   // OpenStartElement, no dep id, no attrs
		0x00, 0x00, 0x00, 0x00, // data size
		0x10, 0x00, 0x00, 0x00, // name offset = 16
	}
	r := NewReader(buf)
	dec := newTokenDecoder(r, names, names.chunk, nil)

	tok, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if tok.Kind != TokenOpenStartElement || tok.Name != "Event" {
		t.Errorf("Next() = %+v, want OpenStartElement Event", tok)
	}
	if tok.DependencyID != -1 {
		t.Errorf("Next().DependencyID = %d, want -1 (unset)", tok.DependencyID)
	}
}

func TestTokenDecoderAttribute(t *testing.T) {
	names := newTestNameCache(map[uint32]string{32: "Name"})
	buf := []byte{
		0x06,                   // Attribute
		0x20, 0x00, 0x00, 0x00, // name offset = 32
	}
	r := NewReader(buf)
	dec := newTokenDecoder(r, names, names.chunk, nil)

	tok, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if tok.Kind != TokenAttribute || tok.AttrName != "Name" {
		t.Errorf("Next() = %+v, want Attribute Name", tok)
	}
}

func TestTokenDecoderValueToken(t *testing.T) {
	buf := []byte{
		0x05,       // Value
		0x08,       // ValueUint32
		0x2A, 0x00, 0x00, 0x00,
	}
	r := NewReader(buf)
	names := newTestNameCache(nil)
	dec := newTokenDecoder(r, names, names.chunk, nil)

	tok, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if tok.Kind != TokenValue || tok.Value.Scalar.(uint32) != 42 {
		t.Errorf("Next() = %+v, want Value 42", tok)
	}
}

func TestTokenDecoderSubstitution(t *testing.T) {
	buf := []byte{
		0x0D,       // NormalSubstitution
		0x02, 0x00, // index = 2
		0x01, // declared type = ValueString
	}
	r := NewReader(buf)
	names := newTestNameCache(nil)
	dec := newTokenDecoder(r, names, names.chunk, nil)

	tok, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if tok.Kind != TokenNormalSubstitution || tok.SubIndex != 2 || tok.SubType != ValueString {
		t.Errorf("Next() = %+v, want NormalSubstitution idx=2 type=String", tok)
	}
}

func TestTokenDecoderEOF(t *testing.T) {
	buf := []byte{0x00}
	r := NewReader(buf)
	names := newTestNameCache(nil)
	dec := newTokenDecoder(r, names, names.chunk, nil)

	tok, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if tok.Kind != TokenEOF {
		t.Errorf("Next() = %+v, want EOF", tok)
	}
}

func TestTokenDecoderUnexpectedToken(t *testing.T) {
	buf := []byte{0x3F} // not a valid base token value
	r := NewReader(buf)
	names := newTestNameCache(nil)
	dec := newTokenDecoder(r, names, names.chunk, nil)

	if _, err := dec.Next(); err == nil {
		t.Errorf("Next() with invalid token byte returned nil error, want ErrUnexpectedToken")
	}
}
