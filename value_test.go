// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import "testing"

func TestTypedValueText(t *testing.T) {
	tests := []struct {
		name string
		v    TypedValue
		want string
	}{
		{"string", TypedValue{Type: ValueString, Scalar: "hello"}, "hello"},
		{"uint32", TypedValue{Type: ValueUint32, Scalar: uint32(42)}, "42"},
		{"bool true", TypedValue{Type: ValueBool, Scalar: true}, "true"},
		{"hexint32", TypedValue{Type: ValueHexInt32, Scalar: uint32(255)}, "0xff"},
		{"hexint32 top bit set", TypedValue{Type: ValueHexInt32, Scalar: uint32(0x80000001)}, "0x80000001"},
		{"hexint64 top bit set", TypedValue{Type: ValueHexInt64, Scalar: uint64(0x8000000000000001)}, "0x8000000000000001"},
		{
			"string array",
			TypedValue{Type: ValueString | arrayTypeFlag, Array: []interface{}{"a", "b", "c"}},
			"a b c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.Text()
			if got != tt.want {
				t.Errorf("TypedValue.Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadValueScalars(t *testing.T) {
	r := NewReader([]byte{0x2A, 0x00, 0x00, 0x00})
	v, err := readValue(r, ValueUint32, 0, nil)
	if err != nil {
		t.Fatalf("readValue(Uint32) error = %v", err)
	}
	if v.(uint32) != 42 {
		t.Errorf("readValue(Uint32) = %v, want 42", v)
	}
}

func TestReadValueHexInt32TopBitSet(t *testing.T) {
	// little-endian 0x80000001: a Windows status/error code with the top
	// bit set, the case that breaks a signed-integer hex rendering.
	r := NewReader([]byte{0x01, 0x00, 0x00, 0x80})
	v, err := readValue(r, ValueHexInt32, 4, nil)
	if err != nil {
		t.Fatalf("readValue(HexInt32) error = %v", err)
	}
	tv := TypedValue{Type: ValueHexInt32, Scalar: v}
	if got := tv.Text(); got != "0x80000001" {
		t.Errorf("TypedValue.Text() = %q, want %q", got, "0x80000001")
	}
}

func TestReadValueArrayFixedWidth(t *testing.T) {
	// three little-endian uint16 elements: 1, 2, 3
	buf := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	r := NewReader(buf)
	arr, err := readValueArray(r, ValueUint16, uint32(len(buf)), nil)
	if err != nil {
		t.Fatalf("readValueArray() error = %v", err)
	}
	if len(arr) != 3 {
		t.Fatalf("readValueArray() len = %d, want 3", len(arr))
	}
	for i, want := range []uint16{1, 2, 3} {
		if arr[i].(uint16) != want {
			t.Errorf("readValueArray()[%d] = %v, want %d", i, arr[i], want)
		}
	}
}

func TestReadValueArrayStrings(t *testing.T) {
	// "ab\0cd\0" as UTF-16LE null-delimited strings.
	buf := []byte{
		0x61, 0x00, 0x62, 0x00, 0x00, 0x00,
		0x63, 0x00, 0x64, 0x00, 0x00, 0x00,
	}
	r := NewReader(buf)
	arr, err := readValueArray(r, ValueString, uint32(len(buf)), nil)
	if err != nil {
		t.Fatalf("readValueArray() error = %v", err)
	}
	want := []string{"ab", "cd"}
	if len(arr) != len(want) {
		t.Fatalf("readValueArray() len = %d, want %d", len(arr), len(want))
	}
	for i := range want {
		if arr[i].(string) != want[i] {
			t.Errorf("readValueArray()[%d] = %q, want %q", i, arr[i], want[i])
		}
	}
}
