// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultANSICodec is the single-byte codec used when Options.ANSICodec
// is left empty.
const DefaultANSICodec = "windows-1252"

// ansiCodecs maps the codec names a caller may set on Options.ANSICodec to
// the golang.org/x/text encoding that implements it. Only single-byte
// codecs belong here; the byte reader always hands exactly one output
// rune per input byte.
var ansiCodecs = map[string]encoding.Encoding{
	"windows-1252": charmap.Windows1252,
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
}

// resolveANSICodec returns the encoding.Encoding for name, falling back to
// DefaultANSICodec when name is empty, and erroring on an unknown name.
func resolveANSICodec(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultANSICodec
	}
	enc, ok := ansiCodecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return enc, nil
}

// decodeANSI decodes b through enc, one byte per rune, and drops the run
// of NULs at the end that pads a fixed-width ANSI field. NULs before the
// last non-NUL byte are kept.
func decodeANSI(b []byte, enc encoding.Encoding) (string, error) {
	dec := enc.NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return "", err
	}
	// Trim a trailing NUL run; fixed-width ANSI fields are padded with it.
	n := len(out)
	for n > 0 && out[n-1] == 0 {
		n--
	}
	return string(out[:n]), nil
}
