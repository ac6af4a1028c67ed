// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"time"

	"golang.org/x/text/encoding"
)

var recordMagic = [4]byte{0x2a, 0x2a, 0x00, 0x00}

// recordHeaderSize is the fixed size of a record header: magic, size,
// record id, and a FILETIME, spec §3.
const recordHeaderSize = 24

// RecordHeader is the decoded fixed header preceding a record's BinXml
// body.
type RecordHeader struct {
	Size      uint32
	RecordID  uint64
	Written   time.Time
}

// EventRecord is the public projection of one decoded EVTX record: its
// identity, timestamp, and assembled document tree ready for
// serialization, spec §4.9.
type EventRecord struct {
	ChunkIndex int
	RecordID   uint64
	Written    time.Time
	Root       *XmlNode
}

// XML renders the record with the given indent string ("" for compact).
func (e *EventRecord) XML(indent string) string {
	return ToXML(e.Root, indent)
}

// JSON renders the record as JSON, indent ("" for compact) and
// separateAttrs controlling the same layout choices as ToJSON.
func (e *EventRecord) JSON(indent string, separateAttrs bool) ([]byte, error) {
	return ToJSON(e.Root, indent, separateAttrs)
}

// parseRecordHeader decodes the 24-byte record header at the start of
// buf, returning ErrRecordMagicNotFound when the magic doesn't match
// (the signal to stop iterating a chunk's record area) and
// ErrRecordTooSmall when the declared size cannot hold the header.
func parseRecordHeader(buf []byte) (*RecordHeader, error) {
	r := NewReader(buf)
	magic, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	for i, b := range magic {
		if b != recordMagic[i] {
			return nil, ErrRecordMagicNotFound
		}
	}
	h := &RecordHeader{}
	if h.Size, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.Size < recordHeaderSize {
		return nil, ErrRecordTooSmall
	}
	if h.RecordID, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.Written, err = r.ReadFileTime(); err != nil {
		return nil, err
	}
	return h, nil
}

// decodeRecord decodes one record's BinXml body (the bytes between the
// 24-byte header and the trailing 4-byte size copy) into an EventRecord.
func decodeRecord(chunk *Chunk, header *RecordHeader, body []byte, ansiEnc encoding.Encoding) (*EventRecord, error) {
	r := NewReader(body)
	dec := newTokenDecoder(r, chunk.Names, chunk.Bytes, ansiEnc)

	var flat []*Token
	ex := newExpander(chunk.Templates, chunk.Names, chunk.Bytes, ansiEnc)
	for {
		tok, err := dec.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenEOF {
			break
		}
		if tok.Kind == TokenTemplateInstance {
			expanded, err := ex.Expand(tok.Template)
			if err != nil {
				return nil, err
			}
			flat = append(flat, expanded...)
			continue
		}
		flat = append(flat, tok)
	}

	root, err := assembleModel(flat)
	if err != nil {
		return nil, err
	}

	return &EventRecord{
		ChunkIndex: chunk.Index,
		RecordID:   header.RecordID,
		Written:    header.Written,
		Root:       root,
	}, nil
}
