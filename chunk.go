// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"hash/crc32"

	"golang.org/x/text/encoding"
)

// chunkSize is the fixed size of an EVTX chunk, spec §3.
const chunkSize = 65536

// chunkHeaderSize is the fixed size of a chunk's header, preceding its
// name table, template table, and record area.
const chunkHeaderSize = 512

var chunkMagic = [8]byte{'E', 'l', 'f', 'C', 'h', 'n', 'k', 0}

// ChunkHeader is the decoded header of one 64KB chunk.
type ChunkHeader struct {
	FirstRecordNumber uint64
	LastRecordNumber  uint64
	FirstRecordID     uint64
	LastRecordID      uint64
	HeaderSize        uint32
	LastRecordOffset  uint32
	FreeSpaceOffset   uint32
	EventsChecksum    uint32
	Flags             uint32
	HeaderChecksum    uint32
	NameOffsets       [nameTableBuckets]uint32
	TemplateOffsets   [templateTableBuckets]uint32
}

// Chunk is a parsed chunk: its header, name/template caches (already
// populated), and the raw chunk bytes records are decoded against.
type Chunk struct {
	Index     int
	Header    *ChunkHeader
	Bytes     []byte
	Names     *nameCache
	Templates *templateCache
}

// isZeroChunk reports whether buf (one chunk's worth of bytes) is all
// zero, the representation of an unused chunk slot past the log's
// current tail.
func isZeroChunk(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// parseChunkHeader decodes the fixed-layout portion of a chunk header
// from the start of buf (one chunk's bytes).
func parseChunkHeader(buf []byte) (*ChunkHeader, error) {
	r := NewReader(buf)
	magic, err := r.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	for i, b := range magic {
		if b != chunkMagic[i] {
			return nil, ErrChunkMagicNotFound
		}
	}

	h := &ChunkHeader{}
	if h.FirstRecordNumber, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.LastRecordNumber, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.FirstRecordID, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.LastRecordID, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.HeaderSize, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.LastRecordOffset, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.FreeSpaceOffset, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.EventsChecksum, err = r.ReadU32(); err != nil {
		return nil, err
	}
	r.Skip(64) // reserved
	if h.Flags, err = r.ReadU32(); err != nil {
		return nil, err
	}
	// HeaderChecksum sits immediately after Flags, inside the [120,128)
	// span chunkHeaderChecksum deliberately excludes from its own
	// coverage so the field is never self-referential.
	if h.HeaderChecksum, err = r.ReadU32(); err != nil {
		return nil, err
	}
	// Name table bucket offsets occupy bytes [128,384) (64 entries);
	// template table bucket offsets follow at [384,512) (32 entries).
	for i := range h.NameOffsets {
		if h.NameOffsets[i], err = r.ReadU32(); err != nil {
			return nil, err
		}
	}
	for i := range h.TemplateOffsets {
		if h.TemplateOffsets[i], err = r.ReadU32(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// chunkHeaderChecksum computes the CRC32-IEEE checksum over the portions
// of the chunk header spec §3 designates as covered: bytes [0,120)
// (magic through the reserved bytes, stopping short of flags) and the
// 96-entry name/template offset table at [128,512).
func chunkHeaderChecksum(buf []byte) uint32 {
	crc := crc32.NewIEEE()
	crc.Write(buf[0:120])
	crc.Write(buf[128:512])
	return crc.Sum32()
}

// chunkEventsChecksum computes the CRC32-IEEE checksum over the record
// area: chunk bytes [512, FreeSpaceOffset).
func chunkEventsChecksum(buf []byte, freeSpaceOffset uint32) uint32 {
	if freeSpaceOffset > uint32(len(buf)) || freeSpaceOffset < chunkHeaderSize {
		return 0
	}
	return crc32.ChecksumIEEE(buf[chunkHeaderSize:freeSpaceOffset])
}

// parseChunk decodes a chunk's header and eagerly populates its name and
// template caches. validate controls whether checksum mismatches return
// ErrChunkChecksum (strict) or only leave a caller-visible warning
// (lenient); the lenient path is implemented by the caller inspecting the
// returned bool.
func parseChunk(index int, buf []byte, ansiEnc encoding.Encoding, validate bool) (*Chunk, bool, error) {
	header, err := parseChunkHeader(buf)
	if err != nil {
		return nil, false, err
	}

	checksumOK := true
	if got := chunkHeaderChecksum(buf); got != header.HeaderChecksum {
		checksumOK = false
		if validate {
			return nil, false, ErrChunkChecksum
		}
	}
	if got := chunkEventsChecksum(buf, header.FreeSpaceOffset); got != header.EventsChecksum {
		checksumOK = false
		if validate {
			return nil, false, ErrChunkChecksum
		}
	}

	names := newNameCache(buf)
	walkNameTableBuckets(buf, header.NameOffsets, names)

	templates := newTemplateCache(buf, names)
	if err := templates.populate(header.TemplateOffsets, ansiEnc); err != nil {
		return nil, checksumOK, err
	}

	return &Chunk{Index: index, Header: header, Bytes: buf, Names: names, Templates: templates}, checksumOK, nil
}
