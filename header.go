// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"hash/crc32"
)

// fileHeaderSize is the fixed size of an EVTX file header block.
const fileHeaderSize = 4096

var fileMagic = [8]byte{'E', 'l', 'f', 'F', 'i', 'l', 'e', 0}

// FileHeader is the decoded 4096-byte header at the start of an EVTX
// file, spec §3.
type FileHeader struct {
	OldestChunk   uint64
	CurrentChunk  uint64
	NextRecordID  uint64
	HeaderSize    uint32
	MinorVersion  uint16
	MajorVersion  uint16
	HeaderBlockSize uint16
	ChunkCount    uint16
	Flags         uint32
	Checksum      uint32
}

// parseFileHeader decodes and validates the file header at the start of
// buf. It verifies the magic signature and that header_block_size does
// not exceed the file's total size; checksum verification over bytes
// [0,120) is performed by the caller since strict/lenient handling is a
// File-level policy, not a header-parsing concern.
func parseFileHeader(buf []byte) (*FileHeader, error) {
	if len(buf) < fileHeaderSize {
		return nil, ErrInvalidFileSize
	}
	r := NewReader(buf)

	magic, err := r.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	for i, b := range magic {
		if b != fileMagic[i] {
			return nil, ErrFileMagicNotFound
		}
	}

	h := &FileHeader{}
	if h.OldestChunk, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.CurrentChunk, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.NextRecordID, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.HeaderSize, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.MinorVersion, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.MajorVersion, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.HeaderBlockSize, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.ChunkCount, err = r.ReadU16(); err != nil {
		return nil, err
	}
	r.Skip(76) // reserved
	if h.Flags, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.Checksum, err = r.ReadU32(); err != nil {
		return nil, err
	}

	if uint64(h.HeaderBlockSize) > uint64(len(buf)) {
		return nil, ErrInvalidHeaderBlockSize
	}
	return h, nil
}

// fileHeaderChecksum computes the CRC32-IEEE checksum over the first 120
// bytes of the file header, the region spec §3 designates as covered.
func fileHeaderChecksum(buf []byte) uint32 {
	if len(buf) < 120 {
		return 0
	}
	return crc32.ChecksumIEEE(buf[:120])
}
