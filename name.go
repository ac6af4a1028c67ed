// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

// nameTableBuckets is the number of hash buckets a chunk's name table
// header holds (64 little-endian uint32 offsets into the chunk).
const nameTableBuckets = 64

// NameEntry is one decoded BinXML name: its chunk-relative offset (the
// cache key other structures reference it by), its hash, and text.
type NameEntry struct {
	Offset uint32
	Hash   uint16
	Value  string
}

// nameCache resolves chunk-relative name offsets to decoded NameEntry
// values, memoizing each offset the first time it is read. A nameCache is
// only ever touched by the goroutine decoding its chunk, so it carries no
// locking (spec's same-chunk-only ownership model).
type nameCache struct {
	chunk   []byte
	entries map[uint32]*NameEntry
}

func newNameCache(chunk []byte) *nameCache {
	return &nameCache{chunk: chunk, entries: make(map[uint32]*NameEntry)}
}

// resolve returns the NameEntry stored at chunk-relative offset off,
// parsing and caching it on first access. Subsequent lookups of the same
// offset, however reached (name table bucket chain, element/attribute name
// reference, template name reference), return the cached value.
func (nc *nameCache) resolve(off uint32) (*NameEntry, error) {
	if e, ok := nc.entries[off]; ok {
		return e, nil
	}
	e, err := parseNameAt(nc.chunk, off)
	if err != nil {
		return nil, err
	}
	nc.entries[off] = e
	return e, nil
}

// parseNameAt decodes the name blob at chunk-relative offset off:
// 4-byte next-entry offset (bucket chain link, ignored here since the
// cache is keyed by offset, not bucket), 2-byte hash, 2-byte char count,
// that many UTF-16LE chars, then a trailing NUL unit.
func parseNameAt(chunk []byte, off uint32) (*NameEntry, error) {
	if off >= uint32(len(chunk)) {
		return nil, ErrBadName
	}
	r := NewReader(chunk)
	r.Seek(off)

	if _, err := r.ReadU32(); err != nil { // next-entry offset, unused
		return nil, ErrBadName
	}
	hash, err := r.ReadU16()
	if err != nil {
		return nil, ErrBadName
	}
	count, err := r.ReadU16()
	if err != nil {
		return nil, ErrBadName
	}
	value, err := r.readUTF16Units(uint32(count))
	if err != nil {
		return nil, ErrBadName
	}
	r.Skip(2) // trailing NUL terminator unit

	return &NameEntry{Offset: off, Hash: hash, Value: value}, nil
}

// walkNameTableBuckets visits every name table entry reachable from a
// chunk header's 64 bucket offsets, following each bucket's next-entry
// chain, and populates cache eagerly. Offsets outside the chunk or that
// form a chain longer than len(chunk) (a corruption guard against cyclic
// chains) stop that bucket's walk without failing the whole chunk.
func walkNameTableBuckets(chunk []byte, bucketOffsets [nameTableBuckets]uint32, cache *nameCache) {
	maxChainLen := len(chunk)
	for _, start := range bucketOffsets {
		off := start
		for i := 0; off != 0 && i < maxChainLen; i++ {
			if off >= uint32(len(chunk)) {
				break
			}
			entry, err := cache.resolve(off)
			if err != nil {
				break
			}
			next := readNextOffset(chunk, off)
			if next == off {
				break
			}
			off = next
			_ = entry
		}
	}
}

func readNextOffset(chunk []byte, off uint32) uint32 {
	if int(off)+4 > len(chunk) {
		return 0
	}
	r := NewReader(chunk)
	r.Seek(off)
	next, err := r.ReadU32()
	if err != nil {
		return 0
	}
	return next
}
