// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import "golang.org/x/text/encoding"

// templateTableBuckets is the number of hash buckets a chunk's template
// table header holds (32 little-endian uint32 offsets into the chunk).
const templateTableBuckets = 32

// TemplateDefinition is a parsed template header plus the decoded token
// stream of its body, spec §4.5.
type TemplateDefinition struct {
	Offset     uint32
	NextOffset uint32
	GUID       string
	DataSize   uint32
	BodyStart  uint32
	BodyEnd    uint32
	Tokens     []*Token
}

// parseTemplateDefinitionHeader reads a template definition's fixed
// header (4-byte next-template offset, 16-byte GUID, 4-byte data size)
// starting at the reader's current position and returns it with BodyStart
// set to the position right after the header and BodyEnd set to
// BodyStart+DataSize. It does not itself tokenize the body; callers that
// need the tokens call decodeTemplateBody separately, letting a
// TemplateInstance's inline-header case skip straight past an
// already-cached definition's body without re-tokenizing it.
func parseTemplateDefinitionHeader(r *Reader) (*TemplateDefinition, error) {
	start := r.Pos()
	next, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	guid, err := r.ReadGUID()
	if err != nil {
		return nil, err
	}
	size, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	bodyStart := r.Pos()
	return &TemplateDefinition{
		Offset:     start,
		NextOffset: next,
		GUID:       guid,
		DataSize:   size,
		BodyStart:  bodyStart,
		BodyEnd:    bodyStart + size,
	}, nil
}

// decodeTemplateBody tokenizes a template definition's body in place,
// populating def.Tokens. It stops at a TokenEOF or at def.BodyEnd,
// whichever comes first.
func decodeTemplateBody(def *TemplateDefinition, names *nameCache, chunk []byte, dec *tokenDecoder) error {
	r := dec.r
	r.Seek(def.BodyStart)
	for r.Pos() < def.BodyEnd {
		tok, err := dec.Next()
		if err != nil {
			return err
		}
		if tok.Kind == TokenEOF {
			break
		}
		def.Tokens = append(def.Tokens, tok)
	}
	return nil
}

// templateCache resolves chunk-relative template definition offsets to
// parsed TemplateDefinition values. Like nameCache, it is populated
// eagerly by walking the chunk header's 32 bucket offsets and the
// next-template chain from each, then falls back to an on-the-fly parse
// for any offset a TemplateInstance references that the eager walk missed
// (spec §4.5's "do not fail the record solely because the eager walk
// missed an offset" tolerance).
type templateCache struct {
	chunk []byte
	names *nameCache
	defs  map[uint32]*TemplateDefinition
}

func newTemplateCache(chunk []byte, names *nameCache) *templateCache {
	return &templateCache{chunk: chunk, names: names, defs: make(map[uint32]*TemplateDefinition)}
}

// populate eagerly parses every template reachable from bucketOffsets,
// including each bucket's next-template chain. ansiEnc is forwarded to the
// token decoder used to tokenize each definition's body.
func (tc *templateCache) populate(bucketOffsets [templateTableBuckets]uint32, ansiEnc encoding.Encoding) error {
	maxChainLen := len(tc.chunk)
	r := NewReader(tc.chunk)
	dec := newTokenDecoder(r, tc.names, tc.chunk, ansiEnc)

	for _, start := range bucketOffsets {
		off := start
		for i := 0; off != 0 && i < maxChainLen; i++ {
			if off >= uint32(len(tc.chunk)) {
				break
			}
			if _, ok := tc.defs[off]; ok {
				next := peekNextTemplateOffset(tc.chunk, off)
				if next == off {
					break
				}
				off = next
				continue
			}
			r.Seek(off)
			def, err := parseTemplateDefinitionHeader(r)
			if err != nil {
				break
			}
			if err := decodeTemplateBody(def, tc.names, tc.chunk, dec); err != nil {
				break
			}
			tc.defs[off] = def
			next := def.NextOffset
			if next == off {
				break
			}
			off = next
		}
	}
	return nil
}

// resolve returns the TemplateDefinition at chunk-relative offset off,
// falling back to an on-the-fly parse (and caching the result) when the
// eager populate pass did not reach it.
func (tc *templateCache) resolve(off uint32, ansiEnc encoding.Encoding) (*TemplateDefinition, error) {
	if def, ok := tc.defs[off]; ok {
		return def, nil
	}
	if off >= uint32(len(tc.chunk)) {
		return nil, ErrTemplateMissing
	}
	r := NewReader(tc.chunk)
	r.Seek(off)
	def, err := parseTemplateDefinitionHeader(r)
	if err != nil {
		return nil, ErrTemplateMissing
	}
	dec := newTokenDecoder(r, tc.names, tc.chunk, ansiEnc)
	if err := decodeTemplateBody(def, tc.names, tc.chunk, dec); err != nil {
		return nil, ErrTemplateMissing
	}
	tc.defs[off] = def
	return def, nil
}

func peekNextTemplateOffset(chunk []byte, off uint32) uint32 {
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
