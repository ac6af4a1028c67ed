// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"golang.org/x/text/encoding"
)

// expandedToken is a Token already resolved against a substitution array:
// Normal/OptionalSubstitution tokens become a concrete TokenValue (or are
// dropped, for an optional substitution holding NullType), and a nested
// TemplateInstance's body has been recursively expanded into the same
// flat sequence.
type expandedToken = Token

// expander walks a template definition's token stream, replacing
// substitution placeholders with the values supplied by a
// TemplateInstance, and recursively expanding any nested TemplateInstance
// it encounters. It is the single place spec §4.5's "idempotent
// replacement" and "embedded BinXML flattening" rules are implemented.
type expander struct {
	templates *templateCache
	names     *nameCache
	chunk     []byte
	ansiEnc   encoding.Encoding
	depth     int
}

func newExpander(templates *templateCache, names *nameCache, chunk []byte, ansiEnc encoding.Encoding) *expander {
	return &expander{templates: templates, names: names, chunk: chunk, ansiEnc: ansiEnc}
}

// Expand resolves a TemplateInstance into a flat token sequence: its
// definition's tokens with every substitution token replaced in place.
func (ex *expander) Expand(ti *TemplateInstance) ([]*Token, error) {
	if ex.depth >= maxBinXmlRecursionDepth {
		return nil, ErrTemplateRecursion
	}
	// ti.Inline carries only the definition header (the decoder skips the
	// body), so the tokens always come from the chunk's template cache.
	def, err := ex.templates.resolve(ti.DefinitionOffset, ex.ansiEnc)
	if err != nil {
		return nil, err
	}

	out := make([]*Token, 0, len(def.Tokens))
	for _, tok := range def.Tokens {
		switch tok.Kind {
		case TokenNormalSubstitution, TokenOptionalSubstitution:
			resolved, err := ex.resolveSubstitution(tok, ti)
			if err != nil {
				return nil, err
			}
			if resolved == nil {
				// Optional substitution holding NullType: suppressed
				// entirely rather than emitted as an empty value.
				continue
			}
			out = append(out, resolved...)
		case TokenTemplateInstance:
			ex.depth++
			nested, err := ex.Expand(tok.Template)
			ex.depth--
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			out = append(out, tok)
		}
	}
	return out, nil
}

// resolveSubstitution returns the replacement token(s) for a single
// substitution placeholder. A value of type BinXml is itself a nested
// fragment and is recursively tokenized and expanded so the caller never
// sees a raw 0x21 value token, satisfying the model assembler's
// precondition that such a token never reaches it directly (spec §9).
//
// Once consumed, the slot is replaced in place with a NullType value so a
// sibling expansion referencing the same index again (legal, since a
// substitution array may be referenced by more than one placeholder)
// never re-emits or re-expands it a second time.
func (ex *expander) resolveSubstitution(tok *Token, ti *TemplateInstance) ([]*Token, error) {
	if int(tok.SubIndex) >= len(ti.Values) {
		return nil, ErrModelState
	}
	desc := ti.Values[tok.SubIndex]
	ti.Values[tok.SubIndex] = TemplateValue{Type: ValueNull}

	if desc.Type == ValueNull {
		if tok.Kind == TokenOptionalSubstitution {
			return nil, nil
		}
		return []*Token{{Kind: TokenValue, Value: &TypedValue{Type: ValueNull}}}, nil
	}

	if desc.Type == ValueBinXml {
		raw, ok := desc.Data.([]byte)
		if !ok {
			return nil, ErrModelState
		}
		if ex.depth >= maxBinXmlRecursionDepth {
			return nil, ErrTemplateRecursion
		}
		ex.depth++
		toks, err := ex.expandEmbeddedBinXml(raw)
		ex.depth--
		if err != nil {
			return nil, err
		}
		return toks, nil
	}

	return []*Token{{Kind: TokenValue, Value: &TypedValue{Type: desc.Type, Scalar: desc.Data}}}, nil
}

// expandEmbeddedBinXml tokenizes and fully expands a standalone BinXML
// fragment (a BinXml-typed substitution value), returning the
// flattened token sequence as if it had been inlined at the point of
// substitution.
func (ex *expander) expandEmbeddedBinXml(raw []byte) ([]*Token, error) {
	r := NewReader(raw)
	dec := newTokenDecoder(r, ex.names, ex.chunk, ex.ansiEnc)

	var out []*Token
	for {
		tok, err := dec.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenEOF {
			break
		}
		if tok.Kind == TokenTemplateInstance {
			nested, err := ex.Expand(tok.Template)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, tok)
	}
	return out, nil
}
