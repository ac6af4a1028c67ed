// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

// NodeKind identifies what an XmlNode represents in the assembled tree.
type NodeKind uint8

// Node kinds the model assembler produces, spec §4.6.
const (
	NodeElement NodeKind = iota
	NodeText
	NodeCDATA
	NodePI
)

// Attribute is one name/value pair attached to an XmlNode.
type Attribute struct {
	Name  string
	Value string
}

// XmlNode is one element or text-bearing node of the assembled document
// tree. Element nodes carry Children; text-bearing nodes carry Text.
type XmlNode struct {
	Kind       NodeKind
	Name       string // element name, or PI target for NodePI
	Attributes []Attribute
	Children   []*XmlNode
	Text       string // concatenated text for NodeText/NodeCDATA/NodePI
}

// modelAssembler consumes a flattened token sequence and builds an
// XmlNode tree, maintaining an explicit element stack rather than
// recursion so a malformed stream (unbalanced EndElement) surfaces as
// ErrModelState instead of a panic.
type modelAssembler struct {
	root  *XmlNode
	stack []*XmlNode
	// pendingOpen is the element whose OpenStartElement has been seen but
	// whose CloseStartElement/CloseEmptyElement has not, i.e. the element
	// still accepting Attribute tokens.
	pendingOpen *XmlNode
	// awaitingAttrValue is true between an Attribute token and the Value
	// token that supplies its value.
	awaitingAttrValue bool
	// pendingPI is the PI node whose target has been seen but whose data
	// has not, i.e. between a PITarget and PIData token pair.
	pendingPI *XmlNode
}

func newModelAssembler() *modelAssembler {
	return &modelAssembler{}
}

// assembleModel builds the XmlNode tree for tokens, returning the single root
// element. tokens must already be fully expanded (no TemplateInstance,
// Normal/OptionalSubstitution, or raw embedded-BinXml Value tokens).
func assembleModel(tokens []*Token) (*XmlNode, error) {
	a := newModelAssembler()
	for _, tok := range tokens {
		if err := a.feed(tok); err != nil {
			return nil, err
		}
	}
	if a.root == nil {
		return nil, ErrModelState
	}
	if len(a.stack) != 0 || a.pendingOpen != nil {
		return nil, ErrModelState
	}
	return a.root, nil
}

func (a *modelAssembler) current() *XmlNode {
	if len(a.stack) == 0 {
		return nil
	}
	return a.stack[len(a.stack)-1]
}

func (a *modelAssembler) feed(tok *Token) error {
	switch tok.Kind {
	case TokenFragmentHeader, TokenEOF:
		return nil

	case TokenOpenStartElement:
		n := &XmlNode{Kind: NodeElement, Name: tok.Name}
		if parent := a.current(); parent != nil {
			parent.Children = append(parent.Children, n)
		} else if a.root == nil {
			a.root = n
		} else {
			return ErrModelState
		}
		a.stack = append(a.stack, n)
		a.pendingOpen = n
		return nil

	case TokenAttribute:
		if a.pendingOpen == nil {
			return ErrModelState
		}
		a.pendingOpen.Attributes = append(a.pendingOpen.Attributes, Attribute{Name: tok.AttrName})
		a.awaitingAttrValue = true
		return nil

	case TokenValue:
		if a.awaitingAttrValue {
			idx := len(a.pendingOpen.Attributes) - 1
			a.pendingOpen.Attributes[idx].Value = tok.Value.Text()
			a.awaitingAttrValue = false
			return nil
		}
		parent := a.current()
		if parent == nil {
			return ErrModelState
		}
		parent.Children = append(parent.Children, &XmlNode{Kind: NodeText, Text: tok.Value.Text()})
		return nil

	case TokenCloseStartElement:
		if a.pendingOpen == nil {
			return ErrModelState
		}
		a.pendingOpen = nil
		a.awaitingAttrValue = false
		return nil

	case TokenCloseEmptyElement:
		if a.pendingOpen == nil {
			return ErrModelState
		}
		a.pendingOpen = nil
		a.awaitingAttrValue = false
		a.stack = a.stack[:len(a.stack)-1]
		return nil

	case TokenEndElement:
		if len(a.stack) == 0 {
			return ErrModelState
		}
		a.stack = a.stack[:len(a.stack)-1]
		return nil

	case TokenCDATASection:
		parent := a.current()
		if parent == nil {
			return ErrModelState
		}
		parent.Children = append(parent.Children, &XmlNode{Kind: NodeCDATA, Text: tok.Text})
		return nil

	case TokenCharRef, TokenEntityRef:
		parent := a.current()
		if parent == nil {
			return ErrModelState
		}
		parent.Children = append(parent.Children, &XmlNode{Kind: NodeText, Text: tok.Text})
		return nil

	case TokenPITarget:
		parent := a.current()
		if parent == nil {
			return ErrModelState
		}
		pi := &XmlNode{Kind: NodePI, Name: tok.Text}
		parent.Children = append(parent.Children, pi)
		a.pendingPI = pi
		return nil

	case TokenPIData:
		if a.pendingPI == nil {
			return ErrModelState
		}
		a.pendingPI.Text = tok.Text
		a.pendingPI = nil
		return nil

	default:
		return ErrModelState
	}
}
