// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"strings"
)

// ToXML renders the assembled tree as an XML document fragment starting
// at root. When indent is non-empty, each nesting level is prefixed with
// one copy of it and elements are newline-separated; an empty indent
// produces a single compact line, matching spec §4.7.
func ToXML(root *XmlNode, indent string) string {
	var b strings.Builder
	writeNode(&b, root, indent, 0)
	return b.String()
}

func writeNode(b *strings.Builder, n *XmlNode, indent string, depth int) {
	switch n.Kind {
	case NodeText:
		b.WriteString(escapeXMLText(n.Text))
		return
	case NodeCDATA:
		b.WriteString("<![CDATA[")
		b.WriteString(n.Text)
		b.WriteString("]]>")
		return
	case NodePI:
		b.WriteString("<?")
		b.WriteString(n.Name)
		if n.Text != "" {
			b.WriteString(" ")
			b.WriteString(n.Text)
		}
		b.WriteString("?>")
		return
	}

	writeIndent(b, indent, depth)
	b.WriteString("<")
	b.WriteString(n.Name)
	for _, a := range n.Attributes {
		// An attribute whose value never arrived (e.g. an optional
		// substitution that resolved to NullType) is omitted entirely
		// rather than emitted as name="".
		if a.Value == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escapeXMLAttr(a.Value))
		b.WriteString(`"`)
	}

	if len(n.Children) == 0 {
		b.WriteString("></")
		b.WriteString(n.Name)
		b.WriteString(">")
		if indent != "" {
			b.WriteString("\n")
		}
		return
	}

	b.WriteString(">")
	onlyText := isTextOnly(n.Children)
	if indent != "" && !onlyText {
		b.WriteString("\n")
	}
	for _, c := range n.Children {
		writeNode(b, c, indent, depth+1)
	}
	if indent != "" && !onlyText {
		writeIndent(b, indent, depth)
	}
	b.WriteString("</")
	b.WriteString(n.Name)
	b.WriteString(">")
	if indent != "" {
		b.WriteString("\n")
	}
}

func isTextOnly(children []*XmlNode) bool {
	for _, c := range children {
		if c.Kind != NodeText {
			return false
		}
	}
	return len(children) > 0
}

func writeIndent(b *strings.Builder, indent string, depth int) {
	if indent == "" {
		return
	}
	for i := 0; i < depth; i++ {
		b.WriteString(indent)
	}
}

func escapeXMLText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}

func escapeXMLAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}
