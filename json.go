// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"bytes"
	"encoding/json"
)

// jsonNode builds the native Go value tree for one XmlNode before it's
// handed to encoding/json, the same way the teacher's cmd/dump.go builds
// a plain map before calling json.Indent on its marshaled form.
func jsonNode(n *XmlNode, separateAttrs bool) interface{} {
	switch n.Kind {
	case NodeText:
		return n.Text
	case NodeCDATA:
		return n.Text
	case NodePI:
		return n.Text
	}

	out := make(map[string]interface{})
	if separateAttrs {
		if len(n.Attributes) > 0 {
			attrs := make(map[string]interface{}, len(n.Attributes))
			for _, a := range n.Attributes {
				attrs[a.Name] = a.Value
			}
			out["#attributes"] = attrs
		}
	} else {
		for _, a := range n.Attributes {
			out["@"+a.Name] = a.Value
		}
	}

	textOnly := isTextOnly(n.Children)
	switch {
	case len(n.Children) == 0:
		if len(out) == 0 {
			return nil
		}
		return out
	case textOnly:
		var text string
		for _, c := range n.Children {
			text += c.Text
		}
		if len(out) == 0 {
			return text
		}
		out["#text"] = text
		return out
	default:
		childGroups := make(map[string][]interface{})
		var order []string
		for _, c := range n.Children {
			if c.Kind != NodeElement {
				continue
			}
			if name, ok := dataHoistName(c); ok {
				out[name] = dataHoistText(c)
				continue
			}
			key := c.Name
			if _, seen := childGroups[key]; !seen {
				order = append(order, key)
			}
			childGroups[key] = append(childGroups[key], jsonNode(c, separateAttrs))
		}
		for _, key := range order {
			vals := childGroups[key]
			if len(vals) == 1 {
				out[key] = vals[0]
			} else {
				out[key] = vals
			}
		}
		return out
	}
}

// dataHoistName reports whether n is a <Data Name="..."> element, the
// conventional EventData/UserData shape whose Name attribute should
// become a direct key of its enclosing container instead of grouping
// under the literal key "Data".
func dataHoistName(n *XmlNode) (string, bool) {
	if n.Name != "Data" {
		return "", false
	}
	for _, a := range n.Attributes {
		if a.Name == "Name" {
			return a.Value, true
		}
	}
	return "", false
}

// dataHoistText concatenates a hoisted Data element's text content, the
// value it maps to once hoisted.
func dataHoistText(n *XmlNode) string {
	var text string
	for _, c := range n.Children {
		if c.Kind == NodeText || c.Kind == NodeCDATA {
			text += c.Text
		}
	}
	return text
}

// ToJSON renders the assembled tree as JSON, indented with indent when
// non-empty (via encoding/json's Indent, matching cmd/dump.go's own
// marshal-then-Indent pattern rather than a streaming encoder).
func ToJSON(root *XmlNode, indent string, separateAttrs bool) ([]byte, error) {
	tree := map[string]interface{}{root.Name: jsonNode(root, separateAttrs)}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	if indent == "" {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
