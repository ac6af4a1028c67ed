// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"encoding/json"
	"testing"
)

func TestToJSONTextOnly(t *testing.T) {
	root := &XmlNode{
		Kind:     NodeElement,
		Name:     "Message",
		Children: []*XmlNode{{Kind: NodeText, Text: "hello"}},
	}
	raw, err := ToJSON(root, "", false)
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", raw, err)
	}
	if got["Message"] != "hello" {
		t.Errorf("ToJSON()[Message] = %v, want %q", got["Message"], "hello")
	}
}

func TestToJSONAttributesFlattened(t *testing.T) {
	root := &XmlNode{
		Kind:       NodeElement,
		Name:       "Data",
		Attributes: []Attribute{{Name: "Name", Value: "Foo"}},
		Children:   []*XmlNode{{Kind: NodeText, Text: "bar"}},
	}
	raw, err := ToJSON(root, "", false)
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var got map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", raw, err)
	}
	data := got["Data"]
	if data["@Name"] != "Foo" {
		t.Errorf("ToJSON()[Data][@Name] = %v, want %q", data["@Name"], "Foo")
	}
	if data["#text"] != "bar" {
		t.Errorf("ToJSON()[Data][#text] = %v, want %q", data["#text"], "bar")
	}
}

func TestToJSONAttributesSeparated(t *testing.T) {
	root := &XmlNode{
		Kind:       NodeElement,
		Name:       "Data",
		Attributes: []Attribute{{Name: "Name", Value: "Foo"}},
		Children:   []*XmlNode{{Kind: NodeText, Text: "bar"}},
	}
	raw, err := ToJSON(root, "", true)
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var got map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", raw, err)
	}
	attrs, ok := got["Data"]["#attributes"].(map[string]interface{})
	if !ok {
		t.Fatalf("ToJSON()[Data][#attributes] missing or wrong type: %v", got["Data"]["#attributes"])
	}
	if attrs["Name"] != "Foo" {
		t.Errorf("ToJSON()[Data][#attributes][Name] = %v, want %q", attrs["Name"], "Foo")
	}
}

// TestToJSONEventDataHoisting exercises spec's EventData/Data Name=...
// hoisting: <EventData><Data Name="Error">...</Data><Data
// Name="ErrorMessage">...</Data></EventData> must render as a flat
// {"Error": "...", "ErrorMessage": "..."} map, not as a "Data" array.
func TestToJSONEventDataHoisting(t *testing.T) {
	root := &XmlNode{
		Kind: NodeElement,
		Name: "EventData",
		Children: []*XmlNode{
			{Kind: NodeElement, Name: "Data", Attributes: []Attribute{{Name: "Name", Value: "Error"}},
				Children: []*XmlNode{{Kind: NodeText, Text: "2326069467"}}},
			{Kind: NodeElement, Name: "Data", Attributes: []Attribute{{Name: "Name", Value: "ErrorMessage"}},
				Children: []*XmlNode{{Kind: NodeText, Text: "The cache has been partitioned successfully."}}},
		},
	}
	raw, err := ToJSON(root, "", false)
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var got map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", raw, err)
	}
	if _, present := got["EventData"]["Data"]; present {
		t.Fatalf("ToJSON()[EventData] still has a literal Data key: %v", got["EventData"])
	}
	if got["EventData"]["Error"] != "2326069467" {
		t.Errorf("ToJSON()[EventData][Error] = %v, want %q", got["EventData"]["Error"], "2326069467")
	}
	if got["EventData"]["ErrorMessage"] != "The cache has been partitioned successfully." {
		t.Errorf("ToJSON()[EventData][ErrorMessage] = %v, want the cache message", got["EventData"]["ErrorMessage"])
	}
}

// TestToJSONRepeatedChildrenBecomeArray covers the ordinary (non-Data)
// repeated-element grouping path: same name, no hoisting applies.
func TestToJSONRepeatedChildrenBecomeArray(t *testing.T) {
	root := &XmlNode{
		Kind: NodeElement,
		Name: "Bindings",
		Children: []*XmlNode{
			{Kind: NodeElement, Name: "Binding", Children: []*XmlNode{{Kind: NodeText, Text: "1"}}},
			{Kind: NodeElement, Name: "Binding", Children: []*XmlNode{{Kind: NodeText, Text: "2"}}},
		},
	}
	raw, err := ToJSON(root, "", false)
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var got map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", raw, err)
	}
	bindingArr, ok := got["Bindings"]["Binding"].([]interface{})
	if !ok || len(bindingArr) != 2 {
		t.Fatalf("ToJSON()[Bindings][Binding] = %v, want a 2-element array", got["Bindings"]["Binding"])
	}
}

func TestToJSONIndent(t *testing.T) {
	root := &XmlNode{Kind: NodeElement, Name: "E"}
	raw, err := ToJSON(root, "  ", false)
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("ToJSON() returned empty output")
	}
	// Indented output must contain a newline; compact output would not.
	hasNewline := false
	for _, b := range raw {
		if b == '\n' {
			hasNewline = true
			break
		}
	}
	if !hasNewline {
		t.Errorf("ToJSON() with indent produced no newline: %s", raw)
	}
}
