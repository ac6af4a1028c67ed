// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import "testing"

func TestToXMLEmptyElement(t *testing.T) {
	root := &XmlNode{Kind: NodeElement, Name: "E"}
	got := ToXML(root, "")
	want := "<E></E>"
	if got != want {
		t.Errorf("ToXML() = %q, want %q", got, want)
	}
}

func TestToXMLTextAndAttribute(t *testing.T) {
	root := &XmlNode{
		Kind:       NodeElement,
		Name:       "Message",
		Attributes: []Attribute{{Name: "Lang", Value: "en-US"}},
		Children:   []*XmlNode{{Kind: NodeText, Text: "hello"}},
	}
	got := ToXML(root, "")
	want := `<Message Lang="en-US">hello</Message>`
	if got != want {
		t.Errorf("ToXML() = %q, want %q", got, want)
	}
}

func TestToXMLOmitsEmptyAttribute(t *testing.T) {
	root := &XmlNode{
		Kind:       NodeElement,
		Name:       "Data",
		Attributes: []Attribute{{Name: "Name", Value: ""}},
	}
	got := ToXML(root, "")
	want := "<Data></Data>"
	if got != want {
		t.Errorf("ToXML() = %q, want %q", got, want)
	}
}

func TestToXMLEscapesText(t *testing.T) {
	root := &XmlNode{
		Kind:     NodeElement,
		Name:     "E",
		Children: []*XmlNode{{Kind: NodeText, Text: `a < b & c > d " e ' f`}},
	}
	got := ToXML(root, "")
	want := "<E>a &lt; b &amp; c &gt; d &quot; e &apos; f</E>"
	if got != want {
		t.Errorf("ToXML() = %q, want %q", got, want)
	}
}

func TestToXMLEscapesAttributeValue(t *testing.T) {
	root := &XmlNode{
		Kind:       NodeElement,
		Name:       "E",
		Attributes: []Attribute{{Name: "Val", Value: `a"b'c`}},
	}
	got := ToXML(root, "")
	want := `<E Val="a&quot;b&apos;c"></E>`
	if got != want {
		t.Errorf("ToXML() = %q, want %q", got, want)
	}
}

func TestToXMLNestedIndented(t *testing.T) {
	root := &XmlNode{
		Kind: NodeElement,
		Name: "Event",
		Children: []*XmlNode{
			{Kind: NodeElement, Name: "EventData", Children: []*XmlNode{
				{Kind: NodeElement, Name: "Data",
					Attributes: []Attribute{{Name: "Name", Value: "Foo"}},
					Children:   []*XmlNode{{Kind: NodeText, Text: "bar"}}},
			}},
		},
	}
	got := ToXML(root, "  ")
	want := "<Event>\n  <EventData>\n    <Data Name=\"Foo\">bar</Data>\n  </EventData>\n</Event>\n"
	if got != want {
		t.Errorf("ToXML() =\n%q\nwant\n%q", got, want)
	}
}
