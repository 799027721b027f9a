// Package ooxml keeps WordprocessingML names and small helpers shared by
// the style emitter and the document implementation.
package ooxml

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	NsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NsW14 = "http://schemas.microsoft.com/office/word/2010/wordml"
	NsMC  = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	NsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// Package part names.
const (
	PartDocument  = "word/document.xml"
	PartStyles    = "word/styles.xml"
	PartNumbering = "word/numbering.xml"
)

// Media types of the parts.
const (
	MediaTypeStyles    = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
	MediaTypeNumbering = "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"
)

// NewDocument makes etree document with XML declaration every part carries.
func NewDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	return doc
}

// DeclareNamespaces adds w (and w14 marked ignorable) namespace declarations
// to root element.
func DeclareNamespaces(root *etree.Element) {
	root.CreateAttr("xmlns:w", NsW)
	root.CreateAttr("xmlns:w14", NsW14)
	root.CreateAttr("xmlns:mc", NsMC)
	root.CreateAttr("xmlns:r", NsR)
	root.CreateAttr("mc:Ignorable", "w14")
}

// Val creates child element with single w:val attribute.
func Val(parent *etree.Element, tag, val string) *etree.Element {
	el := parent.CreateElement(tag)
	el.CreateAttr(attrPrefix(tag)+":val", val)
	return el
}

// IntVal creates child element with integer w:val attribute.
func IntVal(parent *etree.Element, tag string, val int64) *etree.Element {
	return Val(parent, tag, strconv.FormatInt(val, 10))
}

// Ensure returns existing child element or creates one.
func Ensure(parent *etree.Element, tag string) *etree.Element {
	if el := parent.SelectElement(tag); el != nil {
		return el
	}
	return parent.CreateElement(tag)
}

// EnsureFirst returns existing child element or creates one as the first
// child (properties elements must precede content).
func EnsureFirst(parent *etree.Element, tag string) *etree.Element {
	if el := parent.SelectElement(tag); el != nil {
		return el
	}
	el := etree.NewElement(tag)
	parent.InsertChildAt(0, el)
	return el
}

// AttrInt reads integer attribute, ok is false when missing or malformed.
func AttrInt(el *etree.Element, key string) (int64, bool) {
	if el == nil {
		return 0, false
	}
	a := el.SelectAttr(key)
	if a == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(a.Value), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func attrPrefix(tag string) string {
	if prefix, _, ok := strings.Cut(tag, ":"); ok {
		return prefix
	}
	return "w"
}
