package ooxml

import (
	"slices"
	"strings"

	"github.com/beevik/etree"

	"cvstyle/docmodel"
)

// Canonical returns stable text form of a property element: value of the
// sole w:val attribute, sorted attributes otherwise, nested elements in
// parentheses. Toggle elements without attributes are "on".
func Canonical(el *etree.Element) string {
	children := el.ChildElements()
	if len(el.Attr) == 1 && len(children) == 0 && (el.Attr[0].FullKey() == "w:val" || el.Attr[0].FullKey() == "w14:val") {
		return el.Attr[0].Value
	}
	var parts []string
	for _, a := range el.Attr {
		parts = append(parts, a.FullKey()+"="+a.Value)
	}
	slices.Sort(parts)
	for _, c := range children {
		parts = append(parts, c.FullTag()+"("+Canonical(c)+")")
	}
	if len(parts) == 0 {
		return "on"
	}
	return strings.Join(parts, " ")
}

// PropsOf reads properties container (w:pPr, w:rPr) into a map, skipping
// listed element names.
func PropsOf(container *etree.Element, skip ...string) docmodel.Props {
	props := make(docmodel.Props)
	if container == nil {
		return props
	}
	for _, c := range container.ChildElements() {
		if slices.Contains(skip, c.FullTag()) {
			continue
		}
		props[c.FullTag()] = Canonical(c)
	}
	return props
}
