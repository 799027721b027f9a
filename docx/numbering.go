package docx

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"cvstyle/numbering"
	"cvstyle/ooxml"
)

// ParseNumbering loads existing numbering part.
func (d *Document) ParseNumbering(data []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("unable to parse numbering part: %w", err)
	}
	if root := doc.Root(); root == nil || root.FullTag() != "w:numbering" {
		return fmt.Errorf("numbering part has no w:numbering root")
	}
	d.numbering = doc
	return nil
}

func (d *Document) numberingRoot() *etree.Element {
	if d.numbering == nil {
		d.numbering = ooxml.NewDocument()
		ooxml.DeclareNamespaces(d.numbering.CreateElement("w:numbering"))
	}
	return d.numbering.Root()
}

// KnownList reports whether numbering part defines list.
func (d *Document) KnownList(numID int) bool {
	if d.numbering == nil {
		return false
	}
	for _, num := range d.numbering.Root().SelectElements("w:num") {
		if v, ok := ooxml.AttrInt(num, "w:numId"); ok && int(v) == numID {
			return true
		}
	}
	return false
}

// NextIDs returns first free list and abstract definition ids.
func (d *Document) NextIDs() (list, abstract int) {
	list = 1
	if d.numbering == nil {
		return list, 0
	}
	root := d.numbering.Root()
	for _, num := range root.SelectElements("w:num") {
		if v, ok := ooxml.AttrInt(num, "w:numId"); ok {
			list = max(list, int(v)+1)
		}
	}
	for _, an := range root.SelectElements("w:abstractNum") {
		if v, ok := ooxml.AttrInt(an, "w:abstractNumId"); ok {
			abstract = max(abstract, int(v)+1)
		}
	}
	return list, abstract
}

// SetNumbering merges definitions into numbering part. All w:abstractNum
// elements precede w:num ones. Definitions already present are left alone.
func (d *Document) SetNumbering(defs []numbering.Definition) {
	root := d.numberingRoot()
	for _, def := range defs {
		if d.KnownList(def.ListID) {
			continue
		}
		an := etree.NewElement("w:abstractNum")
		an.CreateAttr("w:abstractNumId", strconv.Itoa(def.AbstractID))
		ooxml.Val(an, "w:multiLevelType", "hybridMultilevel")
		for _, lvl := range def.Levels {
			l := an.CreateElement("w:lvl")
			l.CreateAttr("w:ilvl", strconv.Itoa(lvl.Level))
			ooxml.Val(l, "w:start", "1")
			ooxml.Val(l, "w:numFmt", "bullet")
			ooxml.Val(l, "w:lvlText", lvl.Glyph)
			ooxml.Val(l, "w:lvlJc", "left")
			ind := l.CreateElement("w:pPr").CreateElement("w:ind")
			ind.CreateAttr("w:left", strconv.FormatInt(lvl.LeftTwips, 10))
			ind.CreateAttr("w:hanging", strconv.FormatInt(lvl.HangingTwips, 10))
		}

		pos := len(root.Child)
		if first := root.SelectElement("w:num"); first != nil {
			pos = first.Index()
		}
		root.InsertChildAt(pos, an)

		num := root.CreateElement("w:num")
		num.CreateAttr("w:numId", strconv.Itoa(def.ListID))
		ooxml.Val(num, "w:abstractNumId", strconv.Itoa(def.AbstractID))
	}
	d.log.Debug("Numbering definitions merged", zap.Int("count", len(defs)))
}

// NumberingXML serializes numbering part, nil when document has no lists.
func (d *Document) NumberingXML() ([]byte, error) {
	if d.numbering == nil {
		return nil, nil
	}
	d.numbering.Indent(2)
	data, err := d.numbering.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("unable to serialize numbering part: %w", err)
	}
	return data, nil
}
