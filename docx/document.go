// Package docx implements the document handle on top of WordprocessingML
// parts kept as etree documents.
package docx

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"cvstyle/docmodel"
	"cvstyle/ooxml"
	"cvstyle/utils/debug"
)

// paragraph ids must stay below 0x80000000
const maxParaID = 0x7FFFFFFF

// Document is an in-memory WordprocessingML document.
type Document struct {
	log  *zap.Logger
	doc  *etree.Document
	body *etree.Element

	numbering *etree.Document
	styles    []byte

	// source is the package document was loaded from, untouched parts are
	// copied from it on save
	source string
	nextID uint32
}

// New creates empty document.
func New(log *zap.Logger) *Document {
	if log == nil {
		log = zap.NewNop()
	}
	doc := ooxml.NewDocument()
	root := doc.CreateElement("w:document")
	ooxml.DeclareNamespaces(root)
	body := root.CreateElement("w:body")
	return &Document{
		log:    log.Named("docx"),
		doc:    doc,
		body:   body,
		nextID: 1,
	}
}

// Parse reads word/document.xml content. Paragraphs without w14:paraId get
// one so every paragraph has a stable identity.
func Parse(data []byte, log *zap.Logger) (*Document, error) {
	if log == nil {
		log = zap.NewNop()
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse document part: %w", err)
	}
	root := doc.Root()
	if root == nil || root.FullTag() != "w:document" {
		return nil, fmt.Errorf("document part has no w:document root")
	}
	body := root.SelectElement("w:body")
	if body == nil {
		return nil, fmt.Errorf("document part has no w:body")
	}
	ensureW14(root)

	d := &Document{log: log.Named("docx"), doc: doc, body: body, nextID: 1}

	// Copied paragraphs keep their w14:paraId, every repeat after the first
	// gets a fresh one.
	var missing []*etree.Element
	seen := make(map[uint32]struct{})
	walk(body, 0, func(el *etree.Element, _ int) bool {
		if el.FullTag() != "w:p" {
			return true
		}
		id := el.SelectAttrValue("w14:paraId", "")
		n, err := strconv.ParseUint(id, 16, 32)
		if id == "" || err != nil || n == 0 || n > maxParaID {
			missing = append(missing, el)
			return true
		}
		if _, dup := seen[uint32(n)]; dup {
			missing = append(missing, el)
			return true
		}
		seen[uint32(n)] = struct{}{}
		d.nextID = max(d.nextID, uint32(n)+1)
		return true
	})
	for _, el := range missing {
		d.assignID(el)
	}
	if len(missing) > 0 {
		d.log.Debug("Assigned paragraph ids", zap.Int("count", len(missing)))
	}
	return d, nil
}

// ensureW14 makes sure w14 prefix is declared and ignorable.
func ensureW14(root *etree.Element) {
	if root.SelectAttr("xmlns:w14") == nil {
		root.CreateAttr("xmlns:w14", ooxml.NsW14)
	}
	if root.SelectAttr("xmlns:mc") == nil {
		root.CreateAttr("xmlns:mc", ooxml.NsMC)
	}
	ign := root.SelectAttrValue("mc:Ignorable", "")
	if !slices.Contains(strings.Fields(ign), "w14") {
		root.CreateAttr("mc:Ignorable", strings.TrimSpace(ign+" w14"))
	}
}

func (d *Document) assignID(el *etree.Element) string {
	id := fmt.Sprintf("%08X", d.nextID)
	d.nextID++
	el.CreateAttr("w14:paraId", id)
	return id
}

// containers are elements whose children may include paragraphs
var containers = map[string]bool{
	"w:tbl":        true,
	"w:tr":         true,
	"w:tc":         true,
	"w:sdt":        true,
	"w:sdtContent": true,
	"w:customXml":  true,
}

// walk visits paragraphs and containers depth first in document order. Text
// boxes anchored in a paragraph are visited right after it.
func walk(el *etree.Element, depth int, fn func(*etree.Element, int) bool) bool {
	for _, c := range el.ChildElements() {
		tag := c.FullTag()
		if tag == "w:p" || containers[tag] {
			if !fn(c, depth) {
				return false
			}
		}
		switch {
		case containers[tag]:
			if !walk(c, depth+1, fn) {
				return false
			}
		case tag == "w:p":
			for _, box := range textBoxes(c, nil) {
				if !fn(box, depth+1) || !walk(box, depth+2, fn) {
					return false
				}
			}
		}
	}
	return true
}

// textBoxes finds w:txbxContent elements under paragraph runs. Only one
// branch of mc:AlternateContent is used, Choice when present, so the same
// box in DrawingML and VML renditions is seen once.
func textBoxes(el *etree.Element, out []*etree.Element) []*etree.Element {
	for _, c := range el.ChildElements() {
		switch c.FullTag() {
		case "w:txbxContent":
			out = append(out, c)
		case "w:p", "w:pPr", "w:rPr":
		case "mc:AlternateContent":
			branch := c.SelectElement("mc:Choice")
			if branch == nil {
				branch = c.SelectElement("mc:Fallback")
			}
			if branch != nil {
				out = textBoxes(branch, out)
			}
		default:
			out = textBoxes(c, out)
		}
	}
	return out
}

// Paragraphs yields every paragraph including those inside (nested) tables
// and text boxes.
func (d *Document) Paragraphs() iter.Seq[docmodel.Paragraph] {
	return func(yield func(docmodel.Paragraph) bool) {
		walk(d.body, 0, func(el *etree.Element, _ int) bool {
			if el.FullTag() != "w:p" {
				return true
			}
			return yield(&Paragraph{d: d, el: el})
		})
	}
}

// Paragraph finds paragraph by id.
func (d *Document) Paragraph(id string) (*Paragraph, bool) {
	for p := range d.Paragraphs() {
		if p.ID() == id {
			return p.(*Paragraph), true
		}
	}
	return nil, false
}

// Body returns top level container.
func (d *Document) Body() *Container {
	return &Container{d: d, el: d.body}
}

// Container holds block content: document body or table cell.
type Container struct {
	d  *Document
	el *etree.Element
}

func (c *Container) insert(el *etree.Element) {
	// body keeps section properties last
	if sect := c.el.SelectElement("w:sectPr"); sect != nil && c.el == c.d.body {
		c.el.InsertChildAt(sect.Index(), el)
		return
	}
	c.el.AddChild(el)
}

// AddParagraph appends empty paragraph.
func (c *Container) AddParagraph() *Paragraph {
	el := etree.NewElement("w:p")
	c.d.assignID(el)
	c.insert(el)
	return &Paragraph{d: c.d, el: el}
}

// AddTable appends table with rows x cols empty cells.
func (c *Container) AddTable(rows, cols int) *Table {
	tbl := etree.NewElement("w:tbl")
	pr := tbl.CreateElement("w:tblPr")
	w := pr.CreateElement("w:tblW")
	w.CreateAttr("w:w", "0")
	w.CreateAttr("w:type", "auto")
	grid := tbl.CreateElement("w:tblGrid")
	for range cols {
		grid.CreateElement("w:gridCol")
	}
	for range rows {
		tr := tbl.CreateElement("w:tr")
		for range cols {
			tr.CreateElement("w:tc")
		}
	}
	c.insert(tbl)
	return &Table{d: c.d, el: tbl}
}

// Table is a w:tbl element.
type Table struct {
	d  *Document
	el *etree.Element
}

// Cell returns container for cell, nil when out of range.
func (t *Table) Cell(row, col int) *Container {
	rows := t.el.SelectElements("w:tr")
	if row < 0 || row >= len(rows) {
		return nil
	}
	cells := rows[row].SelectElements("w:tc")
	if col < 0 || col >= len(cells) {
		return nil
	}
	return &Container{d: t.d, el: cells[col]}
}

// fixEmptyCells adds empty paragraph to cells without block content, every
// cell must end with a paragraph.
func (d *Document) fixEmptyCells() {
	for _, tc := range d.body.FindElements(".//w:tc") {
		if len(tc.SelectElements("w:p")) == 0 {
			el := tc.CreateElement("w:p")
			d.assignID(el)
		}
	}
}

// DocumentXML serializes document part.
func (d *Document) DocumentXML() ([]byte, error) {
	d.fixEmptyCells()
	d.doc.Indent(2)
	data, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("unable to serialize document part: %w", err)
	}
	return data, nil
}

// SetStyles replaces styles part.
func (d *Document) SetStyles(data []byte) {
	d.styles = data
}

// Styles returns styles part, nil when document has none.
func (d *Document) Styles() []byte {
	return d.styles
}

// Dump renders paragraph tree for debugging.
func (d *Document) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "document")
	walk(d.body, 1, func(el *etree.Element, depth int) bool {
		switch el.FullTag() {
		case "w:p":
			p := &Paragraph{d: d, el: el}
			style, _ := p.StyleID()
			num := "-"
			if ref, ok, err := p.NumRef(); err != nil {
				num = "malformed"
			} else if ok {
				num = fmt.Sprintf("%d/%d", ref.NumID, ref.Level)
			}
			tw.Line(depth, "paragraph %s style=%q num=%s runs=%d", p.ID(), style, num, len(p.runs()))
			tw.TextBlock(depth+1, "text", p.Text())
			tw.Props(depth+1, "direct", p.DirectParagraphProps())
		case "w:tbl":
			tw.Line(depth, "table")
		case "w:tr":
			tw.Line(depth, "row")
		case "w:tc":
			tw.Line(depth, "cell")
		default:
			tw.Line(depth, "%s", el.FullTag())
		}
		return true
	})
	return tw.String()
}
