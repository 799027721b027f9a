package docx

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/beevik/etree"

	"cvstyle/docmodel"
	"cvstyle/ooxml"
)

// Paragraph is a live view of w:p element.
type Paragraph struct {
	d  *Document
	el *etree.Element
}

var _ docmodel.Paragraph = (*Paragraph)(nil)

// ID returns w14:paraId.
func (p *Paragraph) ID() string {
	return p.el.SelectAttrValue("w14:paraId", "")
}

// run containers which may wrap runs inside paragraph
var runContainers = map[string]bool{
	"w:hyperlink":  true,
	"w:ins":        true,
	"w:smartTag":   true,
	"w:fldSimple":  true,
	"w:sdt":        true,
	"w:sdtContent": true,
}

func collectRuns(el *etree.Element, out []*etree.Element) []*etree.Element {
	for _, c := range el.ChildElements() {
		switch tag := c.FullTag(); {
		case tag == "w:r":
			out = append(out, c)
		case runContainers[tag]:
			out = collectRuns(c, out)
		}
	}
	return out
}

func (p *Paragraph) runs() []*etree.Element {
	return collectRuns(p.el, nil)
}

// HasContent reports whether paragraph has at least one run.
func (p *Paragraph) HasContent() bool {
	return len(p.runs()) > 0
}

// Text returns paragraph text, tabs and breaks are rendered as characters.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.runs() {
		for _, c := range r.ChildElements() {
			switch c.FullTag() {
			case "w:t":
				b.WriteString(c.Text())
			case "w:tab":
				b.WriteByte('\t')
			case "w:br", "w:cr":
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func (p *Paragraph) pPr() *etree.Element {
	return p.el.SelectElement("w:pPr")
}

// StyleID returns paragraph style reference.
func (p *Paragraph) StyleID() (string, bool) {
	pPr := p.pPr()
	if pPr == nil {
		return "", false
	}
	st := pPr.SelectElement("w:pStyle")
	if st == nil {
		return "", false
	}
	return st.SelectAttrValue("w:val", ""), true
}

// SetStyleID sets style reference, w:pStyle is always the first property.
func (p *Paragraph) SetStyleID(id string) {
	pPr := ooxml.EnsureFirst(p.el, "w:pPr")
	if st := pPr.SelectElement("w:pStyle"); st != nil {
		st.CreateAttr("w:val", id)
		return
	}
	st := etree.NewElement("w:pStyle")
	st.CreateAttr("w:val", id)
	pPr.InsertChildAt(0, st)
}

// NumRef reads w:numPr. Missing w:ilvl means level 0.
func (p *Paragraph) NumRef() (docmodel.NumRef, bool, error) {
	pPr := p.pPr()
	if pPr == nil {
		return docmodel.NumRef{}, false, nil
	}
	numPr := pPr.SelectElement("w:numPr")
	if numPr == nil {
		return docmodel.NumRef{}, false, nil
	}
	numID := numPr.SelectElement("w:numId")
	if numID == nil {
		return docmodel.NumRef{}, true, fmt.Errorf("%w: paragraph %s has no w:numId", docmodel.ErrMalformedNumRef, p.ID())
	}
	id, err := strconv.Atoi(strings.TrimSpace(numID.SelectAttrValue("w:val", "")))
	if err != nil || id < 0 {
		return docmodel.NumRef{}, true, fmt.Errorf("%w: paragraph %s has bad w:numId %q", docmodel.ErrMalformedNumRef, p.ID(), numID.SelectAttrValue("w:val", ""))
	}
	ref := docmodel.NumRef{NumID: id}
	if ilvl := numPr.SelectElement("w:ilvl"); ilvl != nil {
		lvl, err := strconv.Atoi(strings.TrimSpace(ilvl.SelectAttrValue("w:val", "")))
		if err != nil || lvl < 0 {
			return docmodel.NumRef{}, true, fmt.Errorf("%w: paragraph %s has bad w:ilvl %q", docmodel.ErrMalformedNumRef, p.ID(), ilvl.SelectAttrValue("w:val", ""))
		}
		ref.Level = lvl
	}
	return ref, true, nil
}

// pPr children which precede w:numPr in schema order
var beforeNumPr = map[string]bool{
	"w:pStyle":          true,
	"w:keepNext":        true,
	"w:keepLines":       true,
	"w:pageBreakBefore": true,
	"w:framePr":         true,
	"w:widowControl":    true,
}

// SetNumRef replaces w:numPr keeping schema order of pPr children.
func (p *Paragraph) SetNumRef(ref docmodel.NumRef) {
	pPr := ooxml.EnsureFirst(p.el, "w:pPr")
	if old := pPr.SelectElement("w:numPr"); old != nil {
		pPr.RemoveChild(old)
	}
	numPr := etree.NewElement("w:numPr")
	ooxml.IntVal(numPr, "w:ilvl", int64(ref.Level))
	ooxml.IntVal(numPr, "w:numId", int64(ref.NumID))

	pos := 0
	for _, c := range pPr.ChildElements() {
		if !beforeNumPr[c.FullTag()] {
			break
		}
		pos = c.Index() + 1
	}
	pPr.InsertChildAt(pos, numPr)
}

// DirectParagraphProps returns pPr properties except references.
func (p *Paragraph) DirectParagraphProps() docmodel.Props {
	return ooxml.PropsOf(p.pPr(), "w:pStyle", "w:numPr", "w:rPr", "w:sectPr", "w:pPrChange")
}

// DirectRunProps returns rPr properties of the first run.
func (p *Paragraph) DirectRunProps() docmodel.Props {
	runs := p.runs()
	if len(runs) == 0 {
		return docmodel.Props{}
	}
	return ooxml.PropsOf(runs[0].SelectElement("w:rPr"), "w:rStyle", "w:rPrChange")
}

// RemoveDirectParagraphProps drops named pPr children.
func (p *Paragraph) RemoveDirectParagraphProps(names ...string) int {
	pPr := p.pPr()
	if pPr == nil {
		return 0
	}
	n := 0
	for _, name := range names {
		if el := pPr.SelectElement(name); el != nil {
			pPr.RemoveChild(el)
			n++
		}
	}
	return n
}

const nbsp = '\u00a0'

type piece struct {
	el   *etree.Element
	text string
	tab  bool
}

// StripGlyphPrefix removes leading glyph runes and whitespace around them.
// Glyph may be split across runs. Runs are kept so paragraph does not lose
// content even when nothing but the glyph was there.
func (p *Paragraph) StripGlyphPrefix(glyphs string) (string, bool) {
	if glyphs == "" {
		return "", false
	}
	var pieces []piece
loop:
	for _, r := range p.runs() {
		for _, c := range r.ChildElements() {
			switch c.FullTag() {
			case "w:rPr":
			case "w:t":
				pieces = append(pieces, piece{el: c, text: c.Text()})
			case "w:tab":
				pieces = append(pieces, piece{el: c, text: "\t", tab: true})
			default:
				// anything else (break, drawing, field) ends the prefix
				pieces = append(pieces, piece{el: c})
				break loop
			}
		}
	}

	stop, offset := len(pieces), 0
	sawGlyph := false
scan:
	for i, pc := range pieces {
		if pc.text == "" && !pc.tab && pc.el.FullTag() != "w:t" {
			stop = i
			break
		}
		for j, r := range pc.text {
			switch {
			case strings.ContainsRune(glyphs, r):
				sawGlyph = true
			case unicode.IsSpace(r) || r == nbsp:
			default:
				stop, offset = i, j
				break scan
			}
		}
	}
	if !sawGlyph {
		return "", false
	}

	var removed strings.Builder
	for i := range stop {
		pc := pieces[i]
		removed.WriteString(pc.text)
		if parent := pc.el.Parent(); parent != nil {
			parent.RemoveChild(pc.el)
		}
	}
	if stop < len(pieces) && offset > 0 {
		pc := pieces[stop]
		removed.WriteString(pc.text[:offset])
		setText(pc.el, pc.text[offset:])
	}
	return removed.String(), true
}

func setText(t *etree.Element, text string) {
	t.SetText(text)
	if text != strings.TrimSpace(text) {
		t.CreateAttr("xml:space", "preserve")
	} else {
		t.RemoveAttr("xml:space")
	}
}

// AddRun appends run with text, tab characters become w:tab elements.
func (p *Paragraph) AddRun(text string) *Paragraph {
	r := p.el.CreateElement("w:r")
	for i, part := range strings.Split(text, "\t") {
		if i > 0 {
			r.CreateElement("w:tab")
		}
		if part != "" {
			setText(r.CreateElement("w:t"), part)
		}
	}
	return p
}

// AddTab appends run containing a single tab.
func (p *Paragraph) AddTab() *Paragraph {
	p.el.CreateElement("w:r").CreateElement("w:tab")
	return p
}

// SetDirectProp sets direct paragraph property element with attributes
// given as key, value pairs.
func (p *Paragraph) SetDirectProp(tag string, kv ...string) *Paragraph {
	pPr := ooxml.EnsureFirst(p.el, "w:pPr")
	setProp(pPr, tag, kv)
	return p
}

// SetRunProp sets direct character property on every run.
func (p *Paragraph) SetRunProp(tag string, kv ...string) *Paragraph {
	for _, r := range p.runs() {
		setProp(ooxml.EnsureFirst(r, "w:rPr"), tag, kv)
	}
	return p
}

func setProp(container *etree.Element, tag string, kv []string) {
	el := ooxml.Ensure(container, tag)
	for i := 0; i+1 < len(kv); i += 2 {
		el.CreateAttr(kv[i], kv[i+1])
	}
}

// PrependRun inserts run with text before the first run.
func (p *Paragraph) PrependRun(text string) *Paragraph {
	r := etree.NewElement("w:r")
	setText(r.CreateElement("w:t"), text)
	pos := 0
	if runs := p.runs(); len(runs) > 0 && runs[0].Parent() == p.el {
		pos = runs[0].Index()
	} else if pPr := p.pPr(); pPr != nil {
		pos = pPr.Index() + 1
	}
	p.el.InsertChildAt(pos, r)
	return p
}
