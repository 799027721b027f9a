package emit

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cvstyle/common"
	"cvstyle/ooxml"
	"cvstyle/rules"
	"cvstyle/tokens"
	"cvstyle/units"
)

// ListBulletStyles are style ids generated for bullet nesting levels 0..2.
var ListBulletStyles = []string{"ListBullet", "ListBullet2", "ListBullet3"}

// Word writes WordprocessingML styles part.
type Word struct {
	log *zap.Logger
}

func selectorWords(selector string) []string {
	words := strings.FieldsFunc(strings.TrimPrefix(selector, "."), func(r rune) bool {
		return r == '-' || r == '_'
	})
	// Caser keeps state and cannot be shared
	title := cases.Title(language.Und)
	for i, w := range words {
		words[i] = title.String(w)
	}
	return words
}

// StyleID returns paragraph style id for selector: ".section-box" -> "SectionBox".
func StyleID(selector string) string {
	return strings.Join(selectorWords(selector), "")
}

// StyleName returns human readable style name: ".section-box" -> "Section Box".
func StyleName(selector string) string {
	return strings.Join(selectorWords(selector), " ")
}

func (e *Word) Emit(rs []rules.RawRule, tokensKey string) (Payload, error) {
	doc := ooxml.NewDocument()
	root := doc.CreateElement("w:styles")
	ooxml.DeclareNamespaces(root)
	root.CreateComment(fmt.Sprintf(" %s styles, tokens %s ", common.EngineWordProcessing, tokensKey))
	writeDefaults(root)

	ids := map[string]string{"Normal": ""}
	claim := func(id, group string) error {
		if prev, dup := ids[id]; dup {
			return fmt.Errorf("style %s of group %q clashes with group %q", id, group, prev)
		}
		ids[id] = group
		return nil
	}

	// List Bullet styles are derived from the first bullets rule only.
	var listsFrom string
	for _, r := range rs {
		if r.IsPage() {
			e.log.Debug("Page rule has no paragraph style equivalent, skipping", zap.String("group", r.Group()))
			continue
		}
		id := StyleID(r.Selector())
		if err := claim(id, r.Group()); err != nil {
			return Payload{}, err
		}
		st := newStyle(root, id, StyleName(r.Selector()))
		if err := e.fill(st, r); err != nil {
			return Payload{}, err
		}
		if r.Kind() != tokens.KindBullets {
			continue
		}
		if listsFrom != "" {
			e.log.Debug("List styles already defined, skipping",
				zap.String("group", r.Group()), zap.String("defined by", listsFrom))
			continue
		}
		for _, lid := range ListBulletStyles {
			if err := claim(lid, r.Group()); err != nil {
				return Payload{}, err
			}
		}
		if err := e.listStyles(root, r); err != nil {
			return Payload{}, err
		}
		listsFrom = r.Group()
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return Payload{}, fmt.Errorf("unable to serialize styles: %w", err)
	}
	return Payload{
		Engine:    common.EngineWordProcessing,
		MediaType: ooxml.MediaTypeStyles,
		Name:      "styles.xml",
		Data:      data,
	}, nil
}

// writeDefaults adds the lowest rungs of the formatting ladder: document
// defaults and the Normal style everything is based on.
func writeDefaults(root *etree.Element) {
	dd := root.CreateElement("w:docDefaults")
	rpr := dd.CreateElement("w:rPrDefault").CreateElement("w:rPr")
	ooxml.IntVal(rpr, "w:sz", 22)
	ooxml.IntVal(rpr, "w:szCs", 22)
	sp := dd.CreateElement("w:pPrDefault").CreateElement("w:pPr").CreateElement("w:spacing")
	sp.CreateAttr("w:after", "0")
	sp.CreateAttr("w:line", "240")
	sp.CreateAttr("w:lineRule", "auto")

	normal := root.CreateElement("w:style")
	normal.CreateAttr("w:type", "paragraph")
	normal.CreateAttr("w:default", "1")
	normal.CreateAttr("w:styleId", "Normal")
	ooxml.Val(normal, "w:name", "Normal")
	normal.CreateElement("w:qFormat")
}

func newStyle(root *etree.Element, id, name string) *etree.Element {
	st := root.CreateElement("w:style")
	st.CreateAttr("w:type", "paragraph")
	st.CreateAttr("w:customStyle", "1")
	st.CreateAttr("w:styleId", id)
	ooxml.Val(st, "w:name", name)
	ooxml.Val(st, "w:basedOn", "Normal")
	return st
}

func twips(v rules.Value) (int64, error) {
	if v.Kind != rules.KindLength {
		return 0, fmt.Errorf("value %s is not a length", v)
	}
	if v.Length.Unit == units.Twip {
		return units.RoundHalfUp(v.Length.Value), nil
	}
	return v.Length.Twips()
}

func hexColor(v rules.Value) string {
	if v.Kind != rules.KindColor {
		return "auto"
	}
	return strings.ToUpper(strings.TrimPrefix(v.Color.Hex(), "#"))
}

// props wraps rule reading, remembering which properties were consumed.
type props struct {
	r    rules.RawRule
	used map[rules.Property]bool
	err  error
}

func (p *props) get(name rules.Property) (rules.Value, bool) {
	v, ok := p.r.Get(name)
	if ok {
		p.used[name] = true
	}
	return v, ok
}

func (p *props) twips(name rules.Property) (int64, bool) {
	v, ok := p.get(name)
	if !ok {
		return 0, false
	}
	tw, err := twips(v)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%s %s: %w", p.r.Selector(), name, err)
		}
		return 0, false
	}
	return tw, true
}

func (p *props) keyword(name rules.Property) string {
	v, ok := p.get(name)
	if !ok {
		return ""
	}
	return v.String()
}

var sides = []string{"top", "left", "bottom", "right"}

func (e *Word) fill(st *etree.Element, r rules.RawRule) error {
	p := &props{r: r, used: make(map[rules.Property]bool)}

	var ppr []*etree.Element

	// borders, padding on a bordered side becomes border spacing
	bordered := make(map[string]bool)
	pbdr := etree.NewElement("w:pBdr")
	for _, side := range sides {
		width, ok := p.twips(rules.Property("border-" + side + "-width"))
		style := p.keyword(rules.Property("border-" + side + "-style"))
		if !ok || style == "none" || width == 0 {
			continue
		}
		bordered[side] = true
		b := pbdr.CreateElement("w:" + side)
		b.CreateAttr("w:val", "single")
		b.CreateAttr("w:sz", fmt.Sprint(min(max(units.RoundHalfUp(float64(width)/2.5), 2), 96)))
		pad, _ := p.twips(rules.Property("padding-" + side))
		b.CreateAttr("w:space", fmt.Sprint(units.RoundHalfUp(float64(pad)/20)))
		c, _ := p.get(rules.BorderColor)
		b.CreateAttr("w:color", hexColor(c))
	}
	if len(pbdr.ChildElements()) > 0 {
		ppr = append(ppr, pbdr)
	}

	if bg, ok := p.get(rules.BackgroundColor); ok && bg.Kind == rules.KindColor {
		shd := etree.NewElement("w:shd")
		shd.CreateAttr("w:val", "clear")
		shd.CreateAttr("w:color", "auto")
		shd.CreateAttr("w:fill", hexColor(bg))
		ppr = append(ppr, shd)
	}

	// unbordered padding folds into spacing and indentation
	padding := func(side string) int64 {
		if bordered[side] {
			return 0
		}
		v, _ := p.twips(rules.Property("padding-" + side))
		return v
	}

	spacing := etree.NewElement("w:spacing")
	before, hasBefore := p.twips(rules.MarginTop)
	if pad := padding("top"); hasBefore || pad != 0 {
		spacing.CreateAttr("w:before", fmt.Sprint(before+pad))
	}
	after, hasAfter := p.twips(rules.MarginBottom)
	if pad := padding("bottom"); hasAfter || pad != 0 {
		spacing.CreateAttr("w:after", fmt.Sprint(after+pad))
	}
	if lh, ok := p.get(rules.LineHeight); ok {
		switch lh.Kind {
		case rules.KindNumber:
			spacing.CreateAttr("w:line", fmt.Sprint(units.RoundHalfUp(240*lh.Number)))
			spacing.CreateAttr("w:lineRule", "auto")
		case rules.KindLength:
			tw, _ := p.twips(rules.LineHeight)
			spacing.CreateAttr("w:line", fmt.Sprint(tw))
			spacing.CreateAttr("w:lineRule", "exact")
		}
	}
	if len(spacing.Attr) > 0 {
		ppr = append(ppr, spacing)
	}

	ind := etree.NewElement("w:ind")
	left, hasLeft := p.twips(rules.MarginLeft)
	if pad := padding("left"); hasLeft || pad != 0 {
		ind.CreateAttr("w:left", fmt.Sprint(left+pad))
	}
	right, hasRight := p.twips(rules.MarginRight)
	if pad := padding("right"); hasRight || pad != 0 {
		ind.CreateAttr("w:right", fmt.Sprint(right+pad))
	}
	if ti, ok := p.twips(rules.TextIndent); ok {
		switch {
		case ti < 0:
			ind.CreateAttr("w:hanging", fmt.Sprint(-ti))
		case ti > 0:
			ind.CreateAttr("w:firstLine", fmt.Sprint(ti))
		}
	}
	if len(ind.Attr) > 0 {
		ppr = append(ppr, ind)
	}

	if len(ppr) > 0 {
		el := st.CreateElement("w:pPr")
		for _, c := range ppr {
			el.AddChild(c)
		}
	}

	var rpr []*etree.Element
	if p.keyword(rules.FontVariantCaps) == "small-caps" {
		rpr = append(rpr, etree.NewElement("w:smallCaps"))
	}
	if c, ok := p.get(rules.TextColor); ok {
		el := etree.NewElement("w:color")
		el.CreateAttr("w:val", hexColor(c))
		rpr = append(rpr, el)
	}
	if sz, ok := p.twips(rules.FontSize); ok {
		half := units.RoundHalfUp(float64(sz) / 10)
		for _, tag := range []string{"w:sz", "w:szCs"} {
			el := etree.NewElement(tag)
			el.CreateAttr("w:val", fmt.Sprint(half))
			rpr = append(rpr, el)
		}
	}
	if strings.Contains(p.keyword(rules.FontVariantLigatures), "common-ligatures") {
		el := etree.NewElement("w14:ligatures")
		el.CreateAttr("w14:val", "standard")
		rpr = append(rpr, el)
	}
	numeric := p.keyword(rules.FontVariantNumeric)
	switch {
	case strings.Contains(numeric, "oldstyle-nums"):
		el := etree.NewElement("w14:numForm")
		el.CreateAttr("w14:val", "oldStyle")
		rpr = append(rpr, el)
	case strings.Contains(numeric, "lining-nums"):
		el := etree.NewElement("w14:numForm")
		el.CreateAttr("w14:val", "lining")
		rpr = append(rpr, el)
	}
	switch {
	case strings.Contains(numeric, "tabular-nums"):
		el := etree.NewElement("w14:numSpacing")
		el.CreateAttr("w14:val", "tabular")
		rpr = append(rpr, el)
	case strings.Contains(numeric, "proportional-nums"):
		el := etree.NewElement("w14:numSpacing")
		el.CreateAttr("w14:val", "proportional")
		rpr = append(rpr, el)
	}
	if len(rpr) > 0 {
		el := st.CreateElement("w:rPr")
		for _, c := range rpr {
			el.AddChild(c)
		}
	}

	if p.err != nil {
		return p.err
	}
	for _, name := range r.Properties() {
		if !p.used[name] {
			e.log.Debug("Property has no WordprocessingML equivalent, dropping",
				zap.String("selector", r.Selector()), zap.String("property", string(name)))
		}
	}
	return nil
}

// listStyles derives styles for bullet nesting levels from bullets rule,
// level i indents left*(i+1) keeping the same hanging indent.
func (e *Word) listStyles(root *etree.Element, r rules.RawRule) error {
	p := &props{r: r, used: make(map[rules.Property]bool)}
	left, ok := p.twips(rules.PaddingLeft)
	if !ok {
		left, ok = p.twips(rules.PaddingRight)
	}
	ti, hasIndent := p.twips(rules.TextIndent)
	if p.err != nil {
		return p.err
	}
	if !ok || !hasIndent {
		return fmt.Errorf("bullets rule %s lacks indentation", r.Selector())
	}
	for i, id := range ListBulletStyles {
		name := "List Bullet"
		if i > 0 {
			name = fmt.Sprintf("List Bullet %d", i+1)
		}
		st := newStyle(root, id, name)
		ind := st.CreateElement("w:pPr").CreateElement("w:ind")
		ind.CreateAttr("w:left", fmt.Sprint(left*int64(i+1)))
		ind.CreateAttr("w:hanging", fmt.Sprint(-ti))
	}
	return nil
}
