// Package styling assigns named paragraph styles and resolves effective
// formatting through the precedence ladder.
package styling

import (
	"fmt"
	"sort"

	"github.com/beevik/etree"
	"github.com/maruel/natural"

	"cvstyle/docmodel"
	"cvstyle/ooxml"
)

// maximum depth of w:basedOn chain followed, cycles stop there as well
const maxBasedOn = 16

type style struct {
	basedOn string
	pPr     docmodel.Props
	rPr     docmodel.Props
}

// Catalog is a read-only view of a styles part.
type Catalog struct {
	styles   map[string]style
	defaultP docmodel.Props
	defaultR docmodel.Props
}

// LoadCatalog reads paragraph styles and document defaults from styles part.
func LoadCatalog(data []byte) (*Catalog, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse styles part: %w", err)
	}
	root := doc.Root()
	if root == nil || root.FullTag() != "w:styles" {
		return nil, fmt.Errorf("styles part has no w:styles root")
	}

	c := &Catalog{
		styles:   make(map[string]style),
		defaultP: ooxml.PropsOf(root.FindElement("./w:docDefaults/w:pPrDefault/w:pPr")),
		defaultR: ooxml.PropsOf(root.FindElement("./w:docDefaults/w:rPrDefault/w:rPr")),
	}
	for _, el := range root.SelectElements("w:style") {
		if el.SelectAttrValue("w:type", "paragraph") != "paragraph" {
			continue
		}
		id := el.SelectAttrValue("w:styleId", "")
		if id == "" {
			continue
		}
		st := style{
			pPr: ooxml.PropsOf(el.SelectElement("w:pPr"), "w:rPr"),
			rPr: ooxml.PropsOf(el.SelectElement("w:rPr")),
		}
		if b := el.SelectElement("w:basedOn"); b != nil {
			st.basedOn = b.SelectAttrValue("w:val", "")
		}
		c.styles[id] = st
	}
	return c, nil
}

// Has reports whether paragraph style is defined.
func (c *Catalog) Has(id string) bool {
	_, ok := c.styles[id]
	return ok
}

// StyleIDs returns defined paragraph style ids in natural order.
func (c *Catalog) StyleIDs() []string {
	ids := make([]string, 0, len(c.styles))
	for id := range c.styles {
		ids = append(ids, id)
	}
	sort.Sort(natural.StringSlice(ids))
	return ids
}

// lookup finds key in style or its ancestors, returning id of style that
// defines it.
func (c *Catalog) lookup(id, key string) (string, string, bool) {
	for range maxBasedOn {
		st, ok := c.styles[id]
		if !ok {
			return "", "", false
		}
		if v, ok := st.rPr[key]; ok {
			return v, id, true
		}
		if v, ok := st.pPr[key]; ok {
			return v, id, true
		}
		if st.basedOn == "" {
			return "", "", false
		}
		id = st.basedOn
	}
	return "", "", false
}

func (c *Catalog) defaultValue(key string) (string, bool) {
	if v, ok := c.defaultR[key]; ok {
		return v, true
	}
	v, ok := c.defaultP[key]
	return v, ok
}
