package styling

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cvstyle/docmodel"
)

// ErrUnknownStyle is returned when catalog does not define requested style.
var ErrUnknownStyle = errors.New("unknown paragraph style")

// Source is the ladder level which supplied effective value.
type Source int

const (
	SourceNone Source = iota
	SourceDefault
	SourceStyle
	SourceDirectParagraph
	SourceDirectCharacter
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "document-default"
	case SourceStyle:
		return "named-style"
	case SourceDirectParagraph:
		return "direct-paragraph"
	case SourceDirectCharacter:
		return "direct-character"
	}
	return "none"
}

// Resolution is effective value of a formatting property.
type Resolution struct {
	Value  string
	Source Source
	// Style is id of the style in basedOn chain which defined value.
	Style string
}

// ShadowingProps are direct paragraph properties which override box
// formatting of named styles.
var ShadowingProps = []string{"w:spacing", "w:pBdr", "w:ind", "w:shd"}

// Applier assigns named styles to paragraphs. It never writes direct
// formatting.
type Applier struct {
	log            *zap.Logger
	catalog        *Catalog
	stripShadowing bool
}

// ApplierOption configures applier.
type ApplierOption func(*Applier)

// WithStripShadowing makes Apply remove direct box overrides.
func WithStripShadowing(strip bool) ApplierOption {
	return func(a *Applier) {
		a.stripShadowing = strip
	}
}

// NewApplier creates applier. With nil catalog style ids are not checked and
// Resolve only sees direct formatting.
func NewApplier(catalog *Catalog, log *zap.Logger, opts ...ApplierOption) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Applier{log: log.Named("styling"), catalog: catalog}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Apply assigns named style to paragraph. Paragraph must have content.
func (a *Applier) Apply(p docmodel.Paragraph, styleID string) error {
	if !p.HasContent() {
		return &docmodel.EmptyParagraphError{ParagraphID: p.ID(), Op: "apply style " + styleID}
	}
	if a.catalog != nil && !a.catalog.Has(styleID) {
		return fmt.Errorf("%w: %s", ErrUnknownStyle, styleID)
	}
	p.SetStyleID(styleID)
	if a.stripShadowing {
		if n := p.RemoveDirectParagraphProps(ShadowingProps...); n > 0 {
			a.log.Debug("Removed direct overrides", zap.String("paragraph", p.ID()), zap.Int("count", n))
		}
	}
	return nil
}

// Resolve walks the ladder: direct character, direct paragraph, named style
// (with basedOn chain), document default.
func (a *Applier) Resolve(p docmodel.Paragraph, key string) Resolution {
	if v, ok := p.DirectRunProps()[key]; ok {
		return Resolution{Value: v, Source: SourceDirectCharacter}
	}
	if v, ok := p.DirectParagraphProps()[key]; ok {
		return Resolution{Value: v, Source: SourceDirectParagraph}
	}
	if a.catalog == nil {
		return Resolution{}
	}
	if id, ok := p.StyleID(); ok {
		if v, from, ok := a.catalog.lookup(id, key); ok {
			return Resolution{Value: v, Source: SourceStyle, Style: from}
		}
	}
	if v, ok := a.catalog.defaultValue(key); ok {
		return Resolution{Value: v, Source: SourceDefault}
	}
	return Resolution{}
}

// Shadowed lists direct paragraph properties which hide values of paragraph
// named style.
func (a *Applier) Shadowed(p docmodel.Paragraph) []string {
	direct := p.DirectParagraphProps()
	var out []string
	for _, key := range ShadowingProps {
		if _, ok := direct[key]; ok {
			out = append(out, key)
		}
	}
	return out
}
