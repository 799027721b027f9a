// Package rules expands token groups into engine agnostic raw rules
// expressed with logical (flow-relative) properties.
package rules

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/gosimple/slug"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"cvstyle/tokens"
	"cvstyle/units"
)

// DefaultFallbacks maps custom groups to base groups whose values they
// inherit when the table does not define them.
func DefaultFallbacks() map[string]string {
	return map[string]string{"roleBox": "sectionBox"}
}

// Compiler turns token groups into raw rules. Output depends on the token
// table only, so results may be cached by table key.
type Compiler struct {
	log       *zap.Logger
	table     *tokens.Table
	fallbacks map[string]string

	mu     sync.Mutex
	warned map[string]struct{}
}

// NewCompiler creates compiler for table. When fallbacks is nil
// DefaultFallbacks are used, pass empty map to disable fallback.
func NewCompiler(table *tokens.Table, fallbacks map[string]string, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	if fallbacks == nil {
		fallbacks = DefaultFallbacks()
	}
	return &Compiler{
		log:       log.Named("rule-compiler"),
		table:     table,
		fallbacks: maps.Clone(fallbacks),
		warned:    make(map[string]struct{}),
	}
}

// Table returns token table compiler works on.
func (c *Compiler) Table() *tokens.Table {
	return c.table
}

// SelectorFor returns class selector for group name: "roleBox" -> ".role-box".
func SelectorFor(group string) string {
	var sb strings.Builder
	for i, r := range group {
		if i > 0 && unicode.IsUpper(r) {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
	}
	return "." + slug.Make(sb.String())
}

// Groups returns every group compiler can produce rules for: groups of the
// table plus fallback groups whose base group is present, in natural order.
func (c *Compiler) Groups() []string {
	names := c.table.Names()
	for name, base := range c.fallbacks {
		if !c.table.Has(name) && c.table.Has(base) {
			names = append(names, name)
		}
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

// CompileAll compiles listed groups (all known groups when none listed) in
// natural group order.
func (c *Compiler) CompileAll(names ...string) ([]RawRule, error) {
	if len(names) == 0 {
		names = c.Groups()
	} else {
		names = slices.Clone(names)
		sort.Sort(natural.StringSlice(names))
		names = slices.Compact(names)
	}
	out := make([]RawRule, 0, len(names))
	for _, name := range names {
		rs, err := c.Compile(name)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// Compile expands single group. When group is missing and a fallback is
// configured for it, rules are built from the fallback group values under
// the requested group selector and a warning is logged once.
func (c *Compiler) Compile(name string) ([]RawRule, error) {
	g, err := c.table.Group(name)
	if err != nil {
		if !errors.Is(err, tokens.ErrUnknownTokenGroup) {
			return nil, err
		}
		base, ok := c.fallbacks[name]
		if !ok {
			return nil, err
		}
		if g, err = c.table.Group(base); err != nil {
			return nil, fmt.Errorf("fallback for %q: %w", name, err)
		}
		c.warnFallback(name, base)
	}

	var rule RawRule
	switch g.Kind {
	case tokens.KindBullets:
		rule, err = c.compileBullets(name, g)
	case tokens.KindPage:
		rule = c.compilePage(g)
	default:
		rule = c.compileBox(name, g)
	}
	if err != nil {
		return nil, err
	}
	return []RawRule{rule}, nil
}

func (c *Compiler) warnFallback(name, base string) {
	key := name + "\x00" + base
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.warned[key]; done {
		return
	}
	c.warned[key] = struct{}{}
	c.log.Warn("Token group is missing, using fallback values",
		zap.String("group", name), zap.String("fallback", base), zap.String("tokens", c.table.Version()))
}

var boxFamilies = map[string][]Property{
	"marginBlock":            {MarginBlockStart, MarginBlockEnd},
	"marginBlockStart":       {MarginBlockStart},
	"marginBlockEnd":         {MarginBlockEnd},
	"marginInline":           {MarginInlineStart, MarginInlineEnd},
	"marginInlineStart":      {MarginInlineStart},
	"marginInlineEnd":        {MarginInlineEnd},
	"paddingBlock":           {PaddingBlockStart, PaddingBlockEnd},
	"paddingBlockStart":      {PaddingBlockStart},
	"paddingBlockEnd":        {PaddingBlockEnd},
	"paddingInline":          {PaddingInlineStart, PaddingInlineEnd},
	"paddingInlineStart":     {PaddingInlineStart},
	"paddingInlineEnd":       {PaddingInlineEnd},
	"borderWidth":            {BorderBlockStartWidth, BorderBlockEndWidth, BorderInlineStartWidth, BorderInlineEndWidth},
	"borderBlockStartWidth":  {BorderBlockStartWidth},
	"borderBlockEndWidth":    {BorderBlockEndWidth},
	"borderInlineStartWidth": {BorderInlineStartWidth},
	"borderInlineEndWidth":   {BorderInlineEndWidth},
}

var featureToggles = map[string]string{
	"smallCaps":            "smcp",
	"tabularNumerals":      "tnum",
	"proportionalNumerals": "pnum",
	"oldstyleNumerals":     "onum",
	"liningNumerals":       "lnum",
	"ligatures":            "liga",
}

func (c *Compiler) compileBox(name string, g *tokens.Group) RawRule {
	props := make(map[Property]Value)
	var (
		features         []string
		accent, bg       colorful.Color
		hasAccent, hasBg bool
		tint             float64
		hasTint          bool
	)

	color := func(tok tokens.Token) (colorful.Color, bool) {
		if !tok.Value.IsColor {
			c.log.Debug("Token must be a color, ignoring", zap.String("group", g.Name), zap.String("token", tok.Name))
			return colorful.Color{}, false
		}
		return tok.Value.Color, true
	}

	for _, tok := range g.Tokens() {
		if family, ok := boxFamilies[tok.Name]; ok {
			l, ok := tok.Length()
			if !ok {
				c.log.Debug("Token has no length unit, ignoring", zap.String("group", g.Name), zap.String("token", tok.Name))
				continue
			}
			for _, p := range family {
				props[p] = Len(l)
				if strings.HasPrefix(string(p), "border-") {
					style := "solid"
					if l.IsZero() {
						style = "none"
					}
					props[Property(strings.TrimSuffix(string(p), "-width")+"-style")] = Keyword(style)
				}
			}
			continue
		}
		if tag, ok := featureToggles[tok.Name]; ok {
			if tok.Value.Number != 0 {
				features = append(features, tag)
			}
			continue
		}

		switch {
		case tok.Name == "color":
			if v, ok := color(tok); ok {
				props[TextColor] = Color(v)
			}
		case tok.Name == "borderColor":
			if v, ok := color(tok); ok {
				props[BorderColor] = Color(v)
			}
		case tok.Name == "background":
			bg, hasBg = color(tok)
		case tok.Name == "accent":
			accent, hasAccent = color(tok)
		case tok.Name == "tint":
			tint, hasTint = tok.Value.Number, !tok.Value.IsColor
		case tok.Name == "radius":
			if l, ok := tok.Length(); ok {
				props[BorderRadius] = Len(l)
			}
		case tok.Name == "fontSize":
			if l, ok := tok.Length(); ok {
				props[FontSize] = Len(l)
			}
		case tok.Name == "lineHeight":
			if l, ok := tok.Length(); ok {
				props[LineHeight] = Len(l)
			} else {
				props[LineHeight] = Num(tok.Value.Number)
			}
		case strings.HasPrefix(tok.Name, "stylisticSet"):
			n, err := strconv.Atoi(strings.TrimPrefix(tok.Name, "stylisticSet"))
			if err != nil || n < 1 || n > 20 {
				c.log.Debug("Bad stylistic set token, ignoring", zap.String("group", g.Name), zap.String("token", tok.Name))
				continue
			}
			if tok.Value.Number != 0 {
				features = append(features, fmt.Sprintf("ss%02d", n))
			}
		default:
			c.log.Debug("Unknown token, ignoring", zap.String("group", g.Name), zap.String("token", tok.Name))
		}
	}

	switch {
	case hasBg && hasAccent && hasTint:
		props[BackgroundColor] = Mix(accent, tint, bg)
	case hasBg:
		props[BackgroundColor] = Color(bg)
	}
	if len(features) > 0 {
		props[FontFeatureSettings] = Features(features...)
	}
	return New(SelectorFor(name), g.Name, props)
}

func (c *Compiler) compileBullets(name string, g *tokens.Group) (RawRule, error) {
	length := func(tname string) (units.Length, error) {
		tok, ok := g.Get(tname)
		if !ok {
			return units.Length{}, fmt.Errorf("bullets group %q: missing %s token", g.Name, tname)
		}
		l, ok := tok.Length()
		if !ok {
			return units.Length{}, fmt.Errorf("bullets group %q: %s: %w", g.Name, tname, units.ErrUnitlessLength)
		}
		return l, nil
	}

	bullet, err := length("bulletPosition")
	if err != nil {
		return RawRule{}, err
	}
	text, err := length("textPosition")
	if err != nil {
		return RawRule{}, err
	}
	if eq, err := bullet.To(text.Unit); err == nil && eq.Value == text.Value {
		c.log.Debug("Bullet and text positions are equal, bullets will have no hanging indent",
			zap.String("group", g.Name), zap.Stringer("position", text))
	}
	indent, err := units.DeriveIndent(bullet, text)
	if err != nil {
		return RawRule{}, fmt.Errorf("bullets group %q: %w", g.Name, err)
	}
	return NewOfKind(tokens.KindBullets, SelectorFor(name), g.Name, map[Property]Value{
		PaddingInlineStart: Len(indent.Left),
		TextIndent:         Len(indent.Hanging.Neg()),
	}), nil
}

var pageMargins = map[string]Property{
	"marginTop":    MarginTop,
	"marginBottom": MarginBottom,
	"marginLeft":   MarginLeft,
	"marginRight":  MarginRight,
}

func (c *Compiler) compilePage(g *tokens.Group) RawRule {
	props := make(map[Property]Value)
	for _, tok := range g.Tokens() {
		p, ok := pageMargins[tok.Name]
		if !ok {
			c.log.Debug("Unknown page token, ignoring", zap.String("group", g.Name), zap.String("token", tok.Name))
			continue
		}
		if l, ok := tok.Length(); ok {
			props[p] = Len(l)
		}
	}
	return NewPage(g.Name, props)
}
