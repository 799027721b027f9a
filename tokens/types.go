// Package tokens loads versioned tables of design tokens: numeric and color
// values grouped by the box or list they style.
package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"cvstyle/units"
)

// ErrUnknownTokenGroup is returned when a referenced group is not present in
// the table.
var ErrUnknownTokenGroup = errors.New("unknown token group")

// GroupKind selects how the rule compiler expands a group.
type GroupKind string

const (
	KindBox     GroupKind = "box"
	KindBullets GroupKind = "bullets"
	KindPage    GroupKind = "page"
)

func (k GroupKind) valid() bool {
	switch k {
	case KindBox, KindBullets, KindPage:
		return true
	}
	return false
}

// Value is either a unit-less number or a color.
type Value struct {
	Number  float64
	Color   colorful.Color
	IsColor bool
}

// Num makes numeric value.
func Num(v float64) Value {
	return Value{Number: v}
}

// ParseColorValue makes color value out of "#rgb" or "#rrggbb".
func ParseColorValue(s string) (Value, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return Value{}, fmt.Errorf("bad color %q: %w", s, err)
	}
	return Value{Color: c, IsColor: true}, nil
}

func (v Value) String() string {
	if v.IsColor {
		return v.Color.Hex()
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// Token is a single named design value.
type Token struct {
	Name  string
	Group string
	Value Value
	// Unit is the unit policy: what the bare number means. It is the group
	// unit unless the token overrides it. Colors ignore it.
	Unit units.Unit
}

// Length returns token as a length when its unit policy allows that.
func (t Token) Length() (units.Length, bool) {
	if t.Value.IsColor || t.Unit == units.None {
		return units.Length{}, false
	}
	return units.Of(t.Value.Number, t.Unit), true
}

// Group is a named set of tokens sharing a unit policy.
type Group struct {
	Name   string
	Kind   GroupKind
	Unit   units.Unit
	tokens []Token
	index  map[string]int
}

// Tokens returns group tokens in canonical (natural) name order.
func (g *Group) Tokens() []Token {
	out := make([]Token, len(g.tokens))
	copy(out, g.tokens)
	return out
}

// Get returns token by name.
func (g *Group) Get(name string) (Token, bool) {
	i, ok := g.index[name]
	if !ok {
		return Token{}, false
	}
	return g.tokens[i], true
}

// Len returns number of tokens in the group.
func (g *Group) Len() int {
	return len(g.tokens)
}
