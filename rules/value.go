package rules

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"cvstyle/units"
)

// ValueKind tells which field of Value is meaningful.
type ValueKind int

const (
	KindLength ValueKind = iota
	KindNumber
	KindColor
	KindColorMix
	KindKeyword
	KindFeatures
)

// ColorMix is an unresolved "color-mix(in srgb, A p%, B)".
type ColorMix struct {
	A       colorful.Color
	Percent float64 // share of A, 0..100
	B       colorful.Color
}

// Value is a property value in a raw rule. Values are comparable only through
// String.
type Value struct {
	Kind     ValueKind
	Length   units.Length
	Number   float64
	Color    colorful.Color
	Mix      ColorMix
	Keyword  string
	Features []string // OpenType feature tags, sorted
}

// Len makes length value.
func Len(l units.Length) Value { return Value{Kind: KindLength, Length: l} }

// Num makes unit-less number.
func Num(v float64) Value { return Value{Kind: KindNumber, Number: v} }

// Color makes color value.
func Color(c colorful.Color) Value { return Value{Kind: KindColor, Color: c} }

// Keyword makes keyword value.
func Keyword(s string) Value { return Value{Kind: KindKeyword, Keyword: s} }

// Mix makes color-mix value.
func Mix(a colorful.Color, percent float64, b colorful.Color) Value {
	return Value{Kind: KindColorMix, Mix: ColorMix{A: a, Percent: percent, B: b}}
}

// Features makes OpenType feature settings value.
func Features(tags ...string) Value {
	tags = slices.Clone(tags)
	slices.Sort(tags)
	return Value{Kind: KindFeatures, Features: slices.Compact(tags)}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// String returns CSS text of the value.
func (v Value) String() string {
	switch v.Kind {
	case KindLength:
		if v.Length.IsZero() {
			return "0"
		}
		return v.Length.String()
	case KindNumber:
		return formatNumber(v.Number)
	case KindColor:
		return v.Color.Hex()
	case KindColorMix:
		return fmt.Sprintf("color-mix(in srgb, %s %s%%, %s)", v.Mix.A.Hex(), formatNumber(v.Mix.Percent), v.Mix.B.Hex())
	case KindKeyword:
		return v.Keyword
	case KindFeatures:
		quoted := make([]string, len(v.Features))
		for i, f := range v.Features {
			quoted[i] = strconv.Quote(f)
		}
		return strings.Join(quoted, ", ")
	}
	return ""
}
