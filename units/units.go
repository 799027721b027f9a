// Package units converts design lengths between the units used by tokens and
// the native length units of the target engines.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Unit is a length unit.
type Unit string

const (
	None Unit = ""
	In   Unit = "in"
	Pt   Unit = "pt"
	Px   Unit = "px"
	Cm   Unit = "cm"
	Mm   Unit = "mm"
	// Twip is 1/20 of a point, the native length unit of WordprocessingML.
	Twip Unit = "twip"
)

// Conversion table. Every unit pair converts through the number of units in
// one inch, so each pair has exactly one constant:
//
//	factor(from -> to) = perInch[to] / perInch[from]
//
// | unit | per inch | note                                   |
// |------|----------|----------------------------------------|
// | in   | 1        |                                        |
// | pt   | 72       | PostScript point                       |
// | px   | 96       | CSS reference pixel                    |
// | cm   | 2.54     |                                        |
// | mm   | 25.4     |                                        |
// | twip | 1440     | 20 twips per point, 566.929... per cm  |
var perInch = map[Unit]float64{
	In:   1,
	Pt:   72,
	Px:   96,
	Cm:   2.54,
	Mm:   25.4,
	Twip: 1440,
}

var (
	ErrUnknownUnit     = errors.New("unknown length unit")
	ErrInvertedIndent  = errors.New("text position precedes bullet position")
	ErrUnitlessLength  = errors.New("length has no unit")
	ErrMalformedLength = errors.New("malformed length")
)

// Valid reports whether u is a known length unit.
func (u Unit) Valid() bool {
	_, ok := perInch[u]
	return ok
}

// Factor returns the single conversion constant for the unit pair.
func Factor(from, to Unit) (float64, error) {
	f, ok := perInch[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	t, ok := perInch[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	return t / f, nil
}

// RoundHalfUp rounds to the nearest integer, ties go towards positive
// infinity (2.5 -> 3, -2.5 -> -2).
func RoundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

// Length is a numeric distance with its unit.
type Length struct {
	Value float64
	Unit  Unit
}

// Of is a shorthand constructor.
func Of(v float64, u Unit) Length {
	return Length{Value: v, Unit: u}
}

func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + string(l.Unit)
}

// IsZero reports whether length has zero magnitude.
func (l Length) IsZero() bool {
	return l.Value == 0
}

// To converts the length into unit u without rounding.
func (l Length) To(u Unit) (Length, error) {
	if l.Unit == None {
		return Length{}, ErrUnitlessLength
	}
	f, err := Factor(l.Unit, u)
	if err != nil {
		return Length{}, err
	}
	return Length{Value: l.Value * f, Unit: u}, nil
}

// Round converts the length into unit u and rounds it half-up to an integer.
func (l Length) Round(u Unit) (int64, error) {
	c, err := l.To(u)
	if err != nil {
		return 0, err
	}
	return RoundHalfUp(c.Value), nil
}

// Twips converts the length to rounded twips.
func (l Length) Twips() (int64, error) {
	return l.Round(Twip)
}

// Sub returns l - o expressed in l's unit.
func (l Length) Sub(o Length) (Length, error) {
	c, err := o.To(l.Unit)
	if err != nil {
		return Length{}, err
	}
	return Length{Value: l.Value - c.Value, Unit: l.Unit}, nil
}

// Neg returns the length with its sign flipped.
func (l Length) Neg() Length {
	return Length{Value: -l.Value, Unit: l.Unit}
}

// Parse reads strings like "0.965cm", "12pt", "-0.5in" or "187twip".
func Parse(s string) (Length, error) {
	s = strings.TrimSpace(s)
	end := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || ((r == '-' || r == '+') && i == 0) {
			end = i + 1
			continue
		}
		break
	}
	if end == 0 {
		return Length{}, fmt.Errorf("%w: %q", ErrMalformedLength, s)
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return Length{}, fmt.Errorf("%w: %q: %w", ErrMalformedLength, s, err)
	}
	u := Unit(strings.ToLower(strings.TrimSpace(s[end:])))
	if u == None {
		return Length{}, fmt.Errorf("%w: %q", ErrUnitlessLength, s)
	}
	if !u.Valid() {
		return Length{}, fmt.Errorf("%w: %q", ErrUnknownUnit, u)
	}
	return Length{Value: v, Unit: u}, nil
}

// Indent describes a hanging list indentation.
type Indent struct {
	Left    Length
	Hanging Length
}

// DeriveIndent computes list indentation from the position of the bullet
// glyph and the position where text starts, both measured from the margin:
//
//	left    = text
//	hanging = text - bullet
//
// This is the only place indentation is derived, everything else asks here.
// The result is expressed in the unit of text.
func DeriveIndent(bullet, text Length) (Indent, error) {
	hanging, err := text.Sub(bullet)
	if err != nil {
		return Indent{}, err
	}
	if hanging.Value < 0 {
		return Indent{}, fmt.Errorf("%w: bullet %s, text %s", ErrInvertedIndent, bullet, text)
	}
	return Indent{Left: text, Hanging: hanging}, nil
}

// Twips returns the indentation rounded to twips.
func (i Indent) Twips() (left, hanging int64, err error) {
	if left, err = i.Left.Twips(); err != nil {
		return 0, 0, err
	}
	if hanging, err = i.Hanging.Twips(); err != nil {
		return 0, 0, err
	}
	return left, hanging, nil
}
