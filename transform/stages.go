package transform

import (
	"fmt"
	"strings"

	"cvstyle/capability"
	"cvstyle/common"
	"cvstyle/rules"
	"cvstyle/units"
)

// LowerLogicalBox maps flow-relative properties to physical sides for
// horizontal-tb writing mode. Explicit physical properties are never
// overwritten, the logical form is dropped instead.
func LowerLogicalBox(r rules.RawRule, d capability.Descriptor) (rules.RawRule, error) {
	sides := map[string]string{
		"block-start":  "top",
		"block-end":    "bottom",
		"inline-start": "left",
		"inline-end":   "right",
	}
	if d.Direction() == common.DirectionRtl {
		sides["inline-start"], sides["inline-end"] = "right", "left"
	}

	return r.Map(func(p rules.Property, v rules.Value) (rules.Property, rules.Value, bool) {
		seg, ok := p.Segment()
		if !ok {
			return p, v, true
		}
		phys := p.Replace(seg, sides[seg])
		if r.Has(phys) {
			return p, v, false
		}
		return phys, v, true
	}), nil
}

// LowerColor resolves color-mix values into plain colors.
func LowerColor(r rules.RawRule, _ capability.Descriptor) (rules.RawRule, error) {
	return r.Map(func(p rules.Property, v rules.Value) (rules.Property, rules.Value, bool) {
		if v.Kind != rules.KindColorMix {
			return p, v, true
		}
		// color-mix(in srgb, A p%, B) = A*p + B*(1-p)
		mixed := v.Mix.B.BlendRgb(v.Mix.A, v.Mix.Percent/100).Clamped()
		return p, rules.Color(mixed), true
	}), nil
}

// featureFallbacks maps OpenType tags to font-variant keywords. Keywords of
// the same class are mutually exclusive in CSS.
var featureFallbacks = map[string]struct {
	prop    rules.Property
	keyword string
	class   string
}{
	"smcp": {rules.FontVariantCaps, "small-caps", ""},
	"tnum": {rules.FontVariantNumeric, "tabular-nums", "figure-spacing"},
	"pnum": {rules.FontVariantNumeric, "proportional-nums", "figure-spacing"},
	"onum": {rules.FontVariantNumeric, "oldstyle-nums", "figure-style"},
	"lnum": {rules.FontVariantNumeric, "lining-nums", "figure-style"},
	"liga": {rules.FontVariantLigatures, "common-ligatures", ""},
}

// resolveFeatures drops tags overridden by a later tag of the same class.
// Feature values are sorted sets, so the result does not depend on the
// order toggles were given in.
func resolveFeatures(tags []string) (kept, dropped []string) {
	last := make(map[string]int)
	for i, tag := range tags {
		if fb, ok := featureFallbacks[tag]; ok && fb.class != "" {
			last[fb.class] = i
		}
	}
	for i, tag := range tags {
		if fb, ok := featureFallbacks[tag]; ok && fb.class != "" && last[fb.class] != i {
			dropped = append(dropped, tag)
			continue
		}
		kept = append(kept, tag)
	}
	return kept, dropped
}

// LowerFontFeatures replaces OpenType feature settings with font-variant
// keywords. Tags without keyword equivalent fail the rule.
func LowerFontFeatures(r rules.RawRule, d capability.Descriptor) (rules.RawRule, error) {
	v, ok := r.Get(rules.FontFeatureSettings)
	if !ok {
		return r, nil
	}
	tags, _ := resolveFeatures(v.Features)
	keywords := make(map[rules.Property][]string)
	for _, tag := range tags {
		fb, ok := featureFallbacks[tag]
		if !ok {
			return rules.RawRule{}, &UnsupportedFeatureError{
				Engine:   d.Engine(),
				Feature:  common.FeatureFontFeatures,
				Selector: r.Selector(),
				Detail:   fmt.Sprintf("OpenType feature %q has no font-variant equivalent", tag),
			}
		}
		keywords[fb.prop] = append(keywords[fb.prop], fb.keyword)
	}

	out := r.Without(rules.FontFeatureSettings)
	for _, p := range []rules.Property{rules.FontVariantCaps, rules.FontVariantLigatures, rules.FontVariantNumeric} {
		kw, ok := keywords[p]
		if !ok || out.Has(p) {
			continue
		}
		out = out.With(p, rules.Keyword(strings.Join(kw, " ")))
	}
	return out, nil
}

// Finalize converts lengths into engine native unit rounding half-up.
func Finalize(r rules.RawRule, d capability.Descriptor) (rules.RawRule, error) {
	native := d.NativeUnit()
	if native == units.None {
		return r, nil
	}
	var failed error
	out := r.Map(func(p rules.Property, v rules.Value) (rules.Property, rules.Value, bool) {
		if v.Kind != rules.KindLength {
			return p, v, true
		}
		n, err := v.Length.Round(native)
		if err != nil && failed == nil {
			failed = fmt.Errorf("%s %s: %w", r.Selector(), p, err)
		}
		return p, rules.Len(units.Of(float64(n), native)), true
	})
	if failed != nil {
		return rules.RawRule{}, failed
	}
	return out, nil
}
