package rules

import "strings"

// Property is a CSS property name, logical ("margin-block-start") or physical
// ("margin-top").
type Property string

const (
	MarginBlockStart  Property = "margin-block-start"
	MarginBlockEnd    Property = "margin-block-end"
	MarginInlineStart Property = "margin-inline-start"
	MarginInlineEnd   Property = "margin-inline-end"

	PaddingBlockStart  Property = "padding-block-start"
	PaddingBlockEnd    Property = "padding-block-end"
	PaddingInlineStart Property = "padding-inline-start"
	PaddingInlineEnd   Property = "padding-inline-end"

	BorderBlockStartWidth  Property = "border-block-start-width"
	BorderBlockEndWidth    Property = "border-block-end-width"
	BorderInlineStartWidth Property = "border-inline-start-width"
	BorderInlineEndWidth   Property = "border-inline-end-width"

	BorderBlockStartStyle  Property = "border-block-start-style"
	BorderBlockEndStyle    Property = "border-block-end-style"
	BorderInlineStartStyle Property = "border-inline-start-style"
	BorderInlineEndStyle   Property = "border-inline-end-style"

	BorderColor         Property = "border-color"
	BorderRadius        Property = "border-radius"
	TextColor           Property = "color"
	BackgroundColor     Property = "background-color"
	FontSize            Property = "font-size"
	LineHeight          Property = "line-height"
	TextIndent          Property = "text-indent"
	FontFeatureSettings Property = "font-feature-settings"

	FontVariantCaps      Property = "font-variant-caps"
	FontVariantNumeric   Property = "font-variant-numeric"
	FontVariantLigatures Property = "font-variant-ligatures"

	MarginTop     Property = "margin-top"
	MarginBottom  Property = "margin-bottom"
	MarginLeft    Property = "margin-left"
	MarginRight   Property = "margin-right"
	PaddingTop    Property = "padding-top"
	PaddingBottom Property = "padding-bottom"
	PaddingLeft   Property = "padding-left"
	PaddingRight  Property = "padding-right"
)

var logicalSegments = []string{"block-start", "block-end", "inline-start", "inline-end"}

// IsLogical reports whether property is flow-relative.
func (p Property) IsLogical() bool {
	for _, seg := range logicalSegments {
		if strings.Contains(string(p), seg) {
			return true
		}
	}
	return false
}

// Replace returns property with the flow-relative segment replaced by a
// physical side.
func (p Property) Replace(segment, side string) Property {
	return Property(strings.Replace(string(p), segment, side, 1))
}

// Segment returns the flow-relative segment of a logical property.
func (p Property) Segment() (string, bool) {
	for _, seg := range logicalSegments {
		if strings.Contains(string(p), seg) {
			return seg, true
		}
	}
	return "", false
}
