// Package css holds a small CSS object model used both to read token tables
// authored as custom properties and to write compiled stylesheets.
package css

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"
	"strings"
	"unicode"
)

// Value represents a parsed CSS property value.
type Value struct {
	Raw     string  // Original CSS value string (e.g., "1.2em", "bold", "#ff0000")
	Value   float64 // Numeric value if applicable
	Unit    string  // Unit if applicable: "em", "px", "%", "pt", etc.
	Keyword string  // Keyword if applicable: "bold", "small-caps", "#1f2937", etc.
}

// Raw makes value which is written as is.
func Raw(s string) Value {
	return Value{Raw: s, Keyword: s}
}

// IsNumeric returns true if the value has a numeric component.
// This includes explicit zero values like "0" or "0px".
func (v Value) IsNumeric() bool {
	if v.Unit != "" {
		return true
	}
	if v.Value != 0 && v.Keyword == "" {
		return true
	}
	if v.Raw != "" && v.Keyword == "" {
		first := rune(v.Raw[0])
		if unicode.IsDigit(first) || first == '.' || first == '-' || first == '+' {
			return true
		}
	}
	return false
}

// IsKeyword returns true if the value is a keyword (no numeric component).
func (v Value) IsKeyword() bool {
	return v.Keyword != "" && v.Unit == ""
}

// Selector represents a parsed CSS selector.
type Selector struct {
	Raw     string // Original selector string
	Element string // Element name or empty for class-only
	Class   string // Class name without dot or empty
	Root    bool   // ":root"
}

// IsSimple returns true if this is a simple selector (element, class, or element.class).
func (s Selector) IsSimple() bool {
	return s.Element != "" || s.Class != "" || s.Root
}

// Rule represents a single CSS rule (selector + properties).
type Rule struct {
	Selector   Selector
	Properties map[string]Value
	// Custom keeps custom properties (--name) with their trimmed raw values.
	Custom map[string]string
}

// NewRule makes rule for selector with no properties.
func NewRule(selector string) *Rule {
	return &Rule{
		Selector:   Selector{Raw: selector},
		Properties: make(map[string]Value),
		Custom:     make(map[string]string),
	}
}

// GetProperty returns the value for a property, or empty Value if not found.
func (r Rule) GetProperty(name string) (Value, bool) {
	v, ok := r.Properties[name]
	return v, ok
}

// CustomNames returns custom property names in source independent order.
func (r Rule) CustomNames() []string {
	return slices.Sorted(maps.Keys(r.Custom))
}

// PageRule is an @page block.
type PageRule struct {
	Properties map[string]Value
}

// StylesheetItem is a single top-level item in a stylesheet.
// Exactly one of Comment, Rule or Page is non-nil.
type StylesheetItem struct {
	Comment *string
	Rule    *Rule
	Page    *PageRule
}

// Stylesheet represents a parsed or produced CSS stylesheet.
type Stylesheet struct {
	Items    []StylesheetItem // All top-level items in source order
	Warnings []string         // Warnings for unsupported features
}

// AddComment appends comment item.
func (s *Stylesheet) AddComment(text string) {
	s.Items = append(s.Items, StylesheetItem{Comment: &text})
}

// AddRule appends rule item.
func (s *Stylesheet) AddRule(r *Rule) {
	s.Items = append(s.Items, StylesheetItem{Rule: r})
}

// AddPage appends @page item.
func (s *Stylesheet) AddPage(p *PageRule) {
	s.Items = append(s.Items, StylesheetItem{Page: p})
}

// Rules returns all top-level rules in source order.
func (s *Stylesheet) Rules() []Rule {
	var rules []Rule
	for _, item := range s.Items {
		if item.Rule != nil {
			rules = append(rules, *item.Rule)
		}
	}
	return rules
}

// RulesBySelector returns all top-level rules matching the given selector string.
func (s *Stylesheet) RulesBySelector(selector string) []Rule {
	var matches []Rule
	for _, item := range s.Items {
		if item.Rule != nil && item.Rule.Selector.Raw == selector {
			matches = append(matches, *item.Rule)
		}
	}
	return matches
}

// Page returns first @page rule if any.
func (s *Stylesheet) Page() (*PageRule, bool) {
	for _, item := range s.Items {
		if item.Page != nil {
			return item.Page, true
		}
	}
	return nil, false
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
// Property order within a rule is sorted alphabetically for deterministic output.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, item := range s.Items {
		var n int
		var err error

		switch {
		case item.Comment != nil:
			n, err = fmt.Fprintf(w, "/* %s */\n", strings.ReplaceAll(*item.Comment, "*/", "* /"))
		case item.Page != nil:
			n, err = writeBlock(w, "@page", item.Page.Properties, nil)
		case item.Rule != nil:
			n, err = writeBlock(w, item.Rule.Selector.Raw, item.Rule.Properties, item.Rule.Custom)
		}

		total += int64(n)
		if err != nil {
			return total, err
		}

		// blank line between items (except after last)
		if i < len(s.Items)-1 {
			n, err = fmt.Fprint(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

func writeBlock(w io.Writer, head string, props map[string]Value, custom map[string]string) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "%s {\n", head)
	total += n
	if err != nil {
		return total, err
	}
	// custom properties go first so consumers may reference them
	for _, name := range slices.Sorted(maps.Keys(custom)) {
		n, err = fmt.Fprintf(w, "  %s: %s;\n", name, custom[name])
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = writeProperties(w, props)
	total += n
	if err != nil {
		return total, err
	}
	n, err = fmt.Fprint(w, "}\n")
	total += n
	return total, err
}

// writeProperties writes property declarations sorted alphabetically.
func writeProperties(w io.Writer, props map[string]Value) (int, error) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int
	for _, name := range names {
		val := props[name]
		n, err := fmt.Fprintf(w, "  %s: %s;\n", name, val.Raw)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
