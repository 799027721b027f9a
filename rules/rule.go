package rules

import (
	"maps"
	"slices"
	"strings"

	"cvstyle/tokens"
)

// RawRule maps a selector to properties. It is immutable once produced,
// helpers which change it return a modified copy.
type RawRule struct {
	selector string
	group    string
	kind     tokens.GroupKind
	props    map[Property]Value
}

// New makes raw rule for a box group. Properties map is copied.
func New(selector, group string, props map[Property]Value) RawRule {
	return NewOfKind(tokens.KindBox, selector, group, props)
}

// NewOfKind makes raw rule remembering kind of group it came from.
func NewOfKind(kind tokens.GroupKind, selector, group string, props map[Property]Value) RawRule {
	return RawRule{selector: selector, group: group, kind: kind, props: maps.Clone(props)}
}

// NewPage makes raw rule for page box.
func NewPage(group string, props map[Property]Value) RawRule {
	return NewOfKind(tokens.KindPage, "@page", group, props)
}

func (r RawRule) Selector() string { return r.selector }

// Group is the token group rule was compiled from (which differs from the
// selector source when fallback was used).
func (r RawRule) Group() string { return r.group }

// Kind returns kind of the group rule was compiled from.
func (r RawRule) Kind() tokens.GroupKind { return r.kind }

// IsPage reports whether rule describes page box rather than an element.
func (r RawRule) IsPage() bool { return r.kind == tokens.KindPage }

// Len returns number of properties.
func (r RawRule) Len() int { return len(r.props) }

// Get returns property value.
func (r RawRule) Get(p Property) (Value, bool) {
	v, ok := r.props[p]
	return v, ok
}

// Has reports whether property is set.
func (r RawRule) Has(p Property) bool {
	_, ok := r.props[p]
	return ok
}

// Properties returns property names sorted alphabetically.
func (r RawRule) Properties() []Property {
	return slices.Sorted(maps.Keys(r.props))
}

// With returns copy of the rule with property set.
func (r RawRule) With(p Property, v Value) RawRule {
	out := r
	out.props = maps.Clone(r.props)
	if out.props == nil {
		out.props = make(map[Property]Value)
	}
	out.props[p] = v
	return out
}

// Without returns copy of the rule with property removed.
func (r RawRule) Without(p Property) RawRule {
	if !r.Has(p) {
		return r
	}
	out := r
	out.props = maps.Clone(r.props)
	delete(out.props, p)
	return out
}

// Map applies fn to every property in alphabetical order and returns a
// rule made of the results. Returning ok=false drops the property.
func (r RawRule) Map(fn func(Property, Value) (Property, Value, bool)) RawRule {
	out := r
	out.props = make(map[Property]Value, len(r.props))
	for _, p := range r.Properties() {
		if np, nv, ok := fn(p, r.props[p]); ok {
			out.props[np] = nv
		}
	}
	return out
}

// String renders rule in CSS-like form, mostly for logs and tests.
func (r RawRule) String() string {
	var sb strings.Builder
	sb.WriteString(r.selector)
	sb.WriteString(" {")
	for _, p := range r.Properties() {
		sb.WriteString(" ")
		sb.WriteString(string(p))
		sb.WriteString(": ")
		sb.WriteString(r.props[p].String())
		sb.WriteString(";")
	}
	sb.WriteString(" }")
	return sb.String()
}
