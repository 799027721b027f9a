package tokens

import (
	"fmt"
	"strings"

	"cvstyle/css"
	"cvstyle/units"
)

const (
	cssVersionProp = "--token-version"
	cssKindProp    = "--kind"
	cssUnitProp    = "--unit"
)

// LoadCSS parses token table authored as CSS custom properties:
//
//	:root { --token-version: "2024.11"; }
//	.sectionBox { --kind: box; --unit: pt; --marginBlockStart: 12; --borderColor: #1f2937; }
//
// Class name is the group name, every other custom property is a token.
// Numbers with a unit suffix ("0.1in") override the group unit.
func LoadCSS(data []byte) (*Table, error) {
	sheet, err := css.NewParser(nil).Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token stylesheet: %w", err)
	}

	var (
		version string
		groups  []*Group
	)
	for _, rule := range sheet.Rules() {
		if rule.Selector.Root {
			if v, ok := rule.Custom[cssVersionProp]; ok {
				version = css.Unquote(v)
			}
			continue
		}
		if rule.Selector.Class == "" || rule.Selector.Element != "" {
			return nil, fmt.Errorf("token group selector %q must be a bare class", rule.Selector.Raw)
		}

		kind := GroupKind(rule.Custom[cssKindProp])
		unit := parseUnitPolicy(rule.Custom[cssUnitProp])
		var toks []Token
		for _, name := range rule.CustomNames() {
			if name == cssKindProp || name == cssUnitProp {
				continue
			}
			tok, err := cssToken(rule.Custom[name])
			if err != nil {
				return nil, fmt.Errorf("token %s.%s: %w", rule.Selector.Class, name, err)
			}
			tok.Name = strings.TrimPrefix(name, "--")
			toks = append(toks, tok)
		}
		g, err := NewGroup(rule.Selector.Class, kind, unit, toks...)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if version == "" {
		return nil, fmt.Errorf("token stylesheet has no %s", cssVersionProp)
	}
	return NewTable(version, groups...)
}

func cssToken(raw string) (Token, error) {
	raw = css.Unquote(raw)
	if strings.HasPrefix(raw, "#") {
		return scalarToken(raw, inheritUnit)
	}
	v, unit := css.ParseDimension(raw)
	switch {
	case unit == "":
		return scalarToken(raw, inheritUnit)
	case unit == "none":
		return Token{Value: Num(v), Unit: units.None}, nil
	default:
		return Token{Value: Num(v), Unit: units.Unit(unit)}, nil
	}
}
