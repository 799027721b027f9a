package tokens

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"cvstyle/units"
)

//go:embed default.yaml
var defaultTable []byte

// Default returns built-in token table.
func Default() *Table {
	t, err := LoadYAML(defaultTable)
	if err != nil {
		// embedded data is verified by tests, this should never happen
		panic(fmt.Sprintf("bad embedded token table: %v", err))
	}
	return t
}

// LoadFile reads token table from path. Files with ".css" extension are
// expected to carry CSS custom properties, everything else is YAML.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read token table: %w", err)
	}
	var t *Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".css":
		t, err = LoadCSS(data)
	default:
		t, err = LoadYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load token table from %q: %w", path, err)
	}
	return t, nil
}

type yamlTable struct {
	Version string               `yaml:"version"`
	Groups  map[string]yamlGroup `yaml:"groups"`
}

type yamlGroup struct {
	Kind   string               `yaml:"kind"`
	Unit   string               `yaml:"unit"`
	Tokens map[string]yamlToken `yaml:"tokens"`
}

type yamlToken struct {
	tok Token
}

// UnmarshalYAML accepts either a bare scalar ("12", "#1f2937") or a mapping
// with explicit unit policy ({value: 1.15, unit: none}).
func (y *yamlToken) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		tok, err := scalarToken(node.Value, inheritUnit)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		y.tok = tok
		return nil
	case yaml.MappingNode:
		var long struct {
			Value yaml.Node `yaml:"value"`
			Unit  string    `yaml:"unit"`
		}
		if err := node.Decode(&long); err != nil {
			return err
		}
		unit := inheritUnit
		if long.Unit != "" {
			unit = parseUnitPolicy(long.Unit)
		}
		tok, err := scalarToken(long.Value.Value, unit)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		y.tok = tok
		return nil
	default:
		return fmt.Errorf("line %d: token must be scalar or mapping", node.Line)
	}
}

func scalarToken(s string, unit units.Unit) (Token, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		v, err := ParseColorValue(s)
		if err != nil {
			return Token{}, err
		}
		return Token{Value: v}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Token{}, fmt.Errorf("token value %q is neither number nor color", s)
	}
	return Token{Value: Num(f), Unit: unit}, nil
}

func parseUnitPolicy(s string) units.Unit {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "none" || s == "" {
		return units.None
	}
	return units.Unit(s)
}

// LoadYAML parses token table in YAML form:
//
//	version: "2024.11"
//	groups:
//	  sectionBox:
//	    kind: box
//	    unit: pt
//	    tokens:
//	      marginBlockStart: 12
//	      borderColor: "#1f2937"
//	      lineHeight: {value: 1.15, unit: none}
func LoadYAML(data []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw yamlTable
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode token table: %w", err)
	}
	if raw.Version == "" {
		return nil, fmt.Errorf("token table has no version")
	}

	groups := make([]*Group, 0, len(raw.Groups))
	for name, rg := range raw.Groups {
		toks := make([]Token, 0, len(rg.Tokens))
		for tname, yt := range rg.Tokens {
			tok := yt.tok
			tok.Name = tname
			toks = append(toks, tok)
		}
		g, err := NewGroup(name, GroupKind(rg.Kind), parseUnitPolicy(rg.Unit), toks...)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return NewTable(raw.Version, groups...)
}
