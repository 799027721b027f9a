package tokens

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/maruel/natural"

	"cvstyle/units"
)

// Table is an immutable, versioned set of token groups.
type Table struct {
	version string
	groups  map[string]*Group
	names   []string
	key     string
}

// T makes numeric token which inherits the unit policy of its group.
func T(name string, v float64) Token {
	return Token{Name: name, Value: Num(v), Unit: inheritUnit}
}

// U makes numeric token with explicit unit policy (units.None for unit-less).
func U(name string, v float64, u units.Unit) Token {
	return Token{Name: name, Value: Num(v), Unit: u}
}

// C makes color token, it panics on malformed color and is meant for
// statically known values.
func C(name, hex string) Token {
	v, err := ParseColorValue(hex)
	if err != nil {
		panic(err)
	}
	return Token{Name: name, Value: v}
}

// inheritUnit marks tokens which take the group unit. It never leaks out of
// NewGroup.
const inheritUnit units.Unit = "\x00inherit"

// NewGroup builds group, tokens are put into canonical natural order.
func NewGroup(name string, kind GroupKind, unit units.Unit, tokens ...Token) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("token group without name")
	}
	if kind == "" {
		kind = KindBox
	}
	if !kind.valid() {
		return nil, fmt.Errorf("token group %q: unknown kind %q", name, kind)
	}
	if unit != units.None && !unit.Valid() {
		return nil, fmt.Errorf("token group %q: %w: %q", name, units.ErrUnknownUnit, unit)
	}
	g := &Group{
		Name:   name,
		Kind:   kind,
		Unit:   unit,
		tokens: make([]Token, 0, len(tokens)),
		index:  make(map[string]int, len(tokens)),
	}
	for _, t := range tokens {
		if t.Name == "" {
			return nil, fmt.Errorf("token group %q: token without name", name)
		}
		if _, dup := g.index[t.Name]; dup {
			return nil, fmt.Errorf("token group %q: duplicate token %q", name, t.Name)
		}
		t.Group = name
		switch {
		case t.Value.IsColor:
			t.Unit = units.None
		case t.Unit == inheritUnit:
			t.Unit = unit
		case t.Unit != units.None && !t.Unit.Valid():
			return nil, fmt.Errorf("token %s.%s: %w: %q", name, t.Name, units.ErrUnknownUnit, t.Unit)
		}
		g.index[t.Name] = 0
		g.tokens = append(g.tokens, t)
	}
	slices.SortFunc(g.tokens, func(a, b Token) int {
		switch {
		case a.Name == b.Name:
			return 0
		case natural.Less(a.Name, b.Name):
			return -1
		default:
			return 1
		}
	})
	for i, t := range g.tokens {
		g.index[t.Name] = i
	}
	return g, nil
}

// NewTable assembles groups into a table.
func NewTable(version string, groups ...*Group) (*Table, error) {
	t := &Table{
		version: version,
		groups:  make(map[string]*Group, len(groups)),
		names:   make([]string, 0, len(groups)),
	}
	for _, g := range groups {
		if _, dup := t.groups[g.Name]; dup {
			return nil, fmt.Errorf("duplicate token group %q", g.Name)
		}
		t.groups[g.Name] = g
		t.names = append(t.names, g.Name)
	}
	sort.Sort(natural.StringSlice(t.names))
	t.key = fmt.Sprintf("%s-%016x", version, xxhash.Sum64String(t.canonical()))
	return t, nil
}

// Version returns table version as declared by its author.
func (t *Table) Version() string {
	return t.version
}

// Key identifies table content: version plus content fingerprint. Equal keys
// mean equal compilation results.
func (t *Table) Key() string {
	return t.key
}

// Names returns group names in natural order.
func (t *Table) Names() []string {
	return slices.Clone(t.names)
}

// Has reports whether group exists.
func (t *Table) Has(name string) bool {
	_, ok := t.groups[name]
	return ok
}

// Group returns group by name or ErrUnknownTokenGroup.
func (t *Table) Group(name string) (*Group, error) {
	g, ok := t.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTokenGroup, name)
	}
	return g, nil
}

func (t *Table) canonical() string {
	var sb strings.Builder
	sb.WriteString(t.version)
	sb.WriteByte('\n')
	for _, name := range t.names {
		g := t.groups[name]
		fmt.Fprintf(&sb, "[%s %s %s]\n", g.Name, g.Kind, g.Unit)
		for _, tok := range g.tokens {
			fmt.Fprintf(&sb, "%s=%s%s\n", tok.Name, tok.Value, tok.Unit)
		}
	}
	return sb.String()
}
