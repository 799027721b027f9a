package rules_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"cvstyle/rules"
	"cvstyle/tokens"
	"cvstyle/units"
)

func mustGroup(t *testing.T, name string, kind tokens.GroupKind, unit units.Unit, toks ...tokens.Token) *tokens.Group {
	t.Helper()
	g, err := tokens.NewGroup(name, kind, unit, toks...)
	if err != nil {
		t.Fatalf("NewGroup(%s) error = %v", name, err)
	}
	return g
}

func mustTable(t *testing.T, groups ...*tokens.Group) *tokens.Table {
	t.Helper()
	table, err := tokens.NewTable("test", groups...)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return table
}

func TestSelectorFor(t *testing.T) {
	tests := map[string]string{
		"roleBox":    ".role-box",
		"sectionBox": ".section-box",
		"bullets":    ".bullets",
		"h2Title":    ".h2-title",
	}
	for in, want := range tests {
		if got := rules.SelectorFor(in); got != want {
			t.Errorf("SelectorFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompileBox(t *testing.T) {
	table := mustTable(t, mustGroup(t, "sectionBox", tokens.KindBox, units.Pt,
		tokens.T("marginBlock", 6),
		tokens.T("marginBlockStart", 12),
		tokens.T("borderBlockEndWidth", 0.75),
		tokens.C("borderColor", "#1f2937"),
		tokens.C("accent", "#2563eb"),
		tokens.C("background", "#ffffff"),
		tokens.U("tint", 8, units.None),
		tokens.U("lineHeight", 1.15, units.None),
		tokens.U("smallCaps", 1, units.None),
		tokens.U("stylisticSet1", 1, units.None),
		tokens.T("mystery", 1),
	))
	c := rules.NewCompiler(table, nil, zaptest.NewLogger(t))

	rs, err := c.Compile("sectionBox")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rs))
	}
	r := rs[0]
	if r.Selector() != ".section-box" {
		t.Errorf("Selector() = %q", r.Selector())
	}

	want := map[rules.Property]string{
		rules.MarginBlockStart:    "12pt",
		rules.MarginBlockEnd:      "6pt",
		rules.BorderBlockEndWidth: "0.75pt",
		rules.BorderBlockEndStyle: "solid",
		rules.BorderColor:         "#1f2937",
		rules.BackgroundColor:     "color-mix(in srgb, #2563eb 8%, #ffffff)",
		rules.LineHeight:          "1.15",
		rules.FontFeatureSettings: `"smcp", "ss01"`,
	}
	for p, v := range want {
		got, ok := r.Get(p)
		if !ok {
			t.Errorf("missing %s", p)
			continue
		}
		if got.String() != v {
			t.Errorf("%s = %q, want %q", p, got.String(), v)
		}
	}
	if r.Len() != len(want) {
		t.Errorf("rule has %d properties, want %d: %s", r.Len(), len(want), r)
	}
}

func TestCompileBullets(t *testing.T) {
	table := mustTable(t, mustGroup(t, "bullets", tokens.KindBullets, units.In,
		tokens.T("bulletPosition", 0.1),
		tokens.T("textPosition", 0.23),
	))
	rs, err := rules.NewCompiler(table, nil, zaptest.NewLogger(t)).Compile("bullets")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	r := rs[0]

	left, _ := r.Get(rules.PaddingInlineStart)
	if tw, _ := left.Length.Twips(); tw != 331 {
		t.Errorf("left indent = %d twips, want 331", tw)
	}
	indent, _ := r.Get(rules.TextIndent)
	if tw, _ := indent.Length.Twips(); tw != -187 {
		t.Errorf("text indent = %d twips, want -187", tw)
	}
}

func TestCompileBulletsErrors(t *testing.T) {
	tests := []struct {
		name string
		toks []tokens.Token
		want error
	}{
		{"missing text", []tokens.Token{tokens.T("bulletPosition", 0.1)}, nil},
		{"inverted", []tokens.Token{tokens.T("bulletPosition", 0.3), tokens.T("textPosition", 0.2)}, units.ErrInvertedIndent},
		{"unitless", []tokens.Token{tokens.U("bulletPosition", 0.1, units.None), tokens.T("textPosition", 0.2)}, units.ErrUnitlessLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustTable(t, mustGroup(t, "bullets", tokens.KindBullets, units.In, tt.toks...))
			_, err := rules.NewCompiler(table, nil, nil).Compile("bullets")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompilePage(t *testing.T) {
	table := mustTable(t, mustGroup(t, "page", tokens.KindPage, units.In,
		tokens.T("marginTop", 0.75),
		tokens.T("marginLeft", 0.5),
	))
	rs, err := rules.NewCompiler(table, nil, nil).Compile("page")
	if err != nil {
		t.Fatal(err)
	}
	if !rs[0].IsPage() {
		t.Error("page group must produce page rule")
	}
	if v, _ := rs[0].Get(rules.MarginLeft); v.String() != "0.5in" {
		t.Errorf("margin-left = %s", v)
	}
}

func TestFallbackWarnsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	table := mustTable(t, mustGroup(t, "sectionBox", tokens.KindBox, units.Pt, tokens.T("marginBlockStart", 12)))
	c := rules.NewCompiler(table, nil, zap.New(core))

	for range 3 {
		rs, err := c.Compile("roleBox")
		if err != nil {
			t.Fatalf("Compile(roleBox) error = %v", err)
		}
		if rs[0].Selector() != ".role-box" {
			t.Errorf("selector = %q, want .role-box", rs[0].Selector())
		}
		if rs[0].Group() != "sectionBox" {
			t.Errorf("values must come from sectionBox, got %q", rs[0].Group())
		}
		if v, _ := rs[0].Get(rules.MarginBlockStart); v.String() != "12pt" {
			t.Errorf("margin-block-start = %s", v)
		}
	}
	if n := logs.Len(); n != 1 {
		t.Errorf("expected exactly one warning, got %d", n)
	}
}

func TestUnknownGroupWithoutFallback(t *testing.T) {
	table := mustTable(t, mustGroup(t, "sectionBox", tokens.KindBox, units.Pt))
	c := rules.NewCompiler(table, map[string]string{}, nil)

	_, err := c.Compile("roleBox")
	if !errors.Is(err, tokens.ErrUnknownTokenGroup) {
		t.Errorf("error = %v, want ErrUnknownTokenGroup", err)
	}
}

func TestFallbackNeedsBaseGroup(t *testing.T) {
	table := mustTable(t,
		mustGroup(t, "headerBox", tokens.KindBox, units.Pt, tokens.T("marginBlockEnd", 8)),
		mustGroup(t, "skillsBox10", tokens.KindBox, units.Pt),
		mustGroup(t, "skillsBox2", tokens.KindBox, units.Pt),
	)
	c := rules.NewCompiler(table, nil, zaptest.NewLogger(t))

	want := []string{"headerBox", "skillsBox2", "skillsBox10"}
	if diff := cmp.Diff(want, c.Groups()); diff != "" {
		t.Errorf("Groups() mismatch (-want +got):\n%s", diff)
	}
	rs, err := c.CompileAll()
	if err != nil {
		t.Fatalf("CompileAll() error = %v", err)
	}
	if len(rs) != 3 {
		t.Errorf("got %d rules, want 3", len(rs))
	}

	// explicit request still reports the missing base
	if _, err := c.Compile("roleBox"); !errors.Is(err, tokens.ErrUnknownTokenGroup) {
		t.Errorf("Compile(roleBox) error = %v", err)
	}
}

func TestCompileAllDeterministic(t *testing.T) {
	c := rules.NewCompiler(tokens.Default(), nil, nil)

	first, err := c.CompileAll()
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.CompileAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("rule counts differ: %d vs %d", len(first), len(second))
	}
	var selectors []string
	for i := range first {
		if first[i].String() != second[i].String() {
			t.Errorf("rule %d differs:\n%s\n%s", i, first[i], second[i])
		}
		selectors = append(selectors, first[i].Selector())
	}
	want := []string{".bullets", ".header-box", "@page", ".role-box", ".section-box"}
	if len(selectors) != len(want) {
		t.Fatalf("selectors = %v, want %v", selectors, want)
	}
	for i := range want {
		if selectors[i] != want[i] {
			t.Errorf("selectors = %v, want %v", selectors, want)
			break
		}
	}
}

func TestRawRuleImmutable(t *testing.T) {
	r := rules.New(".a", "a", map[rules.Property]rules.Value{rules.FontSize: rules.Num(1)})
	r2 := r.With(rules.TextIndent, rules.Num(2)).Without(rules.FontSize)

	if !r.Has(rules.FontSize) || r.Has(rules.TextIndent) {
		t.Errorf("original rule changed: %s", r)
	}
	if r2.Has(rules.FontSize) || !r2.Has(rules.TextIndent) {
		t.Errorf("copy wrong: %s", r2)
	}
}
