package transform_test

import (
	"errors"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"cvstyle/capability"
	"cvstyle/common"
	"cvstyle/rules"
	"cvstyle/transform"
	"cvstyle/units"
)

func descriptor(t *testing.T, e common.Engine) capability.Descriptor {
	t.Helper()
	d, err := capability.Lookup(e)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func mustHex(t *testing.T, s string) colorful.Color {
	t.Helper()
	c, err := colorful.Hex(s)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func props(t *testing.T, r rules.RawRule) map[rules.Property]string {
	t.Helper()
	out := make(map[rules.Property]string)
	for _, p := range r.Properties() {
		v, _ := r.Get(p)
		out[p] = v.String()
	}
	return out
}

func TestLowerLogicalBox(t *testing.T) {
	r := rules.New(".a", "a", map[rules.Property]rules.Value{
		rules.MarginBlockStart:    rules.Len(units.Of(12, units.Pt)),
		rules.MarginInlineStart:   rules.Len(units.Of(4, units.Pt)),
		rules.PaddingInlineEnd:    rules.Len(units.Of(2, units.Pt)),
		rules.MarginTop:           rules.Len(units.Of(1, units.Pt)),
		rules.BorderBlockEndWidth: rules.Len(units.Of(1, units.Pt)),
	})

	tests := []struct {
		dir  common.Direction
		want map[rules.Property]string
	}{
		{common.DirectionLtr, map[rules.Property]string{
			"margin-top":          "1pt",
			"margin-left":         "4pt",
			"padding-right":       "2pt",
			"border-bottom-width": "1pt",
		}},
		{common.DirectionRtl, map[rules.Property]string{
			"margin-top":          "1pt",
			"margin-right":        "4pt",
			"padding-left":        "2pt",
			"border-bottom-width": "1pt",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			d := descriptor(t, common.EnginePrintRaster).WithDirection(tt.dir)
			out, err := transform.LowerLogicalBox(r, d)
			if err != nil {
				t.Fatal(err)
			}
			got := props(t, out)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for p, v := range tt.want {
				if got[p] != v {
					t.Errorf("%s = %q, want %q", p, got[p], v)
				}
			}
		})
	}
}

func TestLowerColor(t *testing.T) {
	r := rules.New(".a", "a", map[rules.Property]rules.Value{
		rules.BackgroundColor: rules.Mix(mustHex(t, "#000000"), 50, mustHex(t, "#ffffff")),
		rules.TextColor:       rules.Color(mustHex(t, "#123456")),
	})
	out, err := transform.LowerColor(r, descriptor(t, common.EnginePrintRaster))
	if err != nil {
		t.Fatal(err)
	}
	got := props(t, out)
	if got[rules.BackgroundColor] != "#808080" {
		t.Errorf("background-color = %s, want #808080", got[rules.BackgroundColor])
	}
	if got[rules.TextColor] != "#123456" {
		t.Errorf("color = %s", got[rules.TextColor])
	}

	zero := rules.New(".a", "a", map[rules.Property]rules.Value{
		rules.BackgroundColor: rules.Mix(mustHex(t, "#2563eb"), 0, mustHex(t, "#ffffff")),
	})
	out, _ = transform.LowerColor(zero, descriptor(t, common.EnginePrintRaster))
	if v := props(t, out)[rules.BackgroundColor]; v != "#ffffff" {
		t.Errorf("0%% mix = %s, want base color", v)
	}
}

func TestLowerFontFeatures(t *testing.T) {
	r := rules.New(".a", "a", map[rules.Property]rules.Value{
		rules.FontFeatureSettings: rules.Features("tnum", "smcp", "liga"),
	})
	out, err := transform.LowerFontFeatures(r, descriptor(t, common.EngineWordProcessing))
	if err != nil {
		t.Fatal(err)
	}
	got := props(t, out)
	want := map[rules.Property]string{
		rules.FontVariantCaps:      "small-caps",
		rules.FontVariantNumeric:   "tabular-nums",
		rules.FontVariantLigatures: "common-ligatures",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for p, v := range want {
		if got[p] != v {
			t.Errorf("%s = %q, want %q", p, got[p], v)
		}
	}
}

func TestLowerFontFeaturesLastWins(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{"figure style", []string{"onum", "lnum"}, "oldstyle-nums"},
		{"input order", []string{"lnum", "onum"}, "oldstyle-nums"},
		{"both classes", []string{"tnum", "onum", "pnum", "lnum"}, "oldstyle-nums tabular-nums"},
		{"figure spacing", []string{"pnum", "tnum"}, "tabular-nums"},
		{"no conflict", []string{"onum", "tnum"}, "oldstyle-nums tabular-nums"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rules.New(".a", "a", map[rules.Property]rules.Value{
				rules.FontFeatureSettings: rules.Features(tt.tags...),
			})
			out, err := transform.LowerFontFeatures(r, descriptor(t, common.EnginePrintRaster))
			if err != nil {
				t.Fatal(err)
			}
			if got := props(t, out)[rules.FontVariantNumeric]; got != tt.want {
				t.Errorf("font-variant-numeric = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipelineLogsConflictingFeatures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := rules.New(".a", "a", map[rules.Property]rules.Value{
		rules.FontFeatureSettings: rules.Features("onum", "lnum"),
	})
	if _, err := transform.New(zap.New(core)).Run(r, descriptor(t, common.EngineWordProcessing)); err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessageSnippet("Conflicting font features").All()
	if len(entries) != 1 {
		t.Fatalf("got %d conflict entries, want 1", len(entries))
	}
	if dropped, ok := entries[0].ContextMap()["dropped"].([]any); !ok || len(dropped) != 1 || dropped[0] != "lnum" {
		t.Errorf("dropped = %v", entries[0].ContextMap()["dropped"])
	}
}

func TestLowerFontFeaturesNoFallback(t *testing.T) {
	r := rules.New(".a", "a", map[rules.Property]rules.Value{
		rules.FontFeatureSettings: rules.Features("ss01"),
	})
	_, err := transform.LowerFontFeatures(r, descriptor(t, common.EnginePrintRaster))
	if !errors.Is(err, transform.ErrUnsupportedFeatureNoFallback) {
		t.Fatalf("error = %v, want ErrUnsupportedFeatureNoFallback", err)
	}
	var ufe *transform.UnsupportedFeatureError
	if !errors.As(err, &ufe) || ufe.Engine != common.EnginePrintRaster || ufe.Feature != common.FeatureFontFeatures {
		t.Errorf("unexpected error details: %+v", ufe)
	}
}

func TestFinalizeRoundsHalfUp(t *testing.T) {
	r := rules.New(".a", "a", map[rules.Property]rules.Value{
		rules.MarginLeft:  rules.Len(units.Of(0.23, units.In)),
		rules.TextIndent:  rules.Len(units.Of(-0.13, units.In)),
		rules.PaddingLeft: rules.Len(units.Of(0.965, units.Cm)),
		rules.LineHeight:  rules.Num(1.15),
	})

	out, err := transform.Finalize(r, descriptor(t, common.EngineWordProcessing))
	if err != nil {
		t.Fatal(err)
	}
	got := props(t, out)
	want := map[rules.Property]string{
		rules.MarginLeft:  "331twip",
		rules.TextIndent:  "-187twip",
		rules.PaddingLeft: "547twip",
		rules.LineHeight:  "1.15",
	}
	for p, v := range want {
		if got[p] != v {
			t.Errorf("%s = %q, want %q", p, got[p], v)
		}
	}

	px, _ := transform.Finalize(r, descriptor(t, common.EnginePrintRaster))
	if v := props(t, px)[rules.MarginLeft]; v != "22px" {
		t.Errorf("print margin-left = %s, want 22px", v)
	}

	same, _ := transform.Finalize(r, descriptor(t, common.EngineInteractivePreview))
	if same.String() != r.String() {
		t.Errorf("preview must keep lengths: %s", same)
	}
}

func TestPipelineRun(t *testing.T) {
	r := rules.New(".section-box", "sectionBox", map[rules.Property]rules.Value{
		rules.MarginBlockStart:    rules.Len(units.Of(12, units.Pt)),
		rules.BackgroundColor:     rules.Mix(mustHex(t, "#000000"), 50, mustHex(t, "#ffffff")),
		rules.FontFeatureSettings: rules.Features("smcp"),
	})
	p := transform.New(zaptest.NewLogger(t))

	preview, err := p.Run(r, descriptor(t, common.EngineInteractivePreview))
	if err != nil {
		t.Fatal(err)
	}
	if preview.String() != r.String() {
		t.Errorf("preview supports everything, rule must be unchanged: %s", preview)
	}

	word, err := p.Run(r, descriptor(t, common.EngineWordProcessing))
	if err != nil {
		t.Fatal(err)
	}
	got := props(t, word)
	want := map[rules.Property]string{
		rules.MarginTop:       "240twip",
		rules.BackgroundColor: "#808080",
		rules.FontVariantCaps: "small-caps",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for prop, v := range want {
		if got[prop] != v {
			t.Errorf("%s = %q, want %q", prop, got[prop], v)
		}
	}
}

func TestPipelineMissingStage(t *testing.T) {
	r := rules.New(".a", "a", map[rules.Property]rules.Value{
		rules.BackgroundColor: rules.Mix(mustHex(t, "#000000"), 50, mustHex(t, "#ffffff")),
	})
	p := transform.New(nil, transform.Step{Stage: transform.StageFinal, Fn: transform.Finalize})

	_, err := p.Run(r, descriptor(t, common.EnginePrintRaster))
	if !errors.Is(err, transform.ErrUnsupportedFeatureNoFallback) {
		t.Errorf("error = %v, want ErrUnsupportedFeatureNoFallback", err)
	}
	if _, err := p.Run(r, descriptor(t, common.EngineInteractivePreview)); err != nil {
		t.Errorf("native feature needs no stage, got %v", err)
	}
}

func TestRunAllAggregates(t *testing.T) {
	bad := func(sel string) rules.RawRule {
		return rules.New(sel, "x", map[rules.Property]rules.Value{rules.FontFeatureSettings: rules.Features("ss02")})
	}
	good := rules.New(".ok", "ok", map[rules.Property]rules.Value{rules.FontSize: rules.Len(units.Of(10, units.Pt))})

	out, err := transform.New(nil).RunAll([]rules.RawRule{bad(".a"), good, bad(".b")}, descriptor(t, common.EnginePrintRaster))
	if err == nil {
		t.Fatal("expected error")
	}
	if out != nil {
		t.Errorf("no rules expected on failure, got %d", len(out))
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("expected 2 aggregated errors, got %d", n)
	}
}

