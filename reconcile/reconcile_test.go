package reconcile

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"cvstyle/docmodel"
	"cvstyle/docx"
	"cvstyle/numbering"
	"cvstyle/ooxml"
	"cvstyle/units"
)

func length(t *testing.T, s string) units.Length {
	t.Helper()
	l, err := units.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func options(t *testing.T) Options {
	return Options{
		BulletPosition: length(t, "0.1in"),
		TextPosition:   length(t, "0.23in"),
	}
}

func activeManager(t *testing.T) *numbering.Manager {
	t.Helper()
	m := numbering.NewManager(zaptest.NewLogger(t))
	if err := m.Open(); err != nil {
		t.Fatal(err)
	}
	return m
}

func ref(t *testing.T, p docmodel.Paragraph) (docmodel.NumRef, bool) {
	t.Helper()
	r, ok, err := p.NumRef()
	if err != nil {
		t.Fatalf("NumRef(%s) error = %v", p.ID(), err)
	}
	return r, ok
}

func TestRepairsDriftedParagraphs(t *testing.T) {
	m := activeManager(t)
	d := docx.New(nil)
	body := d.Body()

	body.AddParagraph().AddRun("Experience")

	// consistent: attached through manager at role level
	good := body.AddParagraph().AddRun("Consistent")
	good.SetStyleID("ListBullet")
	list, err := m.AllocateForPositions(length(t, "0.1in"), length(t, "0.23in"))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Attach(good, list, 0); err != nil {
		t.Fatal(err)
	}

	// wrong level
	wrong := body.AddParagraph().AddRun("Wrong level")
	wrong.SetStyleID("ListBullet")
	wrong.SetNumRef(docmodel.NumRef{NumID: list, Level: 2})

	// zero id counts as absent
	zero := body.AddParagraph().AddRun("Zero")
	zero.SetStyleID("ListBullet3")
	zero.SetNumRef(docmodel.NumRef{NumID: 0})

	// nested table, manual glyph split across runs
	inner := body.AddTable(1, 1).Cell(0, 0).AddTable(1, 1).Cell(0, 0)
	nested := inner.AddParagraph().AddRun("•").AddTab().AddRun("Nested bullet")
	nested.SetStyleID("ListBullet2")

	e := New(m, options(t), zaptest.NewLogger(t))
	if e.State() != StateIdle {
		t.Errorf("State() = %s", e.State())
	}
	report, err := e.Run(d)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if e.State() != StateReported {
		t.Errorf("State() = %s", e.State())
	}
	if report.Scanned != 5 || report.Repaired != 3 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.Err() != nil {
		t.Errorf("Err() = %v", report.Err())
	}

	for _, tt := range []struct {
		p     *docx.Paragraph
		level int
	}{{good, 0}, {wrong, 0}, {zero, 2}, {nested, 1}} {
		r, ok := ref(t, tt.p)
		if !ok || r.NumID != list || r.Level != tt.level {
			t.Errorf("%s: NumRef() = %+v, %v, want list %d level %d", tt.p.Text(), r, ok, list, tt.level)
		}
	}
	if got := nested.Text(); got != "Nested bullet" {
		t.Errorf("glyph not stripped: %q", got)
	}
	if n := len(m.Definitions()); n != 1 {
		t.Errorf("default list must reuse existing definition, got %d", n)
	}
}

func TestIdempotent(t *testing.T) {
	m := activeManager(t)
	d := docx.New(nil)
	for _, style := range []string{"ListBullet", "ListBullet2", "Normal", "ListBullet3"} {
		p := d.Body().AddParagraph().AddRun("• item")
		p.SetStyleID(style)
	}

	e := New(m, options(t), nil)
	first, err := e.Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if first.Repaired != 3 {
		t.Errorf("first pass repaired %d, want 3", first.Repaired)
	}
	before, err := d.DocumentXML()
	if err != nil {
		t.Fatal(err)
	}

	second, err := e.Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if second.Repaired != 0 || second.Skipped != 0 || second.Scanned != 4 {
		t.Errorf("second pass = %+v", second)
	}
	if first.RunID == second.RunID {
		t.Error("run ids must differ")
	}
	after, err := d.DocumentXML()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("second pass modified document")
	}
}

func TestExpectationWins(t *testing.T) {
	m := activeManager(t)
	list, err := m.AllocateOrReuse(length(t, "0.5in"), length(t, "0.25in"))
	if err != nil {
		t.Fatal(err)
	}
	d := docx.New(nil)
	p := d.Body().AddParagraph().AddRun("Expected")
	p.SetStyleID("ListBullet")
	if err := m.Expect(p, list, 1); err != nil {
		t.Fatal(err)
	}
	plain := d.Body().AddParagraph().AddRun("No style")
	if err := m.Expect(plain, list, 0); err != nil {
		t.Fatal(err)
	}

	report, err := New(m, options(t), nil).Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if report.Repaired != 2 {
		t.Errorf("report = %+v", report)
	}
	if r, _ := ref(t, p); r != (docmodel.NumRef{NumID: list, Level: 1}) {
		t.Errorf("expected paragraph ref = %+v", r)
	}
	if r, _ := ref(t, plain); r != (docmodel.NumRef{NumID: list, Level: 0}) {
		t.Errorf("plain paragraph ref = %+v", r)
	}
	// no default list was needed
	if n := len(m.Definitions()); n != 1 {
		t.Errorf("got %d definitions", n)
	}
}

func TestFailuresAreSkipped(t *testing.T) {
	src := `<w:document xmlns:w="` + ooxml.NsW + `"><w:body>` +
		`<w:p><w:pPr><w:pStyle w:val="ListBullet"/><w:numPr><w:numId w:val="bad"/></w:numPr></w:pPr><w:r><w:t>Malformed</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:pStyle w:val="ListBullet"/></w:pPr></w:p>` +
		`<w:p><w:pPr><w:pStyle w:val="ListBullet"/></w:pPr><w:r><w:t>Fine</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	d, err := docx.Parse([]byte(src), nil)
	if err != nil {
		t.Fatal(err)
	}

	report, err := New(activeManager(t), options(t), nil).Run(d)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Scanned != 3 || report.Repaired != 1 || report.Skipped != 2 || len(report.Failures) != 2 {
		t.Fatalf("report = %+v", report)
	}

	err = report.Err()
	if !errors.Is(err, ErrRepairFailure) {
		t.Errorf("Err() = %v", err)
	}
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("got %d errors", len(errs))
	}
	if !errors.Is(errs[0], docmodel.ErrMalformedNumRef) {
		t.Errorf("first failure = %v", errs[0])
	}
	if !errors.Is(errs[1], docmodel.ErrEmptyParagraph) {
		t.Errorf("second failure = %v", errs[1])
	}
	var rf *RepairFailure
	if !errors.As(errs[1], &rf) || rf.ParagraphID != report.Failures[1].Paragraph {
		t.Errorf("failure details = %+v", rf)
	}
}

func TestUnknownListIsDrift(t *testing.T) {
	src := `<w:document xmlns:w="` + ooxml.NsW + `"><w:body>` +
		`<w:p><w:pPr><w:pStyle w:val="ListBullet"/><w:numPr><w:ilvl w:val="0"/><w:numId w:val="42"/></w:numPr></w:pPr><w:r><w:t>Dangling</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	d, err := docx.Parse([]byte(src), nil)
	if err != nil {
		t.Fatal(err)
	}
	report, err := New(activeManager(t), options(t), nil).Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if report.Repaired != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestBudgetWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	now := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	opts := options(t)
	opts.Budget = 10 * time.Millisecond
	opts.Clock = clock

	d := docx.New(nil)
	d.Body().AddParagraph().AddRun("a")
	d.Body().AddParagraph().AddRun("b")

	report, err := New(activeManager(t), opts, zap.New(core)).Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if !report.OverBudget || report.DurationMS != 1000 {
		t.Errorf("report = %+v", report)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d warnings, want 1", len(entries))
	}
	if n := entries[0].ContextMap()["paragraphs"]; n != int64(2) {
		t.Errorf("paragraphs field = %v", n)
	}
}

func TestInactiveManager(t *testing.T) {
	d := docx.New(nil)
	p := d.Body().AddParagraph().AddRun("x")
	p.SetStyleID("ListBullet")

	m := numbering.NewManager(nil)
	e := New(m, options(t), nil)
	if _, err := e.Run(d); !errors.Is(err, numbering.ErrNotActive) {
		t.Errorf("Run() error = %v", err)
	}
	if e.State() != StateIdle {
		t.Errorf("State() = %s", e.State())
	}

	// nothing to repair does not need the manager
	empty := docx.New(nil)
	empty.Body().AddParagraph().AddRun("plain")
	if _, err := New(m, options(t), nil).Run(empty); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestCustomRolesAndGlyphs(t *testing.T) {
	d := docx.New(nil)
	p := d.Body().AddParagraph().AddRun("- Skill")
	p.SetStyleID("Skills")

	opts := options(t)
	opts.Roles = map[string]int{"Skills": 0}
	opts.Glyphs = "-"
	report, err := New(activeManager(t), opts, nil).Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if report.Repaired != 1 || p.Text() != "Skill" {
		t.Errorf("report = %+v, text = %q", report, p.Text())
	}
}

func TestCopiedParagraphsAreIdempotent(t *testing.T) {
	src := `<w:document xmlns:w="` + ooxml.NsW + `" xmlns:w14="` + ooxml.NsW14 + `"><w:body>` +
		`<w:p w14:paraId="00000010"><w:pPr><w:pStyle w:val="ListBullet"/></w:pPr><w:r><w:t>• Led the team</w:t></w:r></w:p>` +
		`<w:p w14:paraId="00000010"><w:pPr><w:pStyle w:val="ListBullet2"/></w:pPr><w:r><w:t>◦ Hired four</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	d, err := docx.Parse([]byte(src), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	e := New(activeManager(t), options(t), zaptest.NewLogger(t))
	first, err := e.Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if first.Scanned != 2 || first.Repaired != 2 {
		t.Errorf("first pass = %+v", first)
	}
	second, err := e.Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if second.Repaired != 0 || second.Skipped != 0 {
		t.Errorf("second pass = %+v", second)
	}
	var levels []int
	for p := range d.Paragraphs() {
		r, _ := ref(t, p)
		levels = append(levels, r.Level)
	}
	if len(levels) != 2 || levels[0] != 0 || levels[1] != 1 {
		t.Errorf("levels = %v", levels)
	}
}

func TestTextBoxBullets(t *testing.T) {
	src := `<w:document xmlns:w="` + ooxml.NsW + `" xmlns:mc="` + ooxml.NsMC + `"` +
		` xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape"` +
		` xmlns:v="urn:schemas-microsoft-com:vml"><w:body>` +
		`<w:p><w:r><w:t>Anchor</w:t></w:r><w:r><mc:AlternateContent>` +
		`<mc:Choice Requires="wps"><w:drawing><wps:wsp><wps:txbx><w:txbxContent>` +
		`<w:p><w:pPr><w:pStyle w:val="ListBullet"/></w:pPr><w:r><w:t>• Sidebar skill</w:t></w:r></w:p>` +
		`</w:txbxContent></wps:txbx></wps:wsp></w:drawing></mc:Choice>` +
		`<mc:Fallback><w:pict><v:shape><v:textbox><w:txbxContent>` +
		`<w:p><w:pPr><w:pStyle w:val="ListBullet"/></w:pPr><w:r><w:t>• Sidebar skill</w:t></w:r></w:p>` +
		`</w:txbxContent></v:textbox></v:shape></w:pict></mc:Fallback>` +
		`</mc:AlternateContent></w:r></w:p>` +
		`</w:body></w:document>`
	d, err := docx.Parse([]byte(src), nil)
	if err != nil {
		t.Fatal(err)
	}
	report, err := New(activeManager(t), options(t), nil).Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 2 || report.Repaired != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestDefaultPositions(t *testing.T) {
	m := activeManager(t)
	d := docx.New(nil)
	p := d.Body().AddParagraph().AddRun("• Bullet")
	p.SetStyleID("ListBullet")

	report, err := New(m, Options{}, zaptest.NewLogger(t)).Run(d)
	if err != nil {
		t.Fatal(err)
	}
	if report.Repaired != 1 || report.Err() != nil {
		t.Fatalf("report = %+v, err = %v", report, report.Err())
	}
	list, err := m.AllocateForPositions(DefaultBulletPosition, DefaultTextPosition)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := ref(t, p); r.NumID != list {
		t.Errorf("NumRef() = %+v, want list %d", r, list)
	}
	if n := len(m.Definitions()); n != 1 {
		t.Errorf("got %d definitions", n)
	}
}
