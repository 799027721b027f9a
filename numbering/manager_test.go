package numbering

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"cvstyle/docmodel"
	"cvstyle/units"
)

// paragraph is a minimal in-memory paragraph.
type paragraph struct {
	id      string
	content bool
	ref     *docmodel.NumRef
	onCheck func()
}

func (p *paragraph) ID() string { return p.id }
func (p *paragraph) HasContent() bool {
	if p.onCheck != nil {
		p.onCheck()
	}
	return p.content
}
func (p *paragraph) Text() string                { return "" }
func (p *paragraph) StyleID() (string, bool)     { return "", false }
func (p *paragraph) SetStyleID(string)           {}
func (p *paragraph) SetNumRef(r docmodel.NumRef) { p.ref = &r }
func (p *paragraph) NumRef() (docmodel.NumRef, bool, error) {
	if p.ref == nil {
		return docmodel.NumRef{}, false, nil
	}
	return *p.ref, true, nil
}
func (p *paragraph) DirectParagraphProps() docmodel.Props     { return nil }
func (p *paragraph) DirectRunProps() docmodel.Props           { return nil }
func (p *paragraph) RemoveDirectParagraphProps(...string) int { return 0 }
func (p *paragraph) StripGlyphPrefix(string) (string, bool)   { return "", false }

func length(t *testing.T, s string) units.Length {
	t.Helper()
	l, err := units.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func openManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(zaptest.NewLogger(t), opts...)
	if err := m.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return m
}

func TestAllocateOrReuse(t *testing.T) {
	m := openManager(t)

	a, err := m.AllocateOrReuse(length(t, "0.965cm"), length(t, "0.33cm"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.AllocateOrReuse(length(t, "0.965cm"), length(t, "0.33cm"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("same indentation allocated twice: %d, %d", a, b)
	}
	// 0.965cm is 547 twips, the same list must be found through twips
	c, err := m.AllocateOrReuse(length(t, "547twip"), length(t, "187twip"))
	if err != nil {
		t.Fatal(err)
	}
	if c != a {
		t.Errorf("equal twips in other unit allocated new list %d", c)
	}
	d, err := m.AllocateOrReuse(length(t, "0.5in"), length(t, "0.25in"))
	if err != nil {
		t.Fatal(err)
	}
	if d == a {
		t.Error("different indentation reused list")
	}

	defs := m.Definitions()
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	def := defs[0]
	if def.ListID != 1 || def.AbstractID != 0 || len(def.Levels) != Levels {
		t.Errorf("definition = %+v", def)
	}
	if def.Levels[0].LeftTwips != 547 || def.Levels[2].LeftTwips != 1641 || def.Levels[2].HangingTwips != 187 {
		t.Errorf("levels = %+v", def.Levels[:3])
	}
	if def.Levels[3].Glyph != "•" || def.Levels[4].Glyph != "◦" {
		t.Errorf("glyph cycle = %q %q", def.Levels[3].Glyph, def.Levels[4].Glyph)
	}
}

func TestAllocateForPositions(t *testing.T) {
	m := openManager(t, WithFirstIDs(7, 3))
	id, err := m.AllocateForPositions(length(t, "0.1in"), length(t, "0.23in"))
	if err != nil {
		t.Fatal(err)
	}
	if id != 7 {
		t.Errorf("list id = %d, want 7", id)
	}
	def := m.Definitions()[0]
	if def.AbstractID != 3 || def.Levels[0].LeftTwips != 331 || def.Levels[0].HangingTwips != 187 {
		t.Errorf("definition = %+v", def)
	}
	if _, err := m.AllocateForPositions(length(t, "0.3in"), length(t, "0.2in")); !errors.Is(err, units.ErrInvertedIndent) {
		t.Errorf("inverted positions error = %v", err)
	}
}

func TestStateMachine(t *testing.T) {
	m := NewManager(nil)
	if m.State() != StateUninitialized {
		t.Errorf("State() = %s", m.State())
	}
	if _, err := m.AllocateOrReuse(length(t, "1in"), length(t, "0.25in")); !errors.Is(err, ErrNotActive) {
		t.Errorf("allocate before open error = %v", err)
	}
	if _, err := m.Close(); !errors.Is(err, ErrNotActive) {
		t.Errorf("close before open error = %v", err)
	}
	if err := m.Open(); err != nil {
		t.Fatal(err)
	}
	if err := m.Open(); !errors.Is(err, ErrNotActive) {
		t.Errorf("second open error = %v", err)
	}
	id, err := m.AllocateOrReuse(length(t, "1in"), length(t, "0.25in"))
	if err != nil {
		t.Fatal(err)
	}
	defs, err := m.Close()
	if err != nil || len(defs) != 1 {
		t.Fatalf("Close() = %v, %v", defs, err)
	}
	if m.State() != StateClosed {
		t.Errorf("State() = %s", m.State())
	}
	if err := m.Attach(&paragraph{id: "1", content: true}, id, 0); !errors.Is(err, ErrNotActive) {
		t.Errorf("attach after close error = %v", err)
	}
	if _, err := m.AllocateOrReuse(length(t, "2in"), length(t, "0.25in")); !errors.Is(err, ErrNotActive) {
		t.Errorf("allocate after close error = %v", err)
	}
}

func TestAttach(t *testing.T) {
	m := openManager(t)
	id, err := m.AllocateOrReuse(length(t, "331twip"), length(t, "187twip"))
	if err != nil {
		t.Fatal(err)
	}

	p := &paragraph{id: "A1", content: true}
	if err := m.Attach(p, id, 1); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if p.ref == nil || *p.ref != (docmodel.NumRef{NumID: id, Level: 1}) {
		t.Errorf("paragraph ref = %v", p.ref)
	}
	if e, ok, err := m.Expectation("A1"); err != nil || !ok || e != (Expectation{ListID: id, Level: 1}) {
		t.Errorf("Expectation() = %+v, %v, %v", e, ok, err)
	}

	empty := &paragraph{id: "B2"}
	err = m.Attach(empty, id, 0)
	if !errors.Is(err, docmodel.ErrEmptyParagraph) {
		t.Fatalf("Attach() on empty paragraph error = %v", err)
	}
	var epe *docmodel.EmptyParagraphError
	if !errors.As(err, &epe) || epe.ParagraphID != "B2" {
		t.Errorf("error details = %+v", epe)
	}
	if empty.ref != nil {
		t.Error("empty paragraph was modified")
	}
	if _, ok, _ := m.Expectation("B2"); ok {
		t.Error("empty paragraph must not be expected")
	}

	if err := m.Attach(p, id+10, 0); !errors.Is(err, ErrUnknownList) {
		t.Errorf("unknown list error = %v", err)
	}
	if err := m.Attach(p, id, Levels); !errors.Is(err, ErrBadLevel) {
		t.Errorf("bad level error = %v", err)
	}
}

func TestExpect(t *testing.T) {
	m := openManager(t)
	id, err := m.AllocateOrReuse(length(t, "331twip"), length(t, "187twip"))
	if err != nil {
		t.Fatal(err)
	}
	p := &paragraph{id: "C3"}
	if err := m.Expect(p, id, 2); err != nil {
		t.Fatal(err)
	}
	if p.ref != nil {
		t.Error("Expect() must not touch paragraph")
	}
	if e, ok, err := m.Expectation("C3"); err != nil || !ok || e.Level != 2 {
		t.Errorf("Expectation() = %+v, %v, %v", e, ok, err)
	}
	if ok, err := m.Has(id); err != nil || !ok {
		t.Errorf("Has(%d) = %v, %v", id, ok, err)
	}
	if ok, err := m.Has(id + 1); err != nil || ok {
		t.Errorf("Has(%d) = %v, %v", id+1, ok, err)
	}
}

func TestConcurrentUseIsRejected(t *testing.T) {
	m := openManager(t)
	id, err := m.AllocateOrReuse(length(t, "331twip"), length(t, "187twip"))
	if err != nil {
		t.Fatal(err)
	}

	// HasContent runs while manager holds its guard
	var inner error
	p := &paragraph{id: "D4", content: true, onCheck: func() {
		_, inner = m.AllocateOrReuse(length(t, "1in"), length(t, "0.5in"))
	}}
	if err := m.Attach(p, id, 0); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(inner, ErrNumberingAllocationConflict) {
		t.Errorf("overlapping allocation error = %v", inner)
	}

	// lookups report the conflict instead of a miss
	var lookupErr, hasErr error
	q := &paragraph{id: "E5", content: true, onCheck: func() {
		_, _, lookupErr = m.Expectation("D4")
		_, hasErr = m.Has(id)
	}}
	if err := m.Attach(q, id, 1); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(lookupErr, ErrNumberingAllocationConflict) {
		t.Errorf("overlapping Expectation() error = %v", lookupErr)
	}
	if !errors.Is(hasErr, ErrNumberingAllocationConflict) {
		t.Errorf("overlapping Has() error = %v", hasErr)
	}
	if n := len(m.Definitions()); n != 1 {
		t.Errorf("conflicting allocation created definition, got %d", n)
	}
}

func TestDefinitionsAreCopies(t *testing.T) {
	m := openManager(t)
	if _, err := m.AllocateOrReuse(length(t, "331twip"), length(t, "187twip")); err != nil {
		t.Fatal(err)
	}
	defs := m.Definitions()
	defs[0].Levels[0].LeftTwips = 1
	if m.Definitions()[0].Levels[0].LeftTwips != 331 {
		t.Error("Definitions() exposes internal state")
	}
}
