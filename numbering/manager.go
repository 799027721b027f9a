// Package numbering allocates native list definitions for one document and
// attaches paragraphs to them.
package numbering

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cvstyle/docmodel"
	"cvstyle/units"
)

var (
	// ErrNumberingAllocationConflict means manager was used from two
	// goroutines at once. Managers belong to a single document build.
	ErrNumberingAllocationConflict = errors.New("concurrent numbering allocation")
	// ErrNotActive is returned when manager is used outside of Active state.
	ErrNotActive = errors.New("numbering manager is not active")
	// ErrUnknownList is returned for list ids manager did not allocate.
	ErrUnknownList = errors.New("unknown numbering list")
	// ErrBadLevel is returned for nesting levels outside 0..8.
	ErrBadLevel = errors.New("numbering level out of range")
)

// State of the manager.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Levels is number of nesting levels in every definition.
const Levels = 9

// DefaultGlyphs cycle through nesting levels.
var DefaultGlyphs = []string{"•", "◦", "▪"}

// Level describes a single nesting level of a list.
type Level struct {
	Level        int
	LeftTwips    int64
	HangingTwips int64
	Glyph        string
}

// Definition is a list (numId) with its abstract template.
type Definition struct {
	ListID     int
	AbstractID int
	Levels     []Level
}

// Expectation is numbering a paragraph was given at creation time.
type Expectation struct {
	ListID int
	Level  int
}

type indentKey struct {
	left, hanging int64
}

// Manager owns numbering definitions of one document. It must be created
// fresh for every document build and passed explicitly.
type Manager struct {
	log    *zap.Logger
	id     uuid.UUID
	glyphs []string

	guard sync.Mutex
	state atomic.Int32

	nextList, nextAbstract int
	defs                   []Definition
	byIndent               map[indentKey]int
	byList                 map[int]int
	expect                 map[string]Expectation
}

// Option configures manager.
type Option func(*Manager)

// WithGlyphs sets bullet glyphs cycled through nesting levels.
func WithGlyphs(glyphs ...string) Option {
	return func(m *Manager) {
		if len(glyphs) > 0 {
			m.glyphs = glyphs
		}
	}
}

// WithFirstIDs makes allocation start after ids already present in the
// document.
func WithFirstIDs(list, abstract int) Option {
	return func(m *Manager) {
		m.nextList = max(list, 1)
		m.nextAbstract = max(abstract, 0)
	}
}

// NewManager creates manager in Uninitialized state.
func NewManager(log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		id:       uuid.New(),
		glyphs:   DefaultGlyphs,
		nextList: 1,
		byIndent: make(map[indentKey]int),
		byList:   make(map[int]int),
		expect:   make(map[string]Expectation),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = log.Named("numbering").With(zap.Stringer("manager", m.id))
	return m
}

// ID identifies manager in logs.
func (m *Manager) ID() uuid.UUID {
	return m.id
}

// acquire guards every operation. Contention is a programming error, so it
// does not wait.
func (m *Manager) acquire(op string) (func(), error) {
	if !m.guard.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrNumberingAllocationConflict, op)
	}
	return m.guard.Unlock, nil
}

// State returns current state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Open moves manager from Uninitialized to Active.
func (m *Manager) Open() error {
	release, err := m.acquire("open")
	if err != nil {
		return err
	}
	defer release()

	if st := m.State(); st != StateUninitialized {
		return fmt.Errorf("%w: cannot open manager in state %s", ErrNotActive, st)
	}
	m.state.Store(int32(StateActive))
	m.log.Debug("Numbering manager opened")
	return nil
}

// AllocateOrReuse returns list for indentation, creating definition on first
// request. Lengths are normalized to twips so equal indentation expressed
// in different units maps to the same list.
func (m *Manager) AllocateOrReuse(left, hanging units.Length) (int, error) {
	l, err := left.Twips()
	if err != nil {
		return 0, fmt.Errorf("left indent: %w", err)
	}
	h, err := hanging.Twips()
	if err != nil {
		return 0, fmt.Errorf("hanging indent: %w", err)
	}

	release, err := m.acquire("allocate")
	if err != nil {
		return 0, err
	}
	defer release()

	if st := m.State(); st != StateActive {
		return 0, fmt.Errorf("%w: allocate in state %s", ErrNotActive, st)
	}

	key := indentKey{left: l, hanging: h}
	if i, ok := m.byIndent[key]; ok {
		return m.defs[i].ListID, nil
	}

	def := Definition{ListID: m.nextList, AbstractID: m.nextAbstract, Levels: make([]Level, Levels)}
	for i := range Levels {
		def.Levels[i] = Level{
			Level:        i,
			LeftTwips:    l * int64(i+1),
			HangingTwips: h,
			Glyph:        m.glyphs[i%len(m.glyphs)],
		}
	}
	m.nextList++
	m.nextAbstract++
	m.defs = append(m.defs, def)
	m.byIndent[key] = len(m.defs) - 1
	m.byList[def.ListID] = len(m.defs) - 1

	m.log.Debug("Numbering definition allocated",
		zap.Int("list", def.ListID), zap.Int("abstract", def.AbstractID), zap.Int64("left", l), zap.Int64("hanging", h))
	return def.ListID, nil
}

// AllocateForPositions derives indentation from bullet and text positions
// and allocates list for it.
func (m *Manager) AllocateForPositions(bullet, text units.Length) (int, error) {
	indent, err := units.DeriveIndent(bullet, text)
	if err != nil {
		return 0, err
	}
	return m.AllocateOrReuse(indent.Left, indent.Hanging)
}

// Has reports whether list was allocated by this manager.
func (m *Manager) Has(listID int) (bool, error) {
	release, err := m.acquire("lookup")
	if err != nil {
		return false, err
	}
	defer release()
	_, ok := m.byList[listID]
	return ok, nil
}

// Attach sets paragraph numbering and records it as expected state.
// Paragraphs without runs are refused.
func (m *Manager) Attach(p docmodel.Paragraph, listID, level int) error {
	release, err := m.acquire("attach")
	if err != nil {
		return err
	}
	defer release()

	if err := m.check(listID, level); err != nil {
		return err
	}
	if !p.HasContent() {
		return &docmodel.EmptyParagraphError{ParagraphID: p.ID(), Op: "attach numbering"}
	}
	p.SetNumRef(docmodel.NumRef{NumID: listID, Level: level})
	m.expect[p.ID()] = Expectation{ListID: listID, Level: level}
	return nil
}

// Expect records numbering paragraph should have without touching it. Used
// by best effort insertion paths which leave attaching to reconciliation.
func (m *Manager) Expect(p docmodel.Paragraph, listID, level int) error {
	release, err := m.acquire("expect")
	if err != nil {
		return err
	}
	defer release()

	if err := m.check(listID, level); err != nil {
		return err
	}
	m.expect[p.ID()] = Expectation{ListID: listID, Level: level}
	return nil
}

// Expectation returns numbering recorded for paragraph.
func (m *Manager) Expectation(paragraphID string) (Expectation, bool, error) {
	release, err := m.acquire("expectation")
	if err != nil {
		return Expectation{}, false, err
	}
	defer release()
	e, ok := m.expect[paragraphID]
	return e, ok, nil
}

func (m *Manager) check(listID, level int) error {
	if st := m.State(); st != StateActive {
		return fmt.Errorf("%w: state %s", ErrNotActive, st)
	}
	if _, ok := m.byList[listID]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownList, listID)
	}
	if level < 0 || level >= Levels {
		return fmt.Errorf("%w: %d", ErrBadLevel, level)
	}
	return nil
}

// Definitions returns copy of allocated definitions in allocation order.
func (m *Manager) Definitions() []Definition {
	release, err := m.acquire("definitions")
	if err != nil {
		return nil
	}
	defer release()
	return m.copyDefs()
}

func (m *Manager) copyDefs() []Definition {
	out := make([]Definition, len(m.defs))
	for i, d := range m.defs {
		out[i] = d
		out[i].Levels = append([]Level(nil), d.Levels...)
	}
	return out
}

// Close finishes the session and returns definitions for serialization.
func (m *Manager) Close() ([]Definition, error) {
	release, err := m.acquire("close")
	if err != nil {
		return nil, err
	}
	defer release()

	if st := m.State(); st != StateActive {
		return nil, fmt.Errorf("%w: close in state %s", ErrNotActive, st)
	}
	m.state.Store(int32(StateClosed))
	m.log.Debug("Numbering manager closed", zap.Int("definitions", len(m.defs)), zap.Int("paragraphs", len(m.expect)))
	return m.copyDefs(), nil
}
