// Package reconcile runs the single final pass which brings bullet paragraphs
// of a document in line with native list numbering.
package reconcile

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"cvstyle/docmodel"
	"cvstyle/numbering"
	"cvstyle/units"
)

// ErrRepairFailure is the sentinel of per paragraph failures. They are
// recorded in report and never stop the pass.
var ErrRepairFailure = errors.New("paragraph repair failed")

// RepairFailure describes why paragraph was skipped.
type RepairFailure struct {
	ParagraphID string
	Err         error
}

func (e *RepairFailure) Error() string {
	return fmt.Sprintf("%s: paragraph %s: %v", ErrRepairFailure, e.ParagraphID, e.Err)
}

func (e *RepairFailure) Is(target error) bool {
	return target == ErrRepairFailure
}

func (e *RepairFailure) Unwrap() error {
	return e.Err
}

// State of the engine.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateRepairing
	StateReported
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateRepairing:
		return "repairing"
	case StateReported:
		return "reported"
	}
	return "unknown"
}

// DefaultGlyphs are literal bullet characters removed from repaired
// paragraphs.
const DefaultGlyphs = "•◦▪‣⁃·"

// DefaultRoles maps bullet role style ids to nesting levels.
func DefaultRoles() map[string]int {
	return map[string]int{
		"ListBullet":  0,
		"ListBullet2": 1,
		"ListBullet3": 2,
	}
}

// Options of reconciliation pass.
type Options struct {
	// Roles maps style id to expected nesting level, nil means DefaultRoles.
	Roles map[string]int
	// Glyphs is the set of literal bullet characters, empty means
	// DefaultGlyphs.
	Glyphs string
	// BulletPosition and TextPosition define indentation of the default list
	// used for paragraphs without recorded expectation. Unset values mean
	// DefaultBulletPosition and DefaultTextPosition.
	BulletPosition units.Length
	TextPosition   units.Length
	// Budget is soft time limit of the pass, zero disables the check.
	Budget time.Duration
	// Clock is used to measure the pass, nil means time.Now.
	Clock func() time.Time
}

// Default list indentation, the same as configuration defaults.
var (
	DefaultBulletPosition = units.Of(0.1, units.In)
	DefaultTextPosition   = units.Of(0.23, units.In)
)

// Failure is a report entry of skipped paragraph.
type Failure struct {
	Paragraph string `yaml:"paragraph"`
	Reason    string `yaml:"reason"`
}

// Report is the outcome of a pass.
type Report struct {
	RunID      string    `yaml:"run_id"`
	Scanned    int       `yaml:"scanned"`
	Repaired   int       `yaml:"repaired"`
	Skipped    int       `yaml:"skipped"`
	DurationMS int64     `yaml:"duration_ms"`
	OverBudget bool      `yaml:"over_budget,omitempty"`
	Paragraphs []string  `yaml:"paragraphs,omitempty"`
	Failures   []Failure `yaml:"failures,omitempty"`

	errs []error
}

// Err combines recorded failures, nil when every candidate was repaired.
func (r *Report) Err() error {
	return multierr.Combine(r.errs...)
}

func (r *Report) fail(p docmodel.Paragraph, err error) {
	f := &RepairFailure{ParagraphID: p.ID(), Err: err}
	r.errs = append(r.errs, f)
	r.Failures = append(r.Failures, Failure{Paragraph: p.ID(), Reason: err.Error()})
	r.Skipped++
}

type candidate struct {
	p     docmodel.Paragraph
	list  int
	level int
}

// Engine reconciles documents of one build session.
type Engine struct {
	log       *zap.Logger
	numbering *numbering.Manager
	roles     map[string]int
	glyphs    string
	bullet    units.Length
	text      units.Length
	budget    time.Duration
	clock     func() time.Time

	mu          sync.Mutex
	state       State
	defaultList int
}

// New creates engine bound to numbering manager of the document.
func New(m *numbering.Manager, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		log:       log.Named("reconcile"),
		numbering: m,
		roles:     opts.Roles,
		glyphs:    norm.NFC.String(opts.Glyphs),
		bullet:    opts.BulletPosition,
		text:      opts.TextPosition,
		budget:    opts.Budget,
		clock:     opts.Clock,
	}
	if e.roles == nil {
		e.roles = DefaultRoles()
	}
	if e.glyphs == "" {
		e.glyphs = DefaultGlyphs
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.bullet == (units.Length{}) {
		e.bullet = DefaultBulletPosition
	}
	if e.text == (units.Length{}) {
		e.text = DefaultTextPosition
	}
	return e
}

// State returns current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// Run scans the whole document and repairs drifted bullet paragraphs in
// place. Returned error means the pass could not run at all, per paragraph
// problems are in the report.
func (e *Engine) Run(doc docmodel.Document) (*Report, error) {
	e.mu.Lock()
	if e.state == StateScanning || e.state == StateRepairing {
		e.mu.Unlock()
		return nil, fmt.Errorf("reconciliation is already running (%s)", e.state)
	}
	e.state = StateScanning
	e.mu.Unlock()

	start := e.clock()
	report := &Report{RunID: uuid.NewString()}
	log := e.log.With(zap.String("run", report.RunID))

	registry, _ := doc.(docmodel.ListRegistry)
	candidates := e.scan(doc, registry, report)

	e.setState(StateRepairing)
	if len(candidates) > 0 && e.numbering.State() != numbering.StateActive {
		e.setState(StateIdle)
		return nil, fmt.Errorf("%w: reconciliation needs active manager, %s", numbering.ErrNotActive, e.numbering.State())
	}
	for _, c := range candidates {
		if err := e.repair(c, log); err != nil {
			report.fail(c.p, err)
			log.Debug("Paragraph skipped", zap.String("paragraph", c.p.ID()), zap.Error(err))
			continue
		}
		report.Repaired++
		report.Paragraphs = append(report.Paragraphs, c.p.ID())
	}

	elapsed := e.clock().Sub(start)
	report.DurationMS = elapsed.Milliseconds()
	if e.budget > 0 && elapsed > e.budget {
		report.OverBudget = true
		log.Warn("Reconciliation pass exceeded budget",
			zap.Int("paragraphs", report.Scanned), zap.Duration("elapsed", elapsed), zap.Duration("budget", e.budget))
	}
	e.setState(StateReported)

	log.Debug("Reconciliation done",
		zap.Int("scanned", report.Scanned), zap.Int("repaired", report.Repaired), zap.Int("skipped", report.Skipped))
	return report, nil
}

// scan selects paragraphs which need repair. Document is not modified.
func (e *Engine) scan(doc docmodel.Document, registry docmodel.ListRegistry, report *Report) []candidate {
	var out []candidate
	for p := range doc.Paragraphs() {
		report.Scanned++

		c := candidate{p: p}
		exp, expected, err := e.numbering.Expectation(p.ID())
		if err != nil {
			report.fail(p, err)
			continue
		}
		style, _ := p.StyleID()
		level, role := e.roles[style]
		switch {
		case expected:
			c.list, c.level = exp.ListID, exp.Level
		case role:
			c.level = level
		default:
			continue
		}

		ref, ok, err := p.NumRef()
		if err != nil {
			report.fail(p, err)
			continue
		}
		if ok && ref.NumID != 0 && ref.Level == c.level {
			known, err := e.knownList(ref.NumID, registry)
			if err != nil {
				report.fail(p, err)
				continue
			}
			if known {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// knownList reports whether reference points to existing list. Documents
// which cannot tell are trusted.
func (e *Engine) knownList(id int, registry docmodel.ListRegistry) (bool, error) {
	if registry == nil {
		return true, nil
	}
	owned, err := e.numbering.Has(id)
	if err != nil {
		return false, err
	}
	return owned || registry.KnownList(id), nil
}

func (e *Engine) repair(c candidate, log *zap.Logger) error {
	if !c.p.HasContent() {
		return &docmodel.EmptyParagraphError{ParagraphID: c.p.ID(), Op: "reconcile numbering"}
	}
	list := c.list
	if list == 0 {
		var err error
		if list, err = e.defaultListID(); err != nil {
			return err
		}
	}
	if err := e.numbering.Attach(c.p, list, c.level); err != nil {
		return err
	}
	if removed, ok := c.p.StripGlyphPrefix(e.glyphs); ok {
		log.Debug("Removed manual bullet", zap.String("paragraph", c.p.ID()), zap.String("prefix", removed))
	}
	return nil
}

// defaultListID allocates list for configured positions on first use.
func (e *Engine) defaultListID() (int, error) {
	if e.defaultList != 0 {
		return e.defaultList, nil
	}
	id, err := e.numbering.AllocateForPositions(e.bullet, e.text)
	if err != nil {
		return 0, fmt.Errorf("unable to allocate default list: %w", err)
	}
	e.defaultList = id
	return id, nil
}
