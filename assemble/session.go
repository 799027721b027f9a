// Package assemble wires style applier, numbering manager and reconciliation
// engine into a build session of one document.
package assemble

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cvstyle/docx"
	"cvstyle/emit"
	"cvstyle/numbering"
	"cvstyle/reconcile"
	"cvstyle/styling"
)

// ErrSessionFinished is returned when document is modified after Finish.
var ErrSessionFinished = errors.New("build session is finished")

// Options of build session.
type Options struct {
	Reconcile reconcile.Options
	// BulletStyles are style ids for nesting levels, deeper levels use the
	// last one. Empty means emitter list styles.
	BulletStyles []string
	// StripShadowing removes direct box overrides when style is applied.
	StripShadowing bool
	// ManualBullets selects legacy insertion: literal glyph prefix is written
	// and numbering is left to reconciliation.
	ManualBullets bool
}

// Session builds one document. It is not safe for concurrent use.
type Session struct {
	log        *zap.Logger
	doc        *docx.Document
	styles     *styling.Applier
	numbering  *numbering.Manager
	reconciler *reconcile.Engine
	opts       Options

	list     int
	finished bool
}

// NewSession opens numbering for document. Catalog may be nil.
func NewSession(doc *docx.Document, catalog *styling.Catalog, opts Options, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(opts.BulletStyles) == 0 {
		opts.BulletStyles = emit.ListBulletStyles
	}
	if opts.Reconcile.Roles == nil {
		opts.Reconcile.Roles = make(map[string]int, len(opts.BulletStyles))
		for i, id := range opts.BulletStyles {
			opts.Reconcile.Roles[id] = i
		}
	}

	list, abstract := doc.NextIDs()
	m := numbering.NewManager(log, numbering.WithFirstIDs(list, abstract))
	if err := m.Open(); err != nil {
		return nil, err
	}
	return &Session{
		log:        log.Named("assemble"),
		doc:        doc,
		styles:     styling.NewApplier(catalog, log, styling.WithStripShadowing(opts.StripShadowing)),
		numbering:  m,
		reconciler: reconcile.New(m, opts.Reconcile, log),
		opts:       opts,
	}, nil
}

// Numbering returns manager of the session.
func (s *Session) Numbering() *numbering.Manager {
	return s.numbering
}

// Styles returns style applier of the session.
func (s *Session) Styles() *styling.Applier {
	return s.styles
}

// AddParagraph appends paragraph with text and applies style. Text is added
// first so style assignment is honored.
func (s *Session) AddParagraph(c *docx.Container, styleID, text string) (*docx.Paragraph, error) {
	if s.finished {
		return nil, ErrSessionFinished
	}
	p := c.AddParagraph().AddRun(text)
	if styleID == "" {
		return p, nil
	}
	if err := s.styles.Apply(p, styleID); err != nil {
		return p, fmt.Errorf("unable to style paragraph: %w", err)
	}
	return p, nil
}

func (s *Session) bulletStyle(level int) string {
	return s.opts.BulletStyles[min(level, len(s.opts.BulletStyles)-1)]
}

func (s *Session) defaultList() (int, error) {
	if s.list != 0 {
		return s.list, nil
	}
	id, err := s.numbering.AllocateForPositions(s.opts.Reconcile.BulletPosition, s.opts.Reconcile.TextPosition)
	if err != nil {
		return 0, err
	}
	s.list = id
	return id, nil
}

// AddBullet appends bullet paragraph. Insertion is best effort: whatever is
// not set here is repaired by the reconciliation pass in Finish.
func (s *Session) AddBullet(c *docx.Container, text string, level int) (*docx.Paragraph, error) {
	if s.finished {
		return nil, ErrSessionFinished
	}
	if level < 0 || level >= numbering.Levels {
		return nil, fmt.Errorf("%w: %d", numbering.ErrBadLevel, level)
	}
	list, err := s.defaultList()
	if err != nil {
		return nil, err
	}

	p := c.AddParagraph().AddRun(text)
	if err := s.styles.Apply(p, s.bulletStyle(level)); err != nil {
		s.log.Debug("Bullet style not applied", zap.String("paragraph", p.ID()), zap.Error(err))
	}

	if s.opts.ManualBullets {
		p.PrependRun(numbering.DefaultGlyphs[level%len(numbering.DefaultGlyphs)] + " ")
		return p, s.numbering.Expect(p, list, level)
	}
	if err := s.numbering.Attach(p, list, level); err != nil {
		s.log.Debug("Numbering not attached", zap.String("paragraph", p.ID()), zap.Error(err))
		return p, s.numbering.Expect(p, list, level)
	}
	return p, nil
}

// Finish runs reconciliation, closes numbering and writes definitions into
// the document.
func (s *Session) Finish() (*reconcile.Report, error) {
	if s.finished {
		return nil, ErrSessionFinished
	}
	report, err := s.reconciler.Run(s.doc)
	if err != nil {
		return nil, err
	}
	defs, err := s.numbering.Close()
	if err != nil {
		return nil, err
	}
	s.doc.SetNumbering(defs)
	s.finished = true
	return report, nil
}
