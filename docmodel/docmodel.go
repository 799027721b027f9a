// Package docmodel defines the document handle contract the numbering,
// styling and reconciliation components work against.
package docmodel

import (
	"errors"
	"fmt"
	"iter"
)

// ErrEmptyParagraph is returned when style or numbering is applied to a
// paragraph without runs. Word processors silently ignore such assignments.
var ErrEmptyParagraph = errors.New("paragraph has no content")

// ErrMalformedNumRef is returned when paragraph numbering reference cannot
// be read.
var ErrMalformedNumRef = errors.New("malformed numbering reference")

// EmptyParagraphError carries details of ErrEmptyParagraph.
type EmptyParagraphError struct {
	ParagraphID string
	Op          string
}

func (e *EmptyParagraphError) Error() string {
	return fmt.Sprintf("%s: %s on paragraph %s", ErrEmptyParagraph, e.Op, e.ParagraphID)
}

func (e *EmptyParagraphError) Is(target error) bool {
	return target == ErrEmptyParagraph
}

// NumRef points paragraph to a numbering list and nesting level.
type NumRef struct {
	NumID int
	Level int
}

// Props is a set of formatting properties keyed by element name ("w:sz")
// with canonical value text.
type Props map[string]string

// Paragraph is a live view of a paragraph node.
type Paragraph interface {
	// ID is stable for the lifetime of the document.
	ID() string
	// HasContent reports whether paragraph has at least one run, it is
	// always computed from the live tree.
	HasContent() bool
	Text() string

	StyleID() (string, bool)
	SetStyleID(id string)

	// NumRef returns numbering reference, ok is false when paragraph has
	// none. Error wraps ErrMalformedNumRef.
	NumRef() (ref NumRef, ok bool, err error)
	SetNumRef(ref NumRef)

	// DirectParagraphProps returns paragraph level direct formatting
	// excluding style and numbering references.
	DirectParagraphProps() Props
	// DirectRunProps returns character level direct formatting of the
	// first run.
	DirectRunProps() Props
	// RemoveDirectParagraphProps drops listed direct paragraph properties
	// and returns how many were present.
	RemoveDirectParagraphProps(names ...string) int

	// StripGlyphPrefix removes leading literal bullet glyphs (any rune of
	// glyphs) and the whitespace after them across runs. It returns
	// removed text.
	StripGlyphPrefix(glyphs string) (string, bool)
}

// Document enumerates paragraphs including ones nested in tables.
type Document interface {
	// Paragraphs yields every paragraph in document order.
	Paragraphs() iter.Seq[Paragraph]
}

// ListRegistry is implemented by documents which know numbering lists
// defined before current build session.
type ListRegistry interface {
	KnownList(numID int) bool
}
