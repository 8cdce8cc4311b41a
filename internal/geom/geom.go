// Package geom converts the viewer's page-relative positions into absolute
// document coordinates, the space highlights are stored in.
package geom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/marginalia/internal/models"
)

// Document is an open document able to map page positions to absolute ones.
type Document interface {
	NumPages() int
	PageWidth(page int) (float64, error)
	ToAbsolute(pos models.DocumentPos) (models.AbsolutePos, error)
	Close() error
}

// Opener opens documents by path.
type Opener interface {
	Open(path string) (Document, error)
}

// Converter transforms positions using documents obtained from an Opener.
type Converter struct {
	opener Opener
}

// NewConverter returns a Converter backed by opener.
func NewConverter(opener Opener) *Converter {
	return &Converter{opener: opener}
}

// ToAbsolute converts a selection endpoint. Selection offsets are measured
// from the page's left edge while the document transform expects them from
// the page centre, so half the page width is subtracted first.
func (c *Converter) ToAbsolute(path string, pos models.DocumentPos) (models.AbsolutePos, error) {
	doc, err := c.opener.Open(path)
	if err != nil {
		return models.AbsolutePos{}, fmt.Errorf("geom: open %s: %w", path, err)
	}
	defer doc.Close()
	return selectionToAbsolute(doc, pos)
}

// SelectionToAbsolute converts both ends of a selection with one document handle.
func (c *Converter) SelectionToAbsolute(path string, begin, end models.DocumentPos) (models.AbsolutePos, models.AbsolutePos, error) {
	doc, err := c.opener.Open(path)
	if err != nil {
		return models.AbsolutePos{}, models.AbsolutePos{}, fmt.Errorf("geom: open %s: %w", path, err)
	}
	defer doc.Close()

	b, err := selectionToAbsolute(doc, begin)
	if err != nil {
		return models.AbsolutePos{}, models.AbsolutePos{}, err
	}
	e, err := selectionToAbsolute(doc, end)
	if err != nil {
		return models.AbsolutePos{}, models.AbsolutePos{}, err
	}
	return b, e, nil
}

// PointToAbsolute converts a mouse position, whose offset is already
// relative to the page centre.
func (c *Converter) PointToAbsolute(path string, pos models.DocumentPos) (models.AbsolutePos, error) {
	doc, err := c.opener.Open(path)
	if err != nil {
		return models.AbsolutePos{}, fmt.Errorf("geom: open %s: %w", path, err)
	}
	defer doc.Close()

	if err := checkPage(doc, pos.Page); err != nil {
		return models.AbsolutePos{}, err
	}
	abs, err := doc.ToAbsolute(pos)
	if err != nil {
		return models.AbsolutePos{}, fmt.Errorf("geom: transform: %w", err)
	}
	return abs, nil
}

func selectionToAbsolute(doc Document, pos models.DocumentPos) (models.AbsolutePos, error) {
	if err := checkPage(doc, pos.Page); err != nil {
		return models.AbsolutePos{}, err
	}
	width, err := doc.PageWidth(pos.Page)
	if err != nil {
		return models.AbsolutePos{}, fmt.Errorf("geom: page %d width: %w", pos.Page, err)
	}
	centred := models.DocumentPos{Page: pos.Page, OffsetX: pos.OffsetX - width/2, OffsetY: pos.OffsetY}
	abs, err := doc.ToAbsolute(centred)
	if err != nil {
		return models.AbsolutePos{}, fmt.Errorf("geom: transform: %w", err)
	}
	return abs, nil
}

func checkPage(doc Document, page int) error {
	if page < 0 || page >= doc.NumPages() {
		return fmt.Errorf("geom: page %d out of range [0,%d)", page, doc.NumPages())
	}
	return nil
}

// Center returns the midpoint of a selection.
func Center(begin, end models.AbsolutePos) models.AbsolutePos {
	return models.AbsolutePos{X: (begin.X + end.X) / 2, Y: (begin.Y + end.Y) / 2}
}

// ParsePosition parses the viewer's "page x y" placeholder expansion. Commas
// are accepted as separators and the page may be written as a float. Pages
// are zero-based.
func ParsePosition(raw string) (models.DocumentPos, bool) {
	tokens := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(tokens) < 3 {
		return models.DocumentPos{}, false
	}
	page, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return models.DocumentPos{}, false
	}
	x, err := strconv.ParseFloat(tokens[1], 64)
	if err != nil {
		return models.DocumentPos{}, false
	}
	y, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return models.DocumentPos{}, false
	}
	return models.DocumentPos{Page: int(page), OffsetX: x, OffsetY: y}, true
}
