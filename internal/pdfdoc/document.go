// Package pdfdoc reads the page geometry, metadata and text of PDF files.
package pdfdoc

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/starford/marginalia/internal/geom"
	"github.com/starford/marginalia/internal/models"
)

// Document is an open PDF with its page boxes resolved. Pages are zero-based.
type Document struct {
	f       *os.File
	r       *pdf.Reader
	widths  []float64
	heights []float64
	// tops[i] is the absolute y of page i's top edge: pages are stacked
	// vertically with no gap.
	tops []float64
}

// openPDF is pdf.Open; tests wrap it to observe the file handle.
var openPDF = pdf.Open

// Open opens the PDF at path. The file is closed again on every failure,
// including a panic from the parser on a malformed page tree.
func Open(path string) (doc *Document, err error) {
	var f *os.File
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfdoc: open %s: %v", path, r)
		}
		if err != nil && f != nil {
			f.Close()
		}
	}()

	f, r, err := openPDF(path)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: open %s: %w", path, err)
	}

	n := r.NumPage()
	d := &Document{
		f:       f,
		r:       r,
		widths:  make([]float64, n),
		heights: make([]float64, n),
		tops:    make([]float64, n),
	}
	var top float64
	for i := 0; i < n; i++ {
		w, h, err := pageSize(r.Page(i + 1))
		if err != nil {
			return nil, fmt.Errorf("pdfdoc: page %d: %w", i, err)
		}
		d.widths[i], d.heights[i], d.tops[i] = w, h, top
		top += h
	}
	return d, nil
}

// pageSize returns the displayed size of a page, honouring an inherited
// MediaBox and quarter-turn rotation.
func pageSize(p pdf.Page) (float64, float64, error) {
	box := inherited(p.V, "MediaBox")
	if box.Len() < 4 {
		return 0, 0, fmt.Errorf("missing MediaBox")
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	if rot := inherited(p.V, "Rotate").Int64(); rot%180 != 0 {
		w, h = h, w
	}
	return w, h, nil
}

func inherited(v pdf.Value, key string) pdf.Value {
	for !v.IsNull() {
		if k := v.Key(key); !k.IsNull() {
			return k
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

// NumPages implements geom.Document.
func (d *Document) NumPages() int { return len(d.widths) }

// PageWidth implements geom.Document.
func (d *Document) PageWidth(page int) (float64, error) {
	if page < 0 || page >= len(d.widths) {
		return 0, fmt.Errorf("pdfdoc: page %d out of range", page)
	}
	return d.widths[page], nil
}

// PageHeight returns the height of a page.
func (d *Document) PageHeight(page int) (float64, error) {
	if page < 0 || page >= len(d.heights) {
		return 0, fmt.Errorf("pdfdoc: page %d out of range", page)
	}
	return d.heights[page], nil
}

// ToAbsolute implements geom.Document. The x offset is kept as is (relative
// to the page centre); y is shifted by the heights of all preceding pages.
func (d *Document) ToAbsolute(pos models.DocumentPos) (models.AbsolutePos, error) {
	if pos.Page < 0 || pos.Page >= len(d.tops) {
		return models.AbsolutePos{}, fmt.Errorf("pdfdoc: page %d out of range", pos.Page)
	}
	return models.AbsolutePos{X: pos.OffsetX, Y: d.tops[pos.Page] + pos.OffsetY}, nil
}

// Title returns the Info dictionary title, if any.
func (d *Document) Title() string {
	return strings.TrimSpace(d.r.Trailer().Key("Info").Key("Title").Text())
}

// PageText extracts the plain text of a page.
func (d *Document) PageText(page int) (text string, err error) {
	if page < 0 || page >= d.NumPages() {
		return "", fmt.Errorf("pdfdoc: page %d out of range", page)
	}
	// The parser panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfdoc: page %d text: %v", page, r)
		}
	}()
	return d.r.Page(page + 1).GetPlainText(nil)
}

// pageTextIn returns the text runs of a page whose origin lies inside the
// rectangle, given in top-left-origin page coordinates.
func (d *Document) pageTextIn(page int, left, top, right, bottom float64) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfdoc: page %d content: %v", page, r)
		}
	}()
	height := d.heights[page]
	var b strings.Builder
	for _, t := range d.r.Page(page + 1).Content().Text {
		y := height - t.Y
		if t.X < left || t.X > right || y < top || y > bottom {
			continue
		}
		b.WriteString(t.S)
	}
	return b.String(), nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.f.Close()
}

// Opener opens PDFs for the coordinate converter.
type Opener struct{}

// Open implements geom.Opener.
func (Opener) Open(path string) (geom.Document, error) {
	return Open(path)
}

var _ geom.Opener = Opener{}
