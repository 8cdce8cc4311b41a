package geom

import (
	"errors"
	"testing"

	"github.com/starford/marginalia/internal/models"
)

// stubDoc lays pages out vertically, each 100 high, with the given widths.
type stubDoc struct {
	widths []float64
	closed *int
}

func (d stubDoc) NumPages() int { return len(d.widths) }

func (d stubDoc) PageWidth(page int) (float64, error) { return d.widths[page], nil }

func (d stubDoc) ToAbsolute(pos models.DocumentPos) (models.AbsolutePos, error) {
	return models.AbsolutePos{X: pos.OffsetX, Y: float64(pos.Page)*100 + pos.OffsetY}, nil
}

func (d stubDoc) Close() error {
	*d.closed++
	return nil
}

type stubOpener struct {
	doc stubDoc
	err error
}

func (o stubOpener) Open(string) (Document, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

func newStub(widths ...float64) (*Converter, *int) {
	closed := new(int)
	return NewConverter(stubOpener{doc: stubDoc{widths: widths, closed: closed}}), closed
}

func TestToAbsolute_RecentresSelection(t *testing.T) {
	c, closed := newStub(600, 500)
	abs, err := c.ToAbsolute("doc.pdf", models.DocumentPos{Page: 1, OffsetX: 300, OffsetY: 20})
	if err != nil {
		t.Fatalf("ToAbsolute: %v", err)
	}
	if abs.X != 50 || abs.Y != 120 {
		t.Errorf("abs = %+v, want {50 120}", abs)
	}
	if *closed != 1 {
		t.Errorf("document closed %d times, want 1", *closed)
	}
}

func TestSelectionToAbsolute(t *testing.T) {
	c, closed := newStub(600)
	b, e, err := c.SelectionToAbsolute("doc.pdf",
		models.DocumentPos{Page: 0, OffsetX: 100, OffsetY: 10},
		models.DocumentPos{Page: 0, OffsetX: 400, OffsetY: 30})
	if err != nil {
		t.Fatalf("SelectionToAbsolute: %v", err)
	}
	if b.X != -200 || e.X != 100 || b.Y != 10 || e.Y != 30 {
		t.Errorf("begin=%+v end=%+v", b, e)
	}
	if *closed != 1 {
		t.Errorf("document closed %d times, want 1", *closed)
	}
}

func TestPointToAbsolute_NoRecentre(t *testing.T) {
	c, _ := newStub(600)
	abs, err := c.PointToAbsolute("doc.pdf", models.DocumentPos{Page: 0, OffsetX: -20, OffsetY: 5})
	if err != nil {
		t.Fatalf("PointToAbsolute: %v", err)
	}
	if abs.X != -20 || abs.Y != 5 {
		t.Errorf("abs = %+v, want {-20 5}", abs)
	}
}

func TestToAbsolute_PageOutOfRange(t *testing.T) {
	c, closed := newStub(600)
	if _, err := c.ToAbsolute("doc.pdf", models.DocumentPos{Page: 3}); err == nil {
		t.Fatal("expected error for page out of range")
	}
	if *closed != 1 {
		t.Errorf("document closed %d times, want 1", *closed)
	}
}

func TestToAbsolute_OpenError(t *testing.T) {
	boom := errors.New("boom")
	c := NewConverter(stubOpener{err: boom})
	if _, err := c.ToAbsolute("doc.pdf", models.DocumentPos{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestCenter(t *testing.T) {
	got := Center(models.AbsolutePos{X: 100, Y: 200}, models.AbsolutePos{X: 180, Y: 216})
	if got.X != 140 || got.Y != 208 {
		t.Errorf("Center = %+v", got)
	}
}

func TestParsePosition(t *testing.T) {
	cases := []struct {
		raw  string
		want models.DocumentPos
		ok   bool
	}{
		{"3 12.5 40", models.DocumentPos{Page: 3, OffsetX: 12.5, OffsetY: 40}, true},
		{"3.0,-12,40.25", models.DocumentPos{Page: 3, OffsetX: -12, OffsetY: 40.25}, true},
		{" 0 1 2 extra ", models.DocumentPos{Page: 0, OffsetX: 1, OffsetY: 2}, true},
		{"1 2", models.DocumentPos{}, false},
		{"a b c", models.DocumentPos{}, false},
		{"", models.DocumentPos{}, false},
	}
	for _, tc := range cases {
		got, ok := ParsePosition(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParsePosition(%q) = %+v, %v; want %+v, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}
