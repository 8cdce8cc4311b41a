package pdfdoc

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/marginalia/internal/models"
)

// Defaults for context gathering.
const (
	DefaultContextWindow = 500
	DefaultMaxChars      = 1200
	abstractPages        = 3
	clipMargin           = 60
)

var abstractHeading = regexp.MustCompile(`(?i)\babstract\b[:\s]*`)

var abstractTerminators = []string{"\n\n", "\nIntroduction", "\nINTRODUCTION", "\n1 ", "\nI. "}

// Inspector gathers the document details sent along with a question.
type Inspector struct {
	Window   int
	MaxChars int
	Logger   *slog.Logger
}

// Gather opens the PDF and returns a context snippet around the selection
// together with the document metadata. Metadata always carries title and
// file_name when the file can be opened.
func (in Inspector) Gather(path string, begin, end *models.DocumentPos, selection string) (string, map[string]string, error) {
	doc, err := Open(path)
	if err != nil {
		return "", map[string]string{}, err
	}
	defer doc.Close()

	meta := in.metadata(doc, path)
	snippet := in.snippet(doc, begin, end, selection)
	return snippet, meta, nil
}

func (in Inspector) window() int {
	if in.Window > 0 {
		return in.Window
	}
	return DefaultContextWindow
}

func (in Inspector) maxChars() int {
	if in.MaxChars > 0 {
		return in.MaxChars
	}
	return DefaultMaxChars
}

func (in Inspector) logger() *slog.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return slog.Default()
}

func (in Inspector) metadata(doc *Document, path string) map[string]string {
	meta := map[string]string{"file_name": filepath.Base(path)}
	if title := doc.Title(); title != "" {
		meta["title"] = title
	} else {
		meta["title"] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	for i := 0; i < min(abstractPages, doc.NumPages()); i++ {
		text, err := doc.PageText(i)
		if err != nil {
			in.logger().Debug("pdfdoc: page text failed", slog.Int("page", i), slog.String("error", err.Error()))
			continue
		}
		if abstract := ExtractAbstract(text); abstract != "" {
			meta["abstract"] = Shorten(abstract, in.maxChars())
			break
		}
	}
	return meta
}

func (in Inspector) snippet(doc *Document, begin, end *models.DocumentPos, selection string) string {
	if begin == nil || doc.NumPages() == 0 {
		return ""
	}
	page := max(0, min(begin.Page, doc.NumPages()-1))

	pageText, err := doc.PageText(page)
	if err != nil {
		in.logger().Debug("pdfdoc: page text failed", slog.Int("page", page), slog.String("error", err.Error()))
		pageText = ""
	}

	snippet := SnippetAround(pageText, selection, in.window())
	if snippet == "" {
		if end == nil {
			end = begin
		}
		left := min(begin.OffsetX, end.OffsetX)
		right := max(begin.OffsetX, end.OffsetX)
		top := min(begin.OffsetY, end.OffsetY)
		bottom := max(begin.OffsetY, end.OffsetY)
		clipped, err := doc.pageTextIn(page,
			max(0, left-clipMargin), max(0, top-clipMargin), right+clipMargin, bottom+clipMargin)
		if err == nil {
			snippet = strings.TrimSpace(clipped)
		}
	}
	if snippet == "" {
		snippet = strings.TrimSpace(pageText)
	}
	return Shorten(snippet, in.maxChars())
}

// SnippetAround returns the text within window characters on either side of
// the first case-insensitive occurrence of selection, or "" when it does not
// occur.
func SnippetAround(text, selection string, window int) string {
	sel := strings.TrimSpace(selection)
	if sel == "" {
		return ""
	}
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))
	if len(lower) != len(runes) {
		// Case folding changed the length; fall back to exact matching.
		lower = runes
	}
	selRunes := []rune(strings.ToLower(sel))
	idx := indexRunes(lower, selRunes)
	if idx < 0 {
		return ""
	}
	start := max(0, idx-window)
	end := min(len(runes), idx+len(selRunes)+window)
	return strings.TrimSpace(string(runes[start:end]))
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

// ExtractAbstract returns the text following an "Abstract" heading up to the
// first paragraph break or introduction heading, or "" when there is none.
func ExtractAbstract(text string) string {
	loc := abstractHeading.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	end := len(rest)
	for _, term := range abstractTerminators {
		if i := strings.Index(rest, term); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end])
}

// Shorten trims text and cuts it to at most maxChars characters, marking a
// cut with an ellipsis.
func Shorten(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return strings.TrimRight(string(runes[:maxChars-1]), " \t\r\n") + "…"
}
