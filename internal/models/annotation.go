// Package models defines the domain types shared by the annotation store,
// the coordinate converter, and the ask service.
package models

// HighlightTypeAI is the highlight type discriminator used for highlights
// created by this tool.
const HighlightTypeAI = "v"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DocumentPos is a position relative to a page. OffsetX is measured from the
// page's left edge when it comes from a selection, or from the page centre
// when it comes from a mouse position.
type DocumentPos struct {
	Page    int     `json:"page"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// AbsolutePos is a document-space position independent of page layout.
type AbsolutePos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Highlight is a rectangular annotation anchored to absolute coordinates.
type Highlight struct {
	ID           int64   `json:"id"`
	DocumentHash string  `json:"document_hash"`
	Desc         string  `json:"desc"`
	Type         string  `json:"type"`
	BeginX       float64 `json:"begin_x"`
	BeginY       float64 `json:"begin_y"`
	EndX         float64 `json:"end_x"`
	EndY         float64 `json:"end_y"`
	IsAI         bool    `json:"is_ai"`
}

// Bounds returns the normalised rectangle spanned by the highlight.
func (h Highlight) Bounds() (minX, maxX, minY, maxY float64) {
	return min(h.BeginX, h.EndX), max(h.BeginX, h.EndX), min(h.BeginY, h.EndY), max(h.BeginY, h.EndY)
}

// Session is one AI conversation thread tied to zero or one highlight.
// Timestamps are kept in their stored string form (UTC, microsecond ISO
// layout) so ordering in the store and in Go agree.
type Session struct {
	ID             int64             `json:"id"`
	HighlightID    *int64            `json:"highlight_id"`
	DocumentHash   string            `json:"document_path"`
	SelectionText  string            `json:"selection_text"`
	Question       string            `json:"question"`
	AnswerPreview  string            `json:"answer_preview"`
	ContextSnippet string            `json:"context_snippet"`
	Metadata       map[string]string `json:"metadata"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

// Title returns the document title recorded in the session metadata.
func (s Session) Title() string {
	if t := s.Metadata["title"]; t != "" {
		return t
	}
	return s.Metadata["file_name"]
}

// Message is one turn in a session's conversation.
type Message struct {
	ID        int64  `json:"id"`
	SessionID int64  `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}
