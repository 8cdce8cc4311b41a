// Package transcript renders saved conversations as Markdown files with YAML
// frontmatter and reads that frontmatter back.
package transcript

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/marginalia/internal/models"
)

// Frontmatter is the YAML header of a transcript.
type Frontmatter struct {
	SessionID   int64  `yaml:"session_id"`
	Document    string `yaml:"document"`
	HighlightID *int64 `yaml:"highlight_id,omitempty"`
	Title       string `yaml:"title,omitempty"`
	FileName    string `yaml:"file_name,omitempty"`
	Question    string `yaml:"question,omitempty"`
	CreatedAt   string `yaml:"created_at"`
	UpdatedAt   string `yaml:"updated_at"`
}

// Transcript is a parsed transcript file.
type Transcript struct {
	// Frontmatter is nil when the file has no valid header.
	Frontmatter *Frontmatter
	Body        string
}

// Path returns the export location of a session, relative to the export root.
func Path(s models.Session) string {
	return path.Join(s.DocumentHash, fmt.Sprintf("session-%d.md", s.ID))
}

// Render writes a session and its messages as Markdown.
func Render(s models.Session, msgs []models.Message) ([]byte, error) {
	fm := Frontmatter{
		SessionID:   s.ID,
		Document:    s.DocumentHash,
		HighlightID: s.HighlightID,
		Title:       s.Metadata["title"],
		FileName:    s.Metadata["file_name"],
		Question:    s.Question,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("transcript: encode frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")

	title := s.Title()
	if title == "" {
		title = fmt.Sprintf("Session %d", s.ID)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if sel := strings.TrimSpace(s.SelectionText); sel != "" {
		for _, line := range strings.Split(sel, "\n") {
			b.WriteString(strings.TrimRight("> "+line, " "))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if snippet := strings.TrimSpace(s.ContextSnippet); snippet != "" {
		fmt.Fprintf(&b, "## Context\n\n%s\n\n", snippet)
	}

	for _, m := range msgs {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", roleHeading(m.Role), strings.TrimSpace(m.Content))
	}
	if len(msgs) == 0 && s.AnswerPreview != "" {
		fmt.Fprintf(&b, "## Assistant\n\n%s\n\n", strings.TrimSpace(s.AnswerPreview))
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

func roleHeading(role string) string {
	switch role {
	case models.RoleUser:
		return "Question"
	case models.RoleAssistant:
		return "Answer"
	default:
		return role
	}
}

// Parse splits a transcript into frontmatter and body. Content without a
// valid frontmatter block is returned entirely as body.
func Parse(data []byte) (*Transcript, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return &Transcript{Body: string(data)}, nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return &Transcript{Body: string(data)}, nil
	}

	yamlBlock := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return &Transcript{Body: string(data)}, nil
	}
	return &Transcript{Frontmatter: &fm, Body: body}, nil
}
