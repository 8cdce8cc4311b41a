package llm

import "strings"

// DefaultSystemPrompt frames every question about a passage.
const DefaultSystemPrompt = "You assist with reading PDFs. Answer briefly and focus on the selected text."

// PromptInput is everything known about a question.
type PromptInput struct {
	SystemPrompt   string
	DocumentPath   string
	Selection      string
	Question       string
	ContextSnippet string
	// Metadata may carry title, file_name and abstract.
	Metadata map[string]string
}

// BuildMessages lays out the system and user messages for a question.
func BuildMessages(in PromptInput) []Message {
	system := in.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}

	docPath := in.DocumentPath
	if docPath == "" {
		docPath = "unknown"
	}
	lines := []string{"Document path: " + docPath}

	title := in.Metadata["title"]
	if title != "" {
		lines = append(lines, "Document title: "+title)
	}
	if name := in.Metadata["file_name"]; name != "" && name != title {
		lines = append(lines, "File name: "+name)
	}
	if abstract := in.Metadata["abstract"]; abstract != "" {
		lines = append(lines, "Document abstract:\n"+abstract)
	}
	if snippet := strings.TrimSpace(in.ContextSnippet); snippet != "" {
		lines = append(lines, "Context snippet:\n"+snippet)
	}

	lines = append(lines, "", "Selected text:", strings.TrimSpace(in.Selection))
	if q := strings.TrimSpace(in.Question); q != "" {
		lines = append(lines, "", "User question:", q)
	}

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: strings.Join(lines, "\n")},
	}
}
