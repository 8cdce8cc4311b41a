// Package llm streams chat completions for a selected passage.
package llm

import "context"

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamResponse is one event of a streaming reply. Text is cumulative: it
// holds everything received so far, not just the latest delta. Exactly one
// terminal event (Done, Cancelled or Error) ends the stream.
type StreamResponse struct {
	Text      string
	Done      bool
	Cancelled bool
	Error     error
}

// Terminal reports whether the event ends the stream.
func (r StreamResponse) Terminal() bool {
	return r.Done || r.Cancelled || r.Error != nil
}

// Provider streams a chat reply. The returned channel is closed after the
// terminal event. Cancelling ctx stops the stream at the next chunk.
type Provider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error)
}

// Config configures a provider.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}
