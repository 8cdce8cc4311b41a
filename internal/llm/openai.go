package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when the configuration names none.
const DefaultModel = "gpt-4o-mini"

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY not set; add it to .env or environment")

// OpenAIProvider implements Provider on the OpenAI chat completions API or
// any compatible endpoint.
type OpenAIProvider struct {
	client *openai.Client
	config Config
	logger *slog.Logger
}

// NewOpenAIProvider creates a provider. It fails without an API key.
func NewOpenAIProvider(config Config, logger *slog.Logger) (*OpenAIProvider, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}, nil
}

// StreamChat implements Provider.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:     p.config.Model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens: p.config.MaxTokens,
		Stream:    true,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	p.logger.Debug("llm: request",
		slog.String("model", req.Model),
		slog.Int("messages", len(req.Messages)))

	out := make(chan StreamResponse)
	go func() {
		defer close(out)

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				out <- StreamResponse{Cancelled: true}
				return
			}
			out <- StreamResponse{Error: fmt.Errorf("llm: create stream: %w", err)}
			return
		}
		defer stream.Close()

		var buf strings.Builder
		for {
			resp, err := stream.Recv()
			if ctx.Err() != nil {
				out <- StreamResponse{Text: buf.String(), Cancelled: true}
				return
			}
			if errors.Is(err, io.EOF) {
				out <- StreamResponse{Text: buf.String(), Done: true}
				return
			}
			if err != nil {
				out <- StreamResponse{Text: buf.String(), Error: fmt.Errorf("llm: stream: %w", err)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			piece := resp.Choices[0].Delta.Content
			if piece == "" {
				continue
			}
			buf.WriteString(piece)
			out <- StreamResponse{Text: buf.String()}
		}
	}()
	return out, nil
}

var _ Provider = (*OpenAIProvider)(nil)
