package askservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/llm"
	"github.com/starford/marginalia/internal/models"
)

// Viewer status messages.
const (
	StatusNoSelection = "AI: highlight text first"
	StatusStreaming   = "AI: streaming…"
	StatusReady       = "AI reply ready"
	StatusNoResponse  = "AI: no response"
	StatusCancelled   = "AI request cancelled"
	StatusHistory     = "AI history opened"
	StatusNoHistory   = "AI history: no saved conversations yet"
)

// Sink receives the reply as it streams. Update is called with the full text
// received so far, always from the goroutine that called Ask.
type Sink interface {
	Update(text string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string)

// Update implements Sink.
func (f SinkFunc) Update(text string) { f(text) }

// Outcome classifies how an Ask call ended.
type Outcome string

const (
	OutcomeNoSelection Outcome = "no_selection"
	OutcomeHistory     Outcome = "history"
	OutcomeCompleted   Outcome = "completed"
	OutcomeEmpty       Outcome = "empty"
	OutcomeFailed      Outcome = "failed"
	OutcomeCancelled   Outcome = "cancelled"
)

// AskRequest is a selection in a document with an optional question. Begin
// and End are the selection's page positions, nil when unknown.
type AskRequest struct {
	FilePath  string
	Selection string
	Question  string
	Begin     *models.DocumentPos
	End       *models.DocumentPos
}

// AskResult reports what Ask did.
type AskResult struct {
	Outcome     Outcome
	Status      string
	Session     *models.Session
	HighlightID *int64
	Reply       string
	// History is set when the request carried no question.
	History *HistoryView
}

// Ask handles a selection event. Without a question it opens the history of
// the conversation nearest to the selection. With one, it records the
// selection, streams the model's reply into sink and saves it. A failed or
// cancelled reply removes the session and highlight again.
func (s *Service) Ask(ctx context.Context, req AskRequest, sink Sink) (*AskResult, error) {
	if sink == nil {
		sink = SinkFunc(func(string) {})
	}
	s.logger.Info("askservice: ask",
		slog.Int("selected_chars", len(req.Selection)),
		slog.Int("question_chars", len(req.Question)),
		slog.String("file", req.FilePath))

	if strings.TrimSpace(req.Selection) == "" {
		s.status(ctx, StatusNoSelection)
		return &AskResult{Outcome: OutcomeNoSelection, Status: StatusNoSelection}, nil
	}

	docHash, err := s.store.DocumentHash(ctx, req.FilePath)
	if err != nil {
		return s.fail(ctx, nil, err)
	}

	snippet, meta := s.gather(req)

	if req.Question == "" {
		view, err := s.selectionHistory(ctx, req, docHash, snippet, meta)
		if err != nil {
			return s.fail(ctx, nil, err)
		}
		s.status(ctx, view.Status)
		return &AskResult{Outcome: OutcomeHistory, Status: view.Status, History: view}, nil
	}

	if s.provider == nil {
		return s.fail(ctx, nil, llm.ErrMissingAPIKey)
	}
	messages := llm.BuildMessages(llm.PromptInput{
		SystemPrompt:   s.opts.SystemPrompt,
		DocumentPath:   req.FilePath,
		Selection:      req.Selection,
		Question:       req.Question,
		ContextSnippet: snippet,
		Metadata:       meta,
	})

	created, err := s.CreateHighlightedSession(ctx, HighlightedSessionRequest{
		FilePath:       req.FilePath,
		DocumentHash:   docHash,
		Selection:      req.Selection,
		Question:       req.Question,
		Begin:          req.Begin,
		End:            req.End,
		ContextSnippet: snippet,
		Metadata:       meta,
	})
	if err != nil {
		return s.fail(ctx, nil, err)
	}

	s.status(ctx, StatusStreaming)
	reply, err := s.stream(ctx, messages, sink)
	switch {
	case errors.Is(err, apperr.ErrCancelled):
		s.logger.Info("askservice: stream cancelled", slog.Int64("session", created.Session.ID))
		created.Saga.Compensate(context.WithoutCancel(ctx))
		s.status(ctx, StatusCancelled)
		return &AskResult{Outcome: OutcomeCancelled, Status: StatusCancelled, Reply: reply}, err
	case err != nil:
		created.Saga.Compensate(context.WithoutCancel(ctx))
		return s.fail(ctx, nil, err)
	}

	result := &AskResult{
		Outcome:     OutcomeCompleted,
		Status:      StatusReady,
		Session:     created.Session,
		HighlightID: created.HighlightID,
		Reply:       reply,
	}
	if reply == "" {
		result.Outcome, result.Status = OutcomeEmpty, StatusNoResponse
		s.status(ctx, StatusNoResponse)
		return result, nil
	}

	if _, err := s.store.AppendMessage(ctx, created.Session.ID, models.RoleAssistant, reply); err != nil {
		return s.fail(ctx, result, err)
	}
	if err := s.store.UpdatePreview(ctx, created.Session.ID, reply); err != nil {
		return s.fail(ctx, result, err)
	}
	if sess, err := s.store.GetSession(ctx, created.Session.ID); err == nil {
		result.Session = sess
	}
	s.logger.Info("askservice: reply saved",
		slog.Int64("session", created.Session.ID),
		slog.Int("chars", len(reply)))
	s.status(ctx, StatusReady)
	return result, nil
}

// stream consumes the provider's events on the calling goroutine and returns
// the final text.
func (s *Service) stream(ctx context.Context, messages []llm.Message, sink Sink) (string, error) {
	events, err := s.provider.StreamChat(ctx, messages)
	if err != nil {
		return "", err
	}
	var text string
	for ev := range events {
		switch {
		case ev.Error != nil:
			return ev.Text, ev.Error
		case ev.Cancelled:
			return ev.Text, apperr.ErrCancelled
		case ev.Done:
			return ev.Text, nil
		}
		text = ev.Text
		sink.Update(text)
		s.logger.Debug("askservice: stream", slog.Int("chars", len(text)))
	}
	if ctx.Err() != nil {
		return text, apperr.ErrCancelled
	}
	return text, fmt.Errorf("askservice: stream ended without completion")
}

func (s *Service) gather(req AskRequest) (string, map[string]string) {
	if s.inspector == nil {
		return "", map[string]string{}
	}
	snippet, meta, err := s.inspector.Gather(req.FilePath, req.Begin, req.End, req.Selection)
	if err != nil {
		s.logger.Warn("askservice: gather context failed", slog.String("error", err.Error()))
	}
	if meta == nil {
		meta = map[string]string{}
	}
	return snippet, meta
}

func (s *Service) fail(ctx context.Context, result *AskResult, err error) (*AskResult, error) {
	if result == nil {
		result = &AskResult{}
	}
	result.Outcome = OutcomeFailed
	result.Status = statusError(err)
	s.logger.Error("askservice: ask failed", slog.String("error", err.Error()))
	s.status(ctx, result.Status)
	return result, err
}
