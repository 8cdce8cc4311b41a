// Package askservice coordinates the annotation store, the document, the
// chat provider and the host viewer for asking about a selection and for
// browsing saved conversations.
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
	"github.com/starford/marginalia/internal/store"
	"github.com/starford/marginalia/internal/viewer"
)

// Converter maps viewer positions to absolute document coordinates.
type Converter interface {
	SelectionToAbsolute(path string, begin, end models.DocumentPos) (models.AbsolutePos, models.AbsolutePos, error)
	PointToAbsolute(path string, pos models.DocumentPos) (models.AbsolutePos, error)
}

// Inspector reads document metadata and the text around a selection.
type Inspector interface {
	Gather(path string, begin, end *models.DocumentPos, selection string) (string, map[string]string, error)
}

// Deps are the collaborators of a Service. Provider may be nil when no chat
// endpoint is configured; asking then fails with llm.ErrMissingAPIKey.
type Deps struct {
	Store     store.Annotations
	Converter Converter
	Inspector Inspector
	Provider  llm.Provider
	Viewer    viewer.Viewer
	Logger    *slog.Logger
}

// Options tune matching and prompting.
type Options struct {
	HighlightType string
	NearTolerance float64
	SystemPrompt  string
}

// DefaultOptions returns the options used by the viewer integration.
func DefaultOptions() Options {
	return Options{
		HighlightType: models.HighlightTypeAI,
		NearTolerance: 40,
		SystemPrompt:  llm.DefaultSystemPrompt,
	}
}

// Service is the ask/history orchestration layer.
type Service struct {
	store     store.Annotations
	converter Converter
	inspector Inspector
	provider  llm.Provider
	viewer    viewer.Viewer
	logger    *slog.Logger
	opts      Options
}

// New creates a Service.
func New(d Deps, opts Options) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Viewer == nil {
		d.Viewer = viewer.Nop{}
	}
	if opts.HighlightType == "" {
		opts.HighlightType = models.HighlightTypeAI
	}
	return &Service{
		store:     d.Store,
		converter: d.Converter,
		inspector: d.Inspector,
		provider:  d.Provider,
		viewer:    d.Viewer,
		logger:    d.Logger,
		opts:      opts,
	}
}

// Conversation is a saved session with its turns.
type Conversation struct {
	Session  models.Session   `json:"session"`
	Messages []models.Message `json:"messages"`
	// Question is the first user turn, or the session question.
	Question string `json:"question"`
	// Answer joins the assistant turns, or falls back to the preview.
	Answer string `json:"answer"`
}

// Conversation loads a session and its messages.
func (s *Service) Conversation(ctx context.Context, id int64) (*Conversation, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Conversation{
		Session:  *sess,
		Messages: nonNilMessages(msgs),
		Question: firstUserMessage(msgs, sess.Question),
		Answer:   joinAssistant(msgs, sess.AnswerPreview),
	}, nil
}

// ListSessions returns the document's sessions, most recently active first.
func (s *Service) ListSessions(ctx context.Context, docHash string) ([]models.Session, error) {
	sessions, err := s.store.ListSessions(ctx, docHash)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return sessions, nil
}

// DeleteSession removes a session and its messages.
func (s *Service) DeleteSession(ctx context.Context, id int64) error {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteSession(ctx, id)
}

// Lookup resolves an absolute point to the nearest AI highlight and its most
// recent session. Either result may be nil. A non-positive tolerance uses the
// configured one.
func (s *Service) Lookup(ctx context.Context, docHash string, point models.AbsolutePos, tolerance float64) (*models.Highlight, *models.Session, error) {
	if tolerance <= 0 {
		tolerance = s.opts.NearTolerance
	}
	h, _, err := s.store.FindNearestHighlight(ctx, docHash, point, store.NearestOptions{
		Tolerance: tolerance,
		Type:      s.opts.HighlightType,
		RequireAI: true,
	})
	if err != nil || h == nil {
		return nil, nil, err
	}
	sess, err := s.store.SessionByHighlight(ctx, h.ID)
	if err != nil {
		return h, nil, err
	}
	return h, sess, nil
}

// status shows msg in the viewer. It runs even after ctx is cancelled so
// that a cancelled request can still report itself.
func (s *Service) status(ctx context.Context, msg string) {
	if err := s.viewer.SetStatus(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Warn("askservice: set status failed", slog.String("error", err.Error()))
	}
}

func (s *Service) reload(ctx context.Context) {
	if err := s.viewer.Reload(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("askservice: reload failed", slog.String("error", err.Error()))
	}
}

func joinAssistant(msgs []models.Message, fallback string) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == models.RoleAssistant && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, "\n\n")
}

func firstUserMessage(msgs []models.Message, fallback string) string {
	for _, m := range msgs {
		if m.Role == models.RoleUser && m.Content != "" {
			return m.Content
		}
	}
	return fallback
}

func nonNilMessages(m []models.Message) []models.Message {
	if m == nil {
		return []models.Message{}
	}
	return m
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

func statusError(err error) string {
	return fmt.Sprintf("AI error: %v", err)
}
