package askservice

import (
	"context"
	"log/slog"

	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/saga"
	"github.com/starford/marginalia/internal/store"
)

// HighlightedSessionRequest describes a question about a selection.
type HighlightedSessionRequest struct {
	FilePath       string
	DocumentHash   string
	Selection      string
	Question       string
	Begin, End     *models.DocumentPos
	ContextSnippet string
	Metadata       map[string]string
}

// Created is the outcome of CreateHighlightedSession. Saga holds the
// compensations of every step so the caller can undo the whole creation if
// the exchange fails later.
type Created struct {
	Session     *models.Session
	HighlightID *int64
	Saga        *saga.Saga
}

// CreateHighlightedSession records a highlight for the selection, a session
// attached to it and the user's question, as one saga. If a step fails, the
// steps already done are undone and the error is returned.
//
// The highlight step is skipped when the selection has no coordinates or
// they cannot be converted; the session is then created unanchored.
func (s *Service) CreateHighlightedSession(ctx context.Context, req HighlightedSessionRequest) (*Created, error) {
	var (
		highlightID *int64
		session     *models.Session
	)

	sg := saga.New(s.logger)
	err := sg.Run(ctx,
		saga.Step{
			Name: "highlight",
			Do: func(ctx context.Context) error {
				id, ok, err := s.createHighlight(ctx, req)
				if err != nil || !ok {
					return err
				}
				highlightID = &id
				s.reload(ctx)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				if highlightID == nil {
					return nil
				}
				if err := s.store.DeleteHighlight(ctx, *highlightID); err != nil {
					return err
				}
				s.reload(ctx)
				return nil
			},
		},
		saga.Step{
			Name: "session",
			Do: func(ctx context.Context) error {
				var err error
				session, err = s.store.CreateSession(ctx, store.NewSession{
					HighlightID:    highlightID,
					DocumentHash:   req.DocumentHash,
					SelectionText:  req.Selection,
					Question:       req.Question,
					ContextSnippet: req.ContextSnippet,
					Metadata:       req.Metadata,
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.store.DeleteSession(ctx, session.ID)
			},
		},
		saga.Step{
			Name: "question",
			Do: func(ctx context.Context) error {
				if req.Question == "" {
					return nil
				}
				_, err := s.store.AppendMessage(ctx, session.ID, models.RoleUser, req.Question)
				return err
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return &Created{Session: session, HighlightID: highlightID, Saga: sg}, nil
}

// createHighlight returns ok=false when the selection cannot be placed.
func (s *Service) createHighlight(ctx context.Context, req HighlightedSessionRequest) (int64, bool, error) {
	if req.Begin == nil || req.End == nil {
		s.logger.Info("askservice: missing coordinates, highlight skipped")
		return 0, false, nil
	}
	begin, end, err := s.converter.SelectionToAbsolute(req.FilePath, *req.Begin, *req.End)
	if err != nil {
		s.logger.Warn("askservice: coordinate conversion failed", slog.String("error", err.Error()))
		return 0, false, nil
	}
	id, err := s.store.FindOrCreateHighlight(ctx, req.DocumentHash, req.Selection, s.opts.HighlightType, begin, end)
	if err != nil {
		return 0, false, err
	}
	s.logger.Info("askservice: highlight ready", slog.Int64("id", id))
	return id, true, nil
}
