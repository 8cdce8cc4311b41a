package askservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/marginalia/internal/geom"
	"github.com/starford/marginalia/internal/models"
)

// History notifications.
const (
	NoticeNoHighlight = "No AI highlight found near that click. Showing document history."
	NoticeNoChat      = "That highlight has no saved chat yet. Showing document history."
)

// HistoryView is what the history window shows: the document's sessions
// with, when one was found, the active conversation.
type HistoryView struct {
	DocumentHash string           `json:"document_hash"`
	Sessions     []models.Session `json:"sessions"`
	Active       *Conversation    `json:"active,omitempty"`
	// Selection is the text to show when no conversation is active.
	Selection      string            `json:"selection,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ContextSnippet string            `json:"context_snippet,omitempty"`
	Notification   string            `json:"notification,omitempty"`
	Status         string            `json:"status"`
}

// HistoryRequest is a click in the viewer. Pos is relative to the page centre.
type HistoryRequest struct {
	FilePath string
	Pos      models.DocumentPos
}

// History finds the AI highlight nearest to a click and opens its latest
// conversation within the document's history.
func (s *Service) History(ctx context.Context, req HistoryRequest) (*HistoryView, error) {
	point, err := s.converter.PointToAbsolute(req.FilePath, req.Pos)
	if err != nil {
		s.status(ctx, fmt.Sprintf("AI history error: %v", err))
		return nil, err
	}
	s.logger.Debug("askservice: history click",
		slog.Int("page", req.Pos.Page),
		slog.Float64("x", point.X),
		slog.Float64("y", point.Y))

	docHash, err := s.store.DocumentHash(ctx, req.FilePath)
	if err != nil {
		s.status(ctx, fmt.Sprintf("AI history error: %v", err))
		return nil, err
	}

	h, sess, err := s.Lookup(ctx, docHash, point, 0)
	if err != nil {
		s.status(ctx, fmt.Sprintf("AI history error: %v", err))
		return nil, err
	}

	view := &HistoryView{DocumentHash: docHash}
	switch {
	case h == nil:
		view.Notification = NoticeNoHighlight
	case sess == nil:
		view.Notification = NoticeNoChat
		view.Selection = h.Desc
	}
	if err := s.fillHistory(ctx, view, sess); err != nil {
		return nil, err
	}

	if view.Notification != "" {
		view.Status = view.Notification
	}
	s.status(ctx, view.Status)
	return view, nil
}

// selectionHistory opens the history for a selection made without a question.
func (s *Service) selectionHistory(ctx context.Context, req AskRequest, docHash, snippet string, meta map[string]string) (*HistoryView, error) {
	view := &HistoryView{
		DocumentHash:   docHash,
		Selection:      req.Selection,
		Metadata:       meta,
		ContextSnippet: snippet,
	}

	var sess *models.Session
	if req.Begin != nil && req.End != nil {
		begin, end, err := s.converter.SelectionToAbsolute(req.FilePath, *req.Begin, *req.End)
		if err != nil {
			s.logger.Warn("askservice: coordinate conversion failed", slog.String("error", err.Error()))
		} else {
			_, sess, err = s.Lookup(ctx, docHash, geom.Center(begin, end), 0)
			if err != nil {
				return nil, err
			}
		}
	}
	if err := s.fillHistory(ctx, view, sess); err != nil {
		return nil, err
	}
	return view, nil
}

// fillHistory loads the session list and the active conversation and sets
// the default status.
func (s *Service) fillHistory(ctx context.Context, view *HistoryView, active *models.Session) error {
	sessions, err := s.ListSessions(ctx, view.DocumentHash)
	if err != nil {
		return err
	}
	view.Sessions = sessions

	if active != nil {
		conv, err := s.Conversation(ctx, active.ID)
		switch {
		case err == nil:
			view.Active = conv
			view.Selection = conv.Session.SelectionText
			view.Metadata = conv.Session.Metadata
			view.ContextSnippet = conv.Session.ContextSnippet
		case isNotFound(err):
			s.logger.Warn("askservice: session vanished", slog.Int64("session", active.ID))
		default:
			return err
		}
	}

	if view.Active != nil || len(view.Sessions) > 0 {
		view.Status = StatusHistory
	} else {
		view.Status = StatusNoHistory
	}
	return nil
}
