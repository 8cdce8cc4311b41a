package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/askservice"
	"github.com/starford/marginalia/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *askservice.Service
	notify Notifier
}

// NewHandler creates a new Handler.
func NewHandler(svc *askservice.Service, notify Notifier) *Handler {
	return &Handler{svc: svc, notify: notify}
}

func sessionID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ListSessions handles GET /documents/{hash}/sessions.
//
//	@Summary		List a document's sessions, most recently active first
//	@Tags			sessions
//	@Produce		json
//	@Param			hash	path		string	true	"Document hash"
//	@Success		200		{object}	SessionListResponse
//	@Security		BearerAuth
//	@Router			/documents/{hash}/sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	sessions, err := h.svc.ListSessions(r.Context(), hash)
	if err != nil {
		internalError(w, "list sessions", err, slog.String("document", hash))
		return
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: sessions, Total: len(sessions)})
}

// GetSession handles GET /sessions/{id}.
//
//	@Summary		Get a session with its messages
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		int	true	"Session ID"
//	@Success		200	{object}	Conversation
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	conv, err := h.svc.Conversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			internalError(w, "get session", err, slog.Int64("id", id))
		}
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// DeleteSession handles DELETE /sessions/{id}.
//
//	@Summary		Delete a session and its messages
//	@Tags			sessions
//	@Param			id	path	int	true	"Session ID"
//	@Success		204	"Session deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.svc.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			internalError(w, "delete session", err, slog.Int64("id", id))
		}
		return
	}
	if h.notify != nil {
		h.notify.SessionDeleted(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Nearest handles GET /documents/{hash}/highlights/nearest.
//
//	@Summary		Find the AI highlight nearest to an absolute point
//	@Tags			highlights
//	@Produce		json
//	@Param			hash		path		string	true	"Document hash"
//	@Param			x			query		number	true	"Absolute x"
//	@Param			y			query		number	true	"Absolute y"
//	@Param			tolerance	query		number	false	"Search margin"
//	@Success		200			{object}	NearestResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{hash}/highlights/nearest [get]
func (h *Handler) Nearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, okX := finite(q.Get("x"))
	y, okY := finite(q.Get("y"))
	if !okX || !okY {
		writeError(w, http.StatusBadRequest, "query parameters 'x' and 'y' are required finite numbers")
		return
	}
	var tol float64
	if raw := q.Get("tolerance"); raw != "" {
		var ok bool
		if tol, ok = finite(raw); !ok {
			writeError(w, http.StatusBadRequest, "query parameter 'tolerance' must be a finite number")
			return
		}
	}

	hash := chi.URLParam(r, "hash")
	hl, sess, err := h.svc.Lookup(r.Context(), hash, models.AbsolutePos{X: x, Y: y}, tol)
	if err != nil {
		internalError(w, "nearest lookup", err, slog.String("document", hash))
		return
	}
	writeJSON(w, http.StatusOK, NearestResponse{Highlight: hl, Session: sess})
}

// finite parses a query value as a float, rejecting NaN and infinities.
func finite(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
