package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/marginalia/internal/askservice"
)

// Notifier receives deletions made through the API.
type Notifier interface {
	SessionDeleted(id int64)
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// notify may be nil.
func NewRouter(svc *askservice.Service, authEnabled bool, token string, sseHandler http.Handler, notify Notifier) chi.Router {
	h := NewHandler(svc, notify)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/documents/{hash}/sessions", h.ListSessions)
	r.Get("/documents/{hash}/highlights/nearest", h.Nearest)

	r.Get("/sessions/{id}", h.GetSession)
	r.Delete("/sessions/{id}", h.DeleteSession)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
