package api

import (
	"github.com/starford/marginalia/internal/askservice"
	"github.com/starford/marginalia/internal/models"
)

// Conversation is a session with its messages (aliased from the domain layer).
type Conversation = askservice.Conversation

// SessionListResponse wraps a document's sessions.
type SessionListResponse struct {
	Sessions []models.Session `json:"sessions" validate:"required"`
	Total    int              `json:"total" example:"3" validate:"required"`
}

// NearestResponse is the result of a nearest-highlight lookup. Both fields
// are null when nothing lies within tolerance.
type NearestResponse struct {
	Highlight *models.Highlight `json:"highlight"`
	Session   *models.Session   `json:"session"`
}
