package store

import (
	"context"

	"github.com/starford/marginalia/internal/models"
)

// HighlightResolver maps selections and clicks to highlight records.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type HighlightResolver interface {
	DocumentHash(ctx context.Context, path string) (string, error)
	FindOrCreateHighlight(ctx context.Context, docHash, desc, typ string, begin, end models.AbsolutePos) (int64, error)
	FindNearestHighlight(ctx context.Context, docHash string, point models.AbsolutePos, opts NearestOptions) (*models.Highlight, float64, error)
	DeleteHighlight(ctx context.Context, id int64) error
}

// Ledger records AI sessions and their message turns.
type Ledger interface {
	CreateSession(ctx context.Context, s NewSession) (*models.Session, error)
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	ListSessions(ctx context.Context, docHash string) ([]models.Session, error)
	SessionByHighlight(ctx context.Context, highlightID int64) (*models.Session, error)
	UpdatePreview(ctx context.Context, sessionID int64, preview string) error
	DeleteSession(ctx context.Context, id int64) error
	AppendMessage(ctx context.Context, sessionID int64, role, content string) (*models.Message, error)
	Messages(ctx context.Context, sessionID int64) ([]models.Message, error)
}

// Annotations is the full correlation store.
type Annotations interface {
	HighlightResolver
	Ledger
	Close() error
}

// Verify *DB satisfies Annotations at compile time.
var _ Annotations = (*DB)(nil)
