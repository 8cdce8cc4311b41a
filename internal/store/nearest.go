package store

import (
	"context"
	"log/slog"
	"math"

	"github.com/starford/marginalia/internal/models"
)

// DefaultNearTolerance is the slack applied around highlights when resolving a click.
const DefaultNearTolerance = 48.0

// NearestOptions filters and tunes FindNearestHighlight.
type NearestOptions struct {
	// Tolerance widens the vertical gate and the horizontal zero-penalty band.
	Tolerance float64
	// Type, when non-empty, keeps only highlights of that type.
	Type string
	// RequireAI keeps only highlights created by this tool.
	RequireAI bool
}

// Score rates how well the point (x, y) matches highlight h. Points outside
// the highlight's vertical span widened by tol never match. Otherwise the
// score is twice the vertical distance to the span (no slack) plus the
// horizontal distance to the nearer edge, which is zero within tol of the
// span. Lower is better.
func Score(h models.Highlight, x, y, tol float64) (float64, bool) {
	minX, maxX, minY, maxY := h.Bounds()

	if y < minY-tol || y > maxY+tol {
		return 0, false
	}

	var horizontal float64
	if x < minX-tol || x > maxX+tol {
		horizontal = math.Min(math.Abs(x-minX), math.Abs(x-maxX))
	}

	var vertical float64
	if y < minY || y > maxY {
		vertical = math.Min(math.Abs(y-minY), math.Abs(y-maxY))
	}

	return vertical*2 + horizontal, true
}

// FindNearestHighlight returns the best-scoring highlight of the document for
// the given absolute point, or nil when no candidate passes the vertical gate.
// Ties keep the first candidate in store order.
func (db *DB) FindNearestHighlight(ctx context.Context, docHash string, point models.AbsolutePos, opts NearestOptions) (*models.Highlight, float64, error) {
	candidates, err := db.ListHighlights(ctx, docHash)
	if err != nil {
		return nil, 0, err
	}

	var (
		best      *models.Highlight
		bestScore = math.Inf(1)
	)
	for i := range candidates {
		h := &candidates[i]
		if opts.Type != "" && h.Type != opts.Type {
			continue
		}
		if opts.RequireAI && !h.IsAI {
			continue
		}
		score, ok := Score(*h, point.X, point.Y, opts.Tolerance)
		if !ok {
			continue
		}
		if score < bestScore {
			best, bestScore = h, score
		}
	}

	if best == nil {
		db.logger.Debug("store: no highlight match",
			slog.String("document", docHash),
			slog.Float64("x", point.X),
			slog.Float64("y", point.Y),
			slog.Float64("tolerance", opts.Tolerance),
			slog.String("type", opts.Type),
			slog.Bool("require_ai", opts.RequireAI))
		return nil, 0, nil
	}

	db.logger.Debug("store: highlight match",
		slog.Int64("id", best.ID),
		slog.String("type", best.Type),
		slog.Bool("is_ai", best.IsAI),
		slog.String("desc", truncate(best.Desc, 80)),
		slog.Float64("score", bestScore))
	return best, bestScore, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
