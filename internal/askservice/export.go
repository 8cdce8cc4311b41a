package askservice

import (
	"context"
	"log/slog"

	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/storage"
	"github.com/starford/marginalia/internal/transcript"
)

// ExportReport counts what Export did.
type ExportReport struct {
	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Export writes a Markdown transcript for every session of the document.
// Files whose content is already current are left alone, and transcripts of
// sessions that no longer exist are removed.
func (s *Service) Export(ctx context.Context, docHash string, dst storage.Provider) (*ExportReport, error) {
	sessions, err := s.ListSessions(ctx, docHash)
	if err != nil {
		return nil, err
	}

	existing, err := dst.List(docHash)
	if err != nil {
		return nil, err
	}
	current := make(map[string]string, len(existing))
	for _, f := range existing {
		current[f.Path] = f.Checksum
	}

	report := &ExportReport{}
	keep := make(map[string]struct{}, len(sessions))
	for _, sess := range sessions {
		msgs, err := s.store.Messages(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		data, err := transcript.Render(sess, msgs)
		if err != nil {
			return nil, err
		}
		p := transcript.Path(sess)
		keep[p] = struct{}{}

		if cs, ok := current[p]; ok && cs == checksum.Sum(data) {
			report.Unchanged++
			continue
		}
		if err := dst.Write(p, data); err != nil {
			return nil, err
		}
		report.Written++
	}

	for p := range current {
		if _, ok := keep[p]; ok {
			continue
		}
		// Only remove files this exporter produced.
		data, err := dst.Read(p)
		if err != nil {
			continue
		}
		tr, err := transcript.Parse(data)
		if err != nil || tr.Frontmatter == nil || tr.Frontmatter.SessionID == 0 {
			continue
		}
		if err := dst.Delete(p); err != nil {
			s.logger.Warn("askservice: remove stale transcript failed",
				slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		report.Removed++
	}

	s.logger.Info("askservice: export done",
		slog.String("document", docHash),
		slog.Int("written", report.Written),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("removed", report.Removed))
	return report, nil
}
