package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hivefolio/tracker/internal/domain"
)

// Service archives portfolio valuations. The file archive is mandatory;
// the database repository is optional and a write failure there degrades
// to a warning because the files remain the source of truth.
type Service struct {
	archive *Archive
	repo    Repository
}

// NewService creates a snapshot service. repo may be nil.
func NewService(archive *Archive, repo Repository) *Service {
	return &Service{archive: archive, repo: repo}
}

// Store archives the portfolio into every period bucket its timestamp
// belongs to and returns the written file paths.
func (s *Service) Store(ctx context.Context, p domain.Portfolio) ([]string, error) {
	doc := NewDocument(p)

	paths, err := s.archive.Write(doc)
	if err != nil {
		return nil, fmt.Errorf("archiving snapshot: %w", err)
	}

	if s.repo != nil {
		data, err := json.Marshal(doc)
		if err != nil {
			return paths, fmt.Errorf("marshaling snapshot: %w", err)
		}
		for _, period := range PeriodsFor(p.Timestamp) {
			if err := s.repo.Save(ctx, p.Account, period, p.Timestamp, data); err != nil {
				slog.Warn("database snapshot write failed", "account", p.Account, "period", period, "error", err)
			}
		}
	}

	return paths, nil
}
