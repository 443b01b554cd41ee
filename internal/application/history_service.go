package application

import (
	"context"
	"sync"

	"go.uber.org/zap"

	locationDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
)

// HistoryService owns the search history list. Every read-modify-write of
// the list runs inside one critical section.
type HistoryService struct {
	mu     sync.Mutex
	repo   locationDomain.HistoryRepository
	logger *zap.Logger
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(repo locationDomain.HistoryRepository, logger *zap.Logger) *HistoryService {
	return &HistoryService{
		repo:   repo,
		logger: logger,
	}
}

// List returns the history entries, most recent first. An unreadable store
// yields an empty history.
func (s *HistoryService) List(ctx context.Context) ([]locationDomain.SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Suggestions returns the history as suggestions sharing the live click contract.
func (s *HistoryService) Suggestions(ctx context.Context) []locationDomain.Suggestion {
	entries, err := s.List(ctx)
	if err != nil {
		return []locationDomain.Suggestion{}
	}
	out := make([]locationDomain.Suggestion, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Suggestion())
	}
	return out
}

// Record prepends a resolved location to the history. Locations without
// coordinates are not recorded.
func (s *HistoryService) Record(ctx context.Context, loc locationDomain.ResolvedLocation) error {
	if !loc.HasCoordinates() {
		return nil
	}
	entry := locationDomain.NewHistoryEntry(loc)
	if locationDomain.NormalizeText(entry.Text) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, locationDomain.PrependHistory(entries, entry))
}

// Clear removes all history entries.
func (s *HistoryService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("search history cleared")
	return nil
}

func (s *HistoryService) load(ctx context.Context) ([]locationDomain.SearchHistoryEntry, error) {
	entries, err := s.repo.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("search history unreadable, starting empty", zap.Error(err))
		return []locationDomain.SearchHistoryEntry{}, nil
	}
	return entries, nil
}
