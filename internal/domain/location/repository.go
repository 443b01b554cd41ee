package location

import "context"

// HistoryRepository defines the persistence contract for the search history list.
type HistoryRepository interface {
	// Load returns the stored entries, most recent first.
	Load(ctx context.Context) ([]SearchHistoryEntry, error)

	// Save replaces the stored list.
	Save(ctx context.Context, entries []SearchHistoryEntry) error

	// Clear removes the stored list.
	Clear(ctx context.Context) error
}
