package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-location/internal/database"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "history.db")}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestGormHistoryRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewGormHistoryRepository(newTestDB(t), "")
	assert.Equal(t, DefaultHistoryKey, repo.Key())

	empty, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	at := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	entries := []location.SearchHistoryEntry{
		{ID: "a", Text: "Kigali Heights", OpaqueKey: "k1", Coordinates: &location.Coordinates{Lat: -1.95, Lng: 30.09}, SelectedAt: at},
		{ID: "b", Text: "Remera", Approximate: true, SelectedAt: at},
	}
	require.NoError(t, repo.Save(ctx, entries))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)

	// saving again replaces the list
	require.NoError(t, repo.Save(ctx, entries[1:]))
	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Remera", loaded[0].Text)

	require.NoError(t, repo.Clear(ctx))
	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	// clearing twice is fine
	assert.NoError(t, repo.Clear(ctx))
}

func TestGormHistoryRepository_KeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pickup := NewGormHistoryRepository(db, "pickup")
	dropoff := NewGormHistoryRepository(db, "dropoff")

	require.NoError(t, pickup.Save(ctx, []location.SearchHistoryEntry{{ID: "same", Text: "Remera"}}))
	require.NoError(t, dropoff.Save(ctx, []location.SearchHistoryEntry{{ID: "same", Text: "Kanombe"}}))
	require.NoError(t, pickup.Clear(ctx))

	loaded, err := dropoff.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Kanombe", loaded[0].Text)
}

func TestGormHistoryRepository_LoadNormalizesStoredRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewGormHistoryRepository(db, "")

	// rows written outside the service: duplicates and more than the cap
	at := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	var rows []HistoryEntryModel
	for i := 0; i < 14; i++ {
		rows = append(rows, HistoryEntryModel{
			ID:         fmt.Sprintf("row-%d", i),
			StorageKey: DefaultHistoryKey,
			Position:   i,
			Text:       fmt.Sprintf("Stop %d", i%12),
			SelectedAt: at,
		})
	}
	require.NoError(t, db.Create(&rows).Error)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, location.MaxHistoryEntries)

	seen := map[string]bool{}
	for i, e := range loaded {
		assert.Equal(t, fmt.Sprintf("Stop %d", i), e.Text)
		assert.False(t, seen[e.Text], e.Text)
		seen[e.Text] = true
	}
}

func TestGormHistoryRepository_CancelledContext(t *testing.T) {
	repo := NewGormHistoryRepository(newTestDB(t), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Load(ctx)
	assert.Error(t, err)
	assert.Error(t, repo.Save(ctx, []location.SearchHistoryEntry{{ID: "x", Text: "Remera"}}))
}
