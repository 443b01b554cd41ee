package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
)

// DefaultHistoryKey is the storage key the history list is kept under.
const DefaultHistoryKey = "location_search_history"

// HistoryEntryModel is the GORM model for the search_history table.
type HistoryEntryModel struct {
	ID          string    `gorm:"primaryKey;size:36"`
	StorageKey  string    `gorm:"primaryKey;size:100;index:idx_history_key_position,priority:1"`
	Position    int       `gorm:"not null;index:idx_history_key_position,priority:2"`
	Text        string    `gorm:"not null;size:300"`
	Address     string    `gorm:"size:500"`
	City        string    `gorm:"size:100"`
	Country     string    `gorm:"size:100"`
	OpaqueKey   string    `gorm:"size:300"`
	Lat         *float64  `gorm:""`
	Lng         *float64  `gorm:""`
	Approximate bool      `gorm:"not null;default:false"`
	SelectedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (HistoryEntryModel) TableName() string {
	return "search_history"
}

// AutoMigrate creates or updates the tables this package owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&HistoryEntryModel{})
}

// GormHistoryRepository is the GORM-based implementation of HistoryRepository.
// Rows belong to one storage key and are ordered by position.
type GormHistoryRepository struct {
	db  *gorm.DB
	key string
}

// NewGormHistoryRepository creates a new GormHistoryRepository for key.
func NewGormHistoryRepository(db *gorm.DB, key string) *GormHistoryRepository {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &GormHistoryRepository{db: db, key: key}
}

// Key returns the storage key the list is kept under.
func (r *GormHistoryRepository) Key() string {
	return r.key
}

// Load returns the stored entries, most recent first, deduplicated and
// capped to the history limit.
func (r *GormHistoryRepository) Load(ctx context.Context) ([]location.SearchHistoryEntry, error) {
	var models []HistoryEntryModel
	if err := r.db.WithContext(ctx).
		Where("storage_key = ?", r.key).
		Order("position ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load search history: %w", err)
	}

	entries := make([]location.SearchHistoryEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, toDomainEntry(m))
	}
	return location.NormalizeHistory(entries), nil
}

// Save replaces the stored list in one transaction.
func (r *GormHistoryRepository) Save(ctx context.Context, entries []location.SearchHistoryEntry) error {
	models := make([]HistoryEntryModel, 0, len(entries))
	for i, e := range entries {
		models = append(models, toEntryModel(r.key, i, e))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("storage_key = ?", r.key).Delete(&HistoryEntryModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save search history: %w", err)
	}
	return nil
}

// Clear removes the stored list.
func (r *GormHistoryRepository) Clear(ctx context.Context) error {
	if err := r.db.WithContext(ctx).
		Where("storage_key = ?", r.key).
		Delete(&HistoryEntryModel{}).Error; err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	return nil
}

func toEntryModel(key string, position int, e location.SearchHistoryEntry) HistoryEntryModel {
	m := HistoryEntryModel{
		ID:          e.ID,
		StorageKey:  key,
		Position:    position,
		Text:        e.Text,
		Address:     e.Address,
		City:        e.City,
		Country:     e.Country,
		OpaqueKey:   e.OpaqueKey,
		Approximate: e.Approximate,
		SelectedAt:  e.SelectedAt,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if e.Coordinates != nil {
		lat, lng := e.Coordinates.Lat, e.Coordinates.Lng
		m.Lat, m.Lng = &lat, &lng
	}
	return m
}

func toDomainEntry(m HistoryEntryModel) location.SearchHistoryEntry {
	e := location.SearchHistoryEntry{
		ID:          m.ID,
		Text:        m.Text,
		Address:     m.Address,
		City:        m.City,
		Country:     m.Country,
		OpaqueKey:   m.OpaqueKey,
		Approximate: m.Approximate,
		SelectedAt:  m.SelectedAt.UTC(),
	}
	if m.Lat != nil && m.Lng != nil {
		e.Coordinates = &location.Coordinates{Lat: *m.Lat, Lng: *m.Lng}
	}
	return e
}
