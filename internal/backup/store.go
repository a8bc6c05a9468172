package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrMissingDatabase indicates the store was built without a database handle.
	ErrMissingDatabase = errors.New("backup: database is required")
)

// Store reads and writes snapshot records.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a migrated database handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, ErrMissingDatabase
	}
	return &Store{db: db}, nil
}

// Save appends a snapshot record stamped with createdAt.
func (s *Store) Save(ctx context.Context, payload Payload, reason string, createdAt time.Time) (Snapshot, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: encode payload: %w", err)
	}
	record := Snapshot{
		CreatedAtSeconds: createdAt.UTC().Unix(),
		Reason:           reason,
		PayloadJSON:      string(encoded),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Snapshot{}, fmt.Errorf("backup: insert snapshot: %w", err)
	}
	return record, nil
}

// DeleteOlderThan removes records created strictly before cutoff and returns how many were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at_s < ?", cutoff.UTC().Unix()).
		Delete(&Snapshot{})
	if result.Error != nil {
		return 0, fmt.Errorf("backup: prune snapshots: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Latest returns the most recent payload. The boolean is false when no snapshot exists.
func (s *Store) Latest(ctx context.Context) (Payload, bool, error) {
	var record Snapshot
	err := s.db.WithContext(ctx).Order("created_at_s DESC").Order("id DESC").Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payload{}, false, nil
	}
	if err != nil {
		return Payload{}, false, fmt.Errorf("backup: load latest snapshot: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal([]byte(record.PayloadJSON), &payload); err != nil {
		return Payload{}, false, fmt.Errorf("backup: decode snapshot %d: %w", record.ID, err)
	}
	return payload, true, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Snapshot{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("backup: count snapshots: %w", err)
	}
	return count, nil
}
