package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"TuneScope/model"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a track does not exist for the given owner.
// A record owned by someone else is indistinguishable from a missing one.
var ErrNotFound = errors.New("track not found")

// SearchQuery is the portion of a filter specification the store can push
// down to SQL: the BPM range rides the (owner_id, bpm, track_key) compound
// index, the substring predicates become LIKE scans. Set-membership filters
// over mood tags and instrument names are refined in the query engine.
type SearchQuery struct {
	MinBPM   *float64
	MaxBPM   *float64
	Key      string // case-insensitive substring
	Filename string // case-insensitive substring
}

// TrackRepository defines the track data operations. Every operation except
// Create is scoped by owner.
type TrackRepository interface {
	Create(ctx context.Context, rec *model.TrackRecord) error
	GetByID(ctx context.Context, ownerID int64, id string) (*model.TrackRecord, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.TrackRecord, error)
	Search(ctx context.Context, ownerID int64, q SearchQuery) ([]*model.TrackRecord, error)
	Delete(ctx context.Context, ownerID int64, id string) error
}

// gormTrackRepository implements TrackRepository on GORM/MySQL.
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a GORM-backed track repository.
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// Create inserts a new track record. Records are immutable once written.
func (r *gormTrackRepository) Create(ctx context.Context, rec *model.TrackRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create track %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID retrieves one owned track record.
func (r *gormTrackRepository) GetByID(ctx context.Context, ownerID int64, id string) (*model.TrackRecord, error) {
	var rec model.TrackRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get track %s: %w", id, err)
	}
	return &rec, nil
}

// ListByOwner retrieves all of an owner's track records, newest first.
func (r *gormTrackRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*model.TrackRecord, error) {
	var recs []*model.TrackRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("analyzed_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks for owner %d: %w", ownerID, err)
	}
	return recs, nil
}

// Search retrieves the owner's records matching the pushdown query, newest
// first. An inverted BPM range naturally yields no rows.
func (r *gormTrackRepository) Search(ctx context.Context, ownerID int64, q SearchQuery) ([]*model.TrackRecord, error) {
	tx := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)

	if q.MinBPM != nil {
		tx = tx.Where("bpm >= ?", *q.MinBPM)
	}
	if q.MaxBPM != nil {
		tx = tx.Where("bpm <= ?", *q.MaxBPM)
	}
	if q.Key != "" {
		tx = tx.Where("track_key LIKE ?", likePattern(q.Key))
	}
	if q.Filename != "" {
		tx = tx.Where("filename LIKE ?", likePattern(q.Filename))
	}

	var recs []*model.TrackRecord
	if err := tx.Order("analyzed_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to search tracks for owner %d: %w", ownerID, err)
	}
	return recs, nil
}

// Delete removes exactly one owned record (hard delete). ErrNotFound covers
// both a missing record and one owned by someone else.
func (r *gormTrackRepository) Delete(ctx context.Context, ownerID int64, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&model.TrackRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete track %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// likePattern wraps a substring for LIKE matching, escaping LIKE wildcards.
// The default utf8mb4 collation makes the comparison case-insensitive.
func likePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return "%" + s + "%"
}
