package repository

import (
	"errors"
	"fmt"

	"stemlab/model"

	"gorm.io/gorm"
)

// TrackRepository defines the interface for track catalog operations.
type TrackRepository interface {
	CreateTrackWithStems(track *model.Track) (int64, error)
	GetAllTracks() ([]*model.Track, error)
	GetTrackByID(id int64) (*model.Track, error)
	GetTrackByName(name string) (*model.Track, error)
	TrackExists(name string) (bool, error)
	DeleteTrack(id int64) error
}

// gormTrackRepository implements TrackRepository on GORM.
type gormTrackRepository struct {
	db *gorm.DB
}

// NewTrackRepository creates a new track repository.
func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// CreateTrackWithStems inserts a track and its stems in one transaction.
// Either all rows are committed or none. A name collision yields
// ErrAlreadyExists and leaves the catalog untouched.
func (r *gormTrackRepository) CreateTrackWithStems(track *model.Track) (int64, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Track{}).Where("name = ?", track.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check track name %q: %w", track.Name, err)
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		if err := tx.Create(track).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("failed to create track %q: %w", track.Name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return track.ID, nil
}

// GetAllTracks returns every track, most recently created first.
func (r *gormTrackRepository) GetAllTracks() ([]*model.Track, error) {
	tracks := make([]*model.Track, 0)
	if err := r.db.Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

// GetTrackByID returns a track with its stems, or ErrNotFound.
func (r *gormTrackRepository) GetTrackByID(id int64) (*model.Track, error) {
	track := &model.Track{}
	err := r.db.Preload("Stems").First(track, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get track %d: %w", id, err)
	}
	return track, nil
}

// GetTrackByName returns a track with its stems by unique name, or ErrNotFound.
func (r *gormTrackRepository) GetTrackByName(name string) (*model.Track, error) {
	track := &model.Track{}
	err := r.db.Preload("Stems").Where("name = ?", name).First(track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get track %q: %w", name, err)
	}
	return track, nil
}

// TrackExists reports whether a track with the given name is registered.
func (r *gormTrackRepository) TrackExists(name string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Track{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check track name %q: %w", name, err)
	}
	return count > 0, nil
}

// DeleteTrack removes a track and its stem rows. Samples and loops that
// reference the track by name are deliberately left alone. Returns
// ErrNotFound when no such track exists.
func (r *gormTrackRepository) DeleteTrack(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&model.Stem{}).Error; err != nil {
			return fmt.Errorf("failed to delete stems of track %d: %w", id, err)
		}
		res := tx.Delete(&model.Track{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete track %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
