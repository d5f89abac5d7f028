package repository

import (
	"errors"
	"fmt"

	"stemlab/model"

	"gorm.io/gorm"
)

// SampleRepository defines the interface for sample catalog operations.
type SampleRepository interface {
	CreateSample(sample *model.Sample) (int64, error)
	GetAllSamples() ([]*model.Sample, error)
	GetSampleByID(id int64) (*model.Sample, error)
	SampleExists(filename string) (bool, error)
	DeleteSample(id int64) error
}

type gormSampleRepository struct {
	db *gorm.DB
}

// NewSampleRepository creates a new sample repository.
func NewSampleRepository(db *gorm.DB) SampleRepository {
	return &gormSampleRepository{db: db}
}

// CreateSample inserts a sample. The filename is the unique key; a second
// sample with the same (track, stem, range) produces the same filename and is
// rejected with ErrAlreadyExists.
func (r *gormSampleRepository) CreateSample(sample *model.Sample) (int64, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Sample{}).Where("filename = ?", sample.Filename).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check sample filename %q: %w", sample.Filename, err)
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		if err := tx.Create(sample).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("failed to create sample %q: %w", sample.Filename, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sample.ID, nil
}

// GetAllSamples returns every sample, most recently created first.
func (r *gormSampleRepository) GetAllSamples() ([]*model.Sample, error) {
	samples := make([]*model.Sample, 0)
	if err := r.db.Order("created_at DESC").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	return samples, nil
}

// GetSampleByID returns a sample or ErrNotFound.
func (r *gormSampleRepository) GetSampleByID(id int64) (*model.Sample, error) {
	sample := &model.Sample{}
	err := r.db.First(sample, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sample %d: %w", id, err)
	}
	return sample, nil
}

// SampleExists reports whether a sample with the given filename is registered.
func (r *gormSampleRepository) SampleExists(filename string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Sample{}).Where("filename = ?", filename).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check sample filename %q: %w", filename, err)
	}
	return count > 0, nil
}

// DeleteSample removes a sample row. Returns ErrNotFound when absent.
func (r *gormSampleRepository) DeleteSample(id int64) error {
	res := r.db.Delete(&model.Sample{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete sample %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
