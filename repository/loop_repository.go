package repository

import (
	"errors"
	"fmt"

	"stemlab/model"

	"gorm.io/gorm"
)

// LoopRepository defines the interface for loop catalog operations.
type LoopRepository interface {
	CreateLoop(loop *model.Loop) (int64, error)
	GetAllLoops() ([]*model.Loop, error)
	GetLoopByID(id int64) (*model.Loop, error)
	LoopExists(filename string) (bool, error)
	DeleteLoop(id int64) error
}

type gormLoopRepository struct {
	db *gorm.DB
}

// NewLoopRepository creates a new loop repository.
func NewLoopRepository(db *gorm.DB) LoopRepository {
	return &gormLoopRepository{db: db}
}

// CreateLoop inserts a loop; filename collisions yield ErrAlreadyExists.
func (r *gormLoopRepository) CreateLoop(loop *model.Loop) (int64, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Loop{}).Where("filename = ?", loop.Filename).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check loop filename %q: %w", loop.Filename, err)
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		if err := tx.Create(loop).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("failed to create loop %q: %w", loop.Filename, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return loop.ID, nil
}

// GetAllLoops returns every loop, most recently created first.
func (r *gormLoopRepository) GetAllLoops() ([]*model.Loop, error) {
	loops := make([]*model.Loop, 0)
	if err := r.db.Order("created_at DESC").Find(&loops).Error; err != nil {
		return nil, fmt.Errorf("failed to list loops: %w", err)
	}
	return loops, nil
}

// GetLoopByID returns a loop or ErrNotFound.
func (r *gormLoopRepository) GetLoopByID(id int64) (*model.Loop, error) {
	loop := &model.Loop{}
	err := r.db.First(loop, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loop %d: %w", id, err)
	}
	return loop, nil
}

// LoopExists reports whether a loop with the given filename is registered.
func (r *gormLoopRepository) LoopExists(filename string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Loop{}).Where("filename = ?", filename).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check loop filename %q: %w", filename, err)
	}
	return count > 0, nil
}

// DeleteLoop removes a loop row. Returns ErrNotFound when absent.
func (r *gormLoopRepository) DeleteLoop(id int64) error {
	res := r.db.Delete(&model.Loop{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete loop %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
