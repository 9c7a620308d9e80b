package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/luvia-backend/internal/domain"
)

// ListServices returns the whole catalog ordered by category then title.
func ListServices(ctx context.Context, db *gorm.DB) ([]domain.Service, error) {
	var out []domain.Service
	err := db.WithContext(ctx).
		Order("category_id asc").
		Order("title asc").
		Find(&out).Error
	return out, err
}

// GetService fetches one catalog entry, or ErrNotFound.
func GetService(ctx context.Context, db *gorm.DB, id string) (*domain.Service, error) {
	var s domain.Service
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateService overwrites the editable columns of s.ID. It returns
// ErrNotFound when no such service exists.
func UpdateService(ctx context.Context, db *gorm.DB, s *domain.Service) error {
	s.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Service{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"category_id": s.CategoryID,
			"title":       s.Title,
			"description": s.Description,
			"image":       s.Image,
			"content":     s.Content,
			"updated_at":  s.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SeedServices inserts items only when the services table is empty and
// returns how many rows were written.
func SeedServices(ctx context.Context, db *gorm.DB, items []domain.Service) (int, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Service{}).Count(&n).Error; err != nil {
		return 0, err
	}
	if n > 0 || len(items) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for i := range items {
		items[i].UpdatedAt = now
	}
	if err := db.WithContext(ctx).CreateInBatches(items, 100).Error; err != nil {
		return 0, err
	}
	return len(items), nil
}

// ListSettings returns every setting ordered by key.
func ListSettings(ctx context.Context, db *gorm.DB) ([]domain.Setting, error) {
	var out []domain.Setting
	err := db.WithContext(ctx).Order("key asc").Find(&out).Error
	return out, err
}

// UpsertSetting inserts or replaces the value stored under s.Key.
func UpsertSetting(ctx context.Context, db *gorm.DB, s *domain.Setting) error {
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(s).Error
}
