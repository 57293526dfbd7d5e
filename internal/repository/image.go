package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImageRepository stores metadata for uploaded images, one row per content
// hash.
type ImageRepository interface {
	// Save inserts image unless its hash is already stored, in which case
	// image is overwritten with the stored row and created is false.
	Save(ctx context.Context, image *models.Image) (created bool, err error)
	FindByHash(ctx context.Context, hash string) (*models.Image, error)
}

type imageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Save(ctx context.Context, image *models.Image) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
		Create(image)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	stored, err := r.FindByHash(ctx, image.Hash)
	if err != nil {
		return false, err
	}
	*image = *stored
	return false, nil
}

func (r *imageRepository) FindByHash(ctx context.Context, hash string) (*models.Image, error) {
	var image models.Image
	if err := r.db.WithContext(ctx).Take(&image, "hash = ?", hash).Error; err != nil {
		return nil, wrapRead(err, "Image", hash)
	}
	return &image, nil
}
