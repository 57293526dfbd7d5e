package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/storage"
)

// DefaultImageMaxUploadSizeMB applies when IMAGE_MAX_UPLOAD_SIZE_MB is unset.
const DefaultImageMaxUploadSizeMB = 10

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService accepts post images, bounds them to MasterMaxSize and keeps
// a JPEG master plus a WebP rendition in object storage.
type ImageService struct {
	repo     repository.ImageRepository
	store    storage.ObjectStore
	maxBytes int
}

func NewImageService(repo repository.ImageRepository, store storage.ObjectStore, cfg *config.Config) *ImageService {
	mb := DefaultImageMaxUploadSizeMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		mb = cfg.ImageMaxUploadSizeMB
	}
	return &ImageService{repo: repo, store: store, maxBytes: mb << 20}
}

// MaxUploadBytes is the largest upload Upload accepts.
func (s *ImageService) MaxUploadBytes() int64 { return int64(s.maxBytes) }

// Upload stores an image. The same uploader sending the same picture again
// gets the existing record back.
func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (*models.Image, error) {
	if err := requireActor(in.UserID); err != nil {
		return nil, err
	}
	switch {
	case len(in.Content) == 0:
		return nil, models.NewValidationError("No file uploaded")
	case len(in.Content) > s.maxBytes:
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}

	decoded, err := decodeUpload(in.Content, in.ContentType)
	if err != nil {
		var reason uploadError
		if errors.As(err, &reason) {
			return nil, models.NewValidationError(reason.Error())
		}
		return nil, models.NewInternalError(err)
	}

	master := fitWithin(decoded, MasterMaxSize)
	encoded := make([][]byte, len(renditions))
	for i, r := range renditions {
		if encoded[i], err = r.render(master); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	hash := contentHash(in.UserID, encoded[0])
	if existing, err := s.repo.FindByHash(ctx, hash); err == nil {
		return existing, nil
	} else if !models.IsNotFound(err) {
		return nil, err
	}

	var written []string
	for i, r := range renditions {
		key := objectKey(hash, r.format)
		if err := s.store.Put(ctx, key, r.mimeType, encoded[i]); err != nil {
			s.remove(ctx, written...)
			return nil, models.NewInternalError(err)
		}
		written = append(written, key)
	}

	size := master.Bounds().Size()
	record := &models.Image{
		Hash:       hash,
		UploaderID: in.UserID,
		ObjectKey:  written[0],
		MimeType:   renditions[0].mimeType,
		Width:      size.X,
		Height:     size.Y,
		SizeBytes:  int64(len(encoded[0])),
	}
	// A concurrent upload of the same bytes wrote the same keys, so losing
	// the insert race leaves nothing to clean up.
	if _, err := s.repo.Save(ctx, record); err != nil {
		s.remove(ctx, written...)
		return nil, err
	}
	return record, nil
}

// Open returns a stored rendition and its content type. Unknown formats
// fall back to the JPEG master.
func (s *ImageService) Open(ctx context.Context, hash, format string) ([]byte, string, error) {
	if !isContentHash(hash) {
		return nil, "", models.NewValidationError("Invalid image hash")
	}
	img, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		return nil, "", err
	}

	r := renditionFor(format)
	data, err := s.store.Get(ctx, objectKey(img.Hash, r.format))
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		return nil, "", models.NewNotFoundError("Image", hash)
	case err != nil:
		return nil, "", models.NewInternalError(err)
	}
	return data, r.mimeType, nil
}

// ImageURL is the public path serving the image with hash.
func ImageURL(hash string) string {
	return "/api/images/" + hash
}

func (s *ImageService) remove(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := s.store.Remove(ctx, k); err != nil {
			middleware.Logger.WarnContext(ctx, "image cleanup failed",
				slog.String("key", k), slog.String("error", err.Error()))
		}
	}
}
