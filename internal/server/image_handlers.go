package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"agora/internal/featureflags"
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/images
// @Summary Upload post image
// @Description Multipart field "image". JPEG, PNG, GIF or WebP; stored as a JPEG master plus a WebP rendition.
// @Tags images
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image"
// @Success 201 {object} ImageUploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /images [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if !s.featureFlags.Enabled(featureflags.ImageUploads, userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Image uploads are not enabled"))
	}

	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	if limit := s.imageService.MaxUploadBytes(); file.Size > limit {
		return models.RespondWithError(c, fiber.StatusRequestEntityTooLarge,
			models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", limit>>20)))
	}
	content, err := readPart(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	uploaded, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      userID,
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toImageUploadResponse(uploaded))
}

func readPart(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return io.ReadAll(src)
}

// ServeImage handles GET /api/images/:hash. ?format=webp selects the WebP
// rendition. Content is addressed by hash, so a matching If-None-Match is
// answered without touching storage.
// @Summary Fetch image
// @Tags images
// @Produce image/jpeg
// @Produce image/webp
// @Param hash path string true "Image hash"
// @Param format query string false "webp"
// @Success 200 {file} binary
// @Success 304
// @Failure 404 {object} models.ErrorResponse
// @Router /images/{hash} [get]
func (s *Server) ServeImage(c *fiber.Ctx) error {
	hash := strings.TrimSpace(c.Params("hash"))
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))

	etag := fmt.Sprintf(`"%s.%s"`, hash, renditionName(format))
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	data, contentType, err := s.imageService.Open(c.UserContext(), hash, format)
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderETag, etag)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(data)
}

// renditionName names the rendition Open will pick for format.
func renditionName(format string) string {
	if format == service.ImageFormatWebP {
		return service.ImageFormatWebP
	}
	return service.ImageFormatJPEG
}
