package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination reads ?limit and ?offset. A non-positive limit means
// defaultLimit; larger limits are capped.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	return Pagination{
		Limit:  min(limit, maxPaginationLimit),
		Offset: max(c.QueryInt("offset", 0), 0),
	}
}

// parseID reads a positive route parameter. On failure it has already
// written a 400 naming the parameter ("Invalid comment ID") and returns
// errResponseWritten; handlers then return nil.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseOptionalUintQuery reads a positive integer query parameter. An absent
// parameter yields 0.
func (s *Server) parseOptionalUintQuery(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError(name, "Invalid "+humanizeParam(name)))
		return 0, errResponseWritten
	}
	return uint(v), nil
}

// parseOptionalBoolQuery reads a boolean query parameter. An absent
// parameter yields false.
func (s *Server) parseOptionalBoolQuery(c *fiber.Ctx, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError(name, name+" must be true or false"))
		return false, errResponseWritten
	}
	return v, nil
}

// humanizeParam turns "id", "commentId" and "community_id" into "ID",
// "comment ID" and "community ID". Other names pass through.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if base, ok := strings.CutSuffix(param, "_id"); ok {
		return strings.ReplaceAll(base, "_", " ") + " ID"
	}
	base, ok := strings.CutSuffix(param, "Id")
	if !ok {
		return param
	}
	var b strings.Builder
	for i, r := range base {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String() + " ID"
}

// currentUserID returns the authenticated caller, or 0 for anonymous requests.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// errorStatus maps AppError codes to HTTP statuses. Conflicts surface as
// plain validation failures; unknown codes are 500s.
var errorStatus = map[string]int{
	models.CodeNotFound:     fiber.StatusNotFound,
	models.CodeValidation:   fiber.StatusBadRequest,
	models.CodeConflict:     fiber.StatusBadRequest,
	models.CodeUnauthorized: fiber.StatusUnauthorized,
	models.CodeForbidden:    fiber.StatusForbidden,
}

func mapServiceError(err error) int {
	if status, ok := errorStatus[models.ErrorCode(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// respondServiceError writes err with its mapped status. Server-side failures
// are logged with the request context; their cause never reaches the client.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// parseBody decodes the request body into dst, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}
