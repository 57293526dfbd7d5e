package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveOnce mounts handler on a throwaway app and returns the status and the
// decoded JSON body of a GET to target.
func serveOnce(t *testing.T, route, target string, handler fiber.Handler) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get(route, handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func TestHumanizeParam(t *testing.T) {
	for param, want := range map[string]string{
		"id":                "ID",
		"postId":            "post ID",
		"parentCommentId":   "parent comment ID",
		"community_id":      "community ID",
		"suggested_user_id": "suggested user ID",
		"slug":              "slug",
	} {
		assert.Equal(t, want, humanizeParam(param), param)
	}
}

func TestParsePagination(t *testing.T) {
	handler := func(c *fiber.Ctx) error {
		p := parsePagination(c, 20)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	}
	tests := []struct {
		query         string
		limit, offset float64
	}{
		{"", 20, 0},
		{"?limit=10&offset=30", 10, 30},
		{"?limit=0", 20, 0},
		{"?limit=5000&offset=-3", maxPaginationLimit, 0},
		{"?limit=abc", 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			status, body := serveOnce(t, "/posts", "/posts"+tt.query, handler)
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.limit, body["limit"])
			assert.Equal(t, tt.offset, body["offset"])
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		param, value string
		status       int
		errMsg       string
	}{
		{"id", "42", http.StatusOK, ""},
		{"id", "0", http.StatusBadRequest, "Invalid ID"},
		{"id", "abc", http.StatusBadRequest, "Invalid ID"},
		{"postId", "-4", http.StatusBadRequest, "Invalid post ID"},
		{"commentId", "x", http.StatusBadRequest, "Invalid comment ID"},
	}
	s := &Server{}
	for _, tt := range tests {
		t.Run(tt.param+"="+tt.value, func(t *testing.T) {
			status, body := serveOnce(t, "/things/:"+tt.param, "/things/"+tt.value, func(c *fiber.Ctx) error {
				id, err := s.parseID(c, tt.param)
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})
			assert.Equal(t, tt.status, status)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, body["error"])
			} else {
				assert.Equal(t, float64(42), body["id"])
			}
		})
	}
}

func TestParseOptionalUintQuery(t *testing.T) {
	s := &Server{}
	handler := func(c *fiber.Ctx) error {
		v, err := s.parseOptionalUintQuery(c, "community_id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"value": v})
	}
	for query, want := range map[string]int{
		"":                  http.StatusOK,
		"?community_id=7":   http.StatusOK,
		"?community_id=0":   http.StatusBadRequest,
		"?community_id=-1":  http.StatusBadRequest,
		"?community_id=x":   http.StatusBadRequest,
		"?community_id=%20": http.StatusOK,
	} {
		status, _ := serveOnce(t, "/posts", "/posts"+query, handler)
		assert.Equal(t, want, status, query)
	}
}

func TestParseOptionalBoolQuery(t *testing.T) {
	s := &Server{}
	handler := func(c *fiber.Ctx) error {
		v, err := s.parseOptionalBoolQuery(c, "include_all")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"value": v})
	}
	for query, want := range map[string]struct {
		status int
		value  any
	}{
		"":                  {http.StatusOK, false},
		"?include_all=true": {http.StatusOK, true},
		"?include_all=0":    {http.StatusOK, false},
		"?include_all=yes":  {http.StatusBadRequest, nil},
		"?include_all=2":    {http.StatusBadRequest, nil},
	} {
		status, body := serveOnce(t, "/comments", "/comments"+query, handler)
		assert.Equal(t, want.status, status, query)
		if want.value != nil {
			assert.Equal(t, want.value, body["value"], query)
		}
	}
}

func TestMapServiceError(t *testing.T) {
	for err, want := range map[error]int{
		models.NewNotFoundError("Post", 1):          http.StatusNotFound,
		models.NewValidationError("bad"):            http.StatusBadRequest,
		models.NewConflictError("name", "taken"):    http.StatusBadRequest,
		models.NewUnauthorizedError("who"):          http.StatusUnauthorized,
		models.NewForbiddenError("no"):              http.StatusForbidden,
		models.NewInternalError(errors.New("boom")): http.StatusInternalServerError,
		errors.New("plain"):                         http.StatusInternalServerError,
	} {
		assert.Equal(t, want, mapServiceError(err), err.Error())
	}
}

func TestRespondServiceError_HidesInternalCause(t *testing.T) {
	status, body := serveOnce(t, "/fail", "/fail", func(c *fiber.Ctx) error {
		return respondServiceError(c, models.NewInternalError(errors.New("dial tcp: secret-host")))
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, body["error"], "secret-host")
}

func TestParseBody_RejectsMalformedJSON(t *testing.T) {
	app := fiber.New()
	app.Post("/posts", func(c *fiber.Ctx) error {
		var in struct{ Title string }
		if err := parseBody(c, &in); err != nil {
			return nil
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(`{"title":`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
