package server

import (
	"fmt"
	"net/http"
	"testing"

	"agora/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserProfile(t *testing.T) {
	s, db := newTestServer(t, nil)
	user := testutil.CreateUser(t, db, "profiled")

	resp := doRequest(t, s.App(), http.MethodGet, fmt.Sprintf("/api/users/%d", user.ID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON[UserResponse](t, resp)
	assert.Equal(t, "profiled", body.Username)
	assert.Equal(t, "profiled@example.com", body.Email)

	resp = doRequest(t, s.App(), http.MethodGet, "/api/users/9999", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetMyProfileAndUpdate(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	user := testutil.CreateUser(t, db, "me")
	token := accessToken(t, s, user)

	resp := doRequest(t, app, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, user.ID, decodeJSON[UserResponse](t, resp).ID)

	resp = doRequest(t, app, http.MethodPatch, "/api/users/me", token, fiber.Map{"first_name": "Ada"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	updated := decodeJSON[UserResponse](t, resp)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "me@example.com", updated.Email)

	resp = doRequest(t, app, http.MethodPatch, "/api/users/me", token, fiber.Map{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetUsers_Paginated(t *testing.T) {
	s, db := newTestServer(t, nil)
	for _, name := range []string{"u_one", "u_two", "u_three"} {
		testutil.CreateUser(t, db, name)
	}

	resp := doRequest(t, s.App(), http.MethodGet, "/api/users?limit=2&offset=1", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page := decodeJSON[PageResponse[UserResponse]](t, resp)
	assert.Equal(t, int64(3), page.Count)
	assert.Len(t, page.Results, 2)
}

func TestUserSuggestions(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	me := testutil.CreateUser(t, db, "me")
	friend := testutil.CreateUser(t, db, "friend")
	token := accessToken(t, s, me)

	resp := doRequest(t, app, http.MethodGet, "/api/users/suggestions", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sampled := decodeJSON[[]UserResponse](t, resp)
	for _, u := range sampled {
		assert.NotEqual(t, me.ID, u.ID)
	}

	resp = doRequest(t, app, http.MethodPost, "/api/users/me/suggestions", token, fiber.Map{
		"suggested_user_id": friend.ID, "reason": "same communities",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeJSON[SuggestionResponse](t, resp)
	require.NotNil(t, created.SuggestedUser)
	assert.Equal(t, friend.ID, created.SuggestedUser.ID)

	resp = doRequest(t, app, http.MethodPost, "/api/users/me/suggestions", token, fiber.Map{
		"suggested_user_id": me.ID,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/api/users/me/suggestions", token, fiber.Map{
		"suggested_user_id": 4242,
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/users/me/suggestions", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	stored := decodeJSON[[]SuggestionResponse](t, resp)
	require.Len(t, stored, 1)
	assert.Equal(t, "same communities", stored[0].Reason)
}
