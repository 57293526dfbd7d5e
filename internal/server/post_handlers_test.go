package server

import (
	"fmt"
	"net/http"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	author := testutil.CreateUser(t, db, "author")
	community := testutil.CreateCommunity(t, db, author.ID, "Gophers")
	token := accessToken(t, s, author)

	resp := doRequest(t, app, http.MethodPost, "/api/posts", token, fiber.Map{
		"title":     "Hello",
		"content":   "First post",
		"community": community.ID,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	post := decodeJSON[PostResponse](t, resp)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, author.ID, post.Author.ID)
	assert.Equal(t, "author", post.Author.Username)
	assert.Equal(t, "Gophers", post.Community.Name)
	assert.Nil(t, post.ImageURL)
	assert.Zero(t, post.LikeCount)
	assert.Zero(t, post.ShareCount)

	t.Run("unknown community", func(t *testing.T) {
		resp := doRequest(t, app, http.MethodPost, "/api/posts", token, fiber.Map{
			"title": "x", "content": "y", "community_id": 9999,
		})
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		body := decodeJSON[models.ErrorResponse](t, resp)
		assert.Contains(t, body.Fields, "community_id")
	})

	t.Run("blank title", func(t *testing.T) {
		resp := doRequest(t, app, http.MethodPost, "/api/posts", token, fiber.Map{
			"title": "   ", "content": "y", "community": community.ID,
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("anonymous", func(t *testing.T) {
		resp := doRequest(t, app, http.MethodPost, "/api/posts", "", fiber.Map{
			"title": "x", "content": "y", "community": community.ID,
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGetPosts_FilterAndPaginate(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	author := testutil.CreateUser(t, db, "author")
	a := testutil.CreateCommunity(t, db, author.ID, "A")
	b := testutil.CreateCommunity(t, db, author.ID, "B")
	for i := 0; i < 3; i++ {
		testutil.CreatePost(t, db, author.ID, a.ID, fmt.Sprintf("a-%d", i))
	}
	testutil.CreatePost(t, db, author.ID, b.ID, "b-0")

	resp := doRequest(t, app, http.MethodGet, "/api/posts?limit=2", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page := decodeJSON[PageResponse[PostResponse]](t, resp)
	assert.Equal(t, int64(4), page.Count)
	assert.Len(t, page.Results, 2)

	resp = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/posts?community_id=%d", a.ID), "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page = decodeJSON[PageResponse[PostResponse]](t, resp)
	assert.Equal(t, int64(3), page.Count)
	for _, p := range page.Results {
		assert.Equal(t, a.ID, p.Community.ID)
	}

	resp = doRequest(t, app, http.MethodGet, "/api/posts?community_id=abc", "", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeJSON[models.ErrorResponse](t, resp)
	assert.Equal(t, "Invalid community ID", body.Fields["community_id"])

	resp = doRequest(t, app, http.MethodGet, "/api/posts?sort=sideways", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetPost_NotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp := doRequest(t, s.App(), http.MethodGet, "/api/posts/42", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, s.App(), http.MethodGet, "/api/posts/zero", "", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeJSON[models.ErrorResponse](t, resp)
	assert.Equal(t, "Invalid ID", body.Error)
}

func TestUpdateAndDeletePost_AuthorOnly(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	author := testutil.CreateUser(t, db, "author")
	other := testutil.CreateUser(t, db, "other")
	community := testutil.CreateCommunity(t, db, author.ID, "C")
	post := testutil.CreatePost(t, db, author.ID, community.ID, "Original")
	path := fmt.Sprintf("/api/posts/%d", post.ID)

	resp := doRequest(t, app, http.MethodPut, path, accessToken(t, s, other), fiber.Map{"title": "Hijacked"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPut, path, accessToken(t, s, author), fiber.Map{"title": "Edited"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	updated := decodeJSON[PostResponse](t, resp)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, "Original content", updated.Content)

	resp = doRequest(t, app, http.MethodDelete, path, accessToken(t, s, other), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodDelete, path, accessToken(t, s, author), nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, path, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestFeedAndTrending(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	owner := testutil.CreateUser(t, db, "owner")
	reader := testutil.CreateUser(t, db, "reader")
	joined := testutil.CreateCommunity(t, db, owner.ID, "Joined")
	other := testutil.CreateCommunity(t, db, owner.ID, "Other")
	testutil.CreatePost(t, db, owner.ID, joined.ID, "in feed")
	testutil.CreatePost(t, db, owner.ID, other.ID, "not in feed")

	readerToken := accessToken(t, s, reader)
	resp := doRequest(t, app, http.MethodPost, fmt.Sprintf("/api/communities/%d/join", joined.ID), readerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/posts/feed", readerToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	feed := decodeJSON[PageResponse[PostResponse]](t, resp)
	require.Len(t, feed.Results, 1)
	assert.Equal(t, "in feed", feed.Results[0].Title)

	resp = doRequest(t, app, http.MethodGet, "/api/trending", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	trending := decodeJSON[TrendingResponse](t, resp)
	require.Len(t, trending.Communities, 2)
	// Joined has two members, Other only its owner.
	assert.Equal(t, "Joined", trending.Communities[0].Name)
	assert.Len(t, trending.Posts, 2)
}
