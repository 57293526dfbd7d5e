package server

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type likeBody struct {
	Detail     string `json:"detail"`
	Liked      *bool  `json:"liked"`
	LikesCount int64  `json:"likes_count"`
	LikeCount  int64  `json:"like_count"`
	ShareCount int64  `json:"share_count"`
}

func TestPostLikes(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	author := testutil.CreateUser(t, db, "author")
	fan := testutil.CreateUser(t, db, "fan")
	community := testutil.CreateCommunity(t, db, author.ID, "C")
	post := testutil.CreatePost(t, db, author.ID, community.ID, "likeable")
	base := fmt.Sprintf("/api/posts/%d", post.ID)
	fanToken := accessToken(t, s, fan)

	resp := doRequest(t, app, http.MethodPost, base+"/like", fanToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON[likeBody](t, resp)
	assert.Equal(t, "Post liked successfully.", body.Detail)
	assert.Equal(t, int64(1), body.LikesCount)

	// Liking again is a no-op.
	resp = doRequest(t, app, http.MethodPost, base+"/like", fanToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decodeJSON[likeBody](t, resp).LikesCount)

	resp = doRequest(t, app, http.MethodPost, base+"/like", accessToken(t, s, author), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), decodeJSON[likeBody](t, resp).LikesCount)

	resp = doRequest(t, app, http.MethodGet, base, fanToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	detail := decodeJSON[PostResponse](t, resp)
	assert.Equal(t, int64(2), detail.LikeCount)
	assert.True(t, detail.IsLikedByUser)

	resp = doRequest(t, app, http.MethodGet, base, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, decodeJSON[PostResponse](t, resp).IsLikedByUser)

	resp = doRequest(t, app, http.MethodPost, base+"/unlike", fanToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body = decodeJSON[likeBody](t, resp)
	assert.Equal(t, "Post unliked successfully.", body.Detail)
	assert.Equal(t, int64(1), body.LikesCount)

	// Unliking twice never drives the counter below the edge count.
	resp = doRequest(t, app, http.MethodPost, base+"/unlike", fanToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decodeJSON[likeBody](t, resp).LikesCount)

	var edges int64
	require.NoError(t, db.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)
}

func TestToggleLikePost(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	user := testutil.CreateUser(t, db, "toggler")
	community := testutil.CreateCommunity(t, db, user.ID, "C")
	post := testutil.CreatePost(t, db, user.ID, community.ID, "p")
	path := fmt.Sprintf("/api/posts/%d/toggle-like", post.ID)
	token := accessToken(t, s, user)

	resp := doRequest(t, app, http.MethodPost, path, token, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	body := decodeJSON[likeBody](t, resp)
	require.NotNil(t, body.Liked)
	assert.True(t, *body.Liked)
	assert.Equal(t, int64(1), body.LikesCount)

	resp = doRequest(t, app, http.MethodPost, path, token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body = decodeJSON[likeBody](t, resp)
	assert.False(t, *body.Liked)
	assert.Zero(t, body.LikesCount)
}

func TestLikePost_Errors(t *testing.T) {
	s, db := newTestServer(t, nil)
	user := testutil.CreateUser(t, db, "u")

	resp := doRequest(t, s.App(), http.MethodPost, "/api/posts/404/like", accessToken(t, s, user), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, s.App(), http.MethodPost, "/api/posts/1/like", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSharePost_CountsEveryShare(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	user := testutil.CreateUser(t, db, "sharer")
	community := testutil.CreateCommunity(t, db, user.ID, "C")
	post := testutil.CreatePost(t, db, user.ID, community.ID, "p")
	path := fmt.Sprintf("/api/posts/%d/share", post.ID)

	resp := doRequest(t, app, http.MethodPost, path, accessToken(t, s, user), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON[likeBody](t, resp)
	assert.Equal(t, "Post shared successfully.", body.Detail)
	assert.Equal(t, int64(1), body.ShareCount)

	// Anonymous shares count too.
	resp = doRequest(t, app, http.MethodPost, path, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), decodeJSON[likeBody](t, resp).ShareCount)
}

func TestConcurrentLikes_KeepCounterConsistent(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	author := testutil.CreateUser(t, db, "author")
	community := testutil.CreateCommunity(t, db, author.ID, "C")
	post := testutil.CreatePost(t, db, author.ID, community.ID, "hot")

	const n = 8
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = accessToken(t, s, testutil.CreateUser(t, db, fmt.Sprintf("liker%d", i)))
	}

	var wg sync.WaitGroup
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			// Each user likes twice; only one edge may survive.
			for j := 0; j < 2; j++ {
				req := fmt.Sprintf("/api/posts/%d/like", post.ID)
				_ = doRequest(t, app, http.MethodPost, req, tok, nil)
			}
		}(tok)
	}
	wg.Wait()

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, int64(n), stored.LikesCount)
}

func TestCommentLikes(t *testing.T) {
	s, db := newTestServer(t, nil)
	app := s.App()
	author := testutil.CreateUser(t, db, "author")
	fan := testutil.CreateUser(t, db, "fan")
	community := testutil.CreateCommunity(t, db, author.ID, "C")
	post := testutil.CreatePost(t, db, author.ID, community.ID, "p")
	other := testutil.CreatePost(t, db, author.ID, community.ID, "other")
	comment := testutil.CreateComment(t, db, post.ID, author.ID, nil, "nice")
	base := fmt.Sprintf("/api/posts/%d/comments/%d", post.ID, comment.ID)
	fanToken := accessToken(t, s, fan)

	resp := doRequest(t, app, http.MethodPost, base+"/like", fanToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON[likeBody](t, resp)
	assert.Equal(t, "Comment liked successfully.", body.Detail)
	assert.Equal(t, int64(1), body.LikeCount)

	resp = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.ID), fanToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	thread := decodeJSON[CommentThreadResponse](t, resp)
	require.Len(t, thread.Comments, 1)
	assert.Equal(t, int64(1), thread.Comments[0].LikeCount)
	assert.True(t, thread.Comments[0].IsLikedByUser)

	resp = doRequest(t, app, http.MethodPost, base+"/unlike", fanToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body = decodeJSON[likeBody](t, resp)
	assert.Equal(t, "Comment unliked successfully.", body.Detail)
	assert.Zero(t, body.LikeCount)

	// The comment must belong to the post in the path.
	resp = doRequest(t, app, http.MethodPost,
		fmt.Sprintf("/api/posts/%d/comments/%d/like", other.ID, comment.ID), fanToken, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
