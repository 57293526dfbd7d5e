package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Newest first unless sort=trending. community_id narrows the listing.
// @Tags posts
// @Produce json
// @Param community_id query int false "Community filter"
// @Param sort query string false "latest or trending"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} PageResponse[PostResponse]
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	communityID, err := s.parseOptionalUintQuery(c, "community_id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	posts, total, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		CommunityID: communityID,
		Sort:        c.Query("sort"),
		Limit:       page.Limit,
		Offset:      page.Offset,
		ViewerID:    currentUserID(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(PageResponse[PostResponse]{Count: total, Results: toPostResponses(posts)})
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description community (or community_id) names the target community
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{title=string,content=string,community=int,image_url=string} true "Post"
// @Success 201 {object} PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Content     string `json:"content"`
		Community   uint   `json:"community"`
		CommunityID uint   `json:"community_id"`
		ImageURL    string `json:"image_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	communityID := req.Community
	if communityID == 0 {
		communityID = req.CommunityID
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:    currentUserID(c),
		CommunityID: communityID,
		Title:       req.Title,
		Content:     req.Content,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toPostResponse(post))
}

// GetPost handles GET /api/posts/:id
// @Summary Post detail
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toPostResponse(post))
}

// UpdatePost handles PUT /api/posts/:id (author only)
// @Summary Update post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{title=string,content=string,image_url=string} true "Changes"
// @Success 200 {object} PostResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Title    *string `json:"title"`
		Content  *string `json:"content"`
		ImageURL *string `json:"image_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:   currentUserID(c),
		PostID:   id,
		Title:    req.Title,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toPostResponse(post))
}

// DeletePost handles DELETE /api/posts/:id (author only)
// @Summary Delete post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFeed handles GET /api/posts/feed: posts from the caller's communities.
// @Summary Personal feed
// @Tags discovery
// @Security BearerAuth
// @Produce json
// @Success 200 {object} PageResponse[PostResponse]
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, total, err := s.discoveryService.Feed(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(PageResponse[PostResponse]{Count: total, Results: toPostResponses(posts)})
}

// GetTrendingPosts handles GET /api/posts/trending
// @Summary Trending posts
// @Description Recent posts ranked by likes
// @Tags discovery
// @Produce json
// @Success 200 {array} PostResponse
// @Router /posts/trending [get]
func (s *Server) GetTrendingPosts(c *fiber.Ctx) error {
	posts, err := s.discoveryService.TrendingPosts(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toPostResponses(posts))
}

// GetTrending handles GET /api/trending
// @Summary Trending communities and posts
// @Tags discovery
// @Produce json
// @Success 200 {object} TrendingResponse
// @Router /trending [get]
func (s *Server) GetTrending(c *fiber.Ctx) error {
	trending, err := s.discoveryService.Trending(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(TrendingResponse{
		Communities: toCommunityResponses(trending.Communities),
		Posts:       toPostResponses(trending.Posts),
	})
}
