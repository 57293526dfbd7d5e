package server

import (
	"github.com/gofiber/fiber/v2"
)

// LikePost handles POST /api/posts/:id/like. Liking an already liked post
// succeeds without changing the count.
// @Summary Like post
// @Tags engagement
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{detail=string,likes_count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	count, err := s.engagementService.LikePost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"detail": "Post liked successfully.", "likes_count": count})
}

// UnlikePost handles POST /api/posts/:id/unlike
// @Summary Unlike post
// @Tags engagement
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{detail=string,likes_count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/unlike [post]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	count, err := s.engagementService.UnlikePost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"detail": "Post unliked successfully.", "likes_count": count})
}

// ToggleLikePost handles POST /api/posts/:id/toggle-like. 201 when the call
// created a like, 200 when it removed one.
// @Summary Toggle post like
// @Tags engagement
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{detail=string,liked=bool,likes_count=int}
// @Success 201 {object} object{detail=string,liked=bool,likes_count=int}
// @Router /posts/{id}/toggle-like [post]
func (s *Server) ToggleLikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	liked, count, err := s.engagementService.ToggleLikePost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	if liked {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"detail": "Post liked successfully.", "liked": true, "likes_count": count,
		})
	}
	return c.JSON(fiber.Map{"detail": "Post unliked successfully.", "liked": false, "likes_count": count})
}

// SharePost handles POST /api/posts/:id/share. Every call counts.
// @Summary Share post
// @Tags engagement
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{detail=string,share_count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/share [post]
func (s *Server) SharePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	count, err := s.engagementService.SharePost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"detail": "Post shared successfully.", "share_count": count})
}

// LikeComment handles POST /api/posts/:id/comments/:commentId/like
// @Summary Like comment
// @Tags engagement
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Success 200 {object} object{detail=string,like_count=int}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId}/like [post]
func (s *Server) LikeComment(c *fiber.Ctx) error {
	postID, commentID, ok := s.commentParams(c)
	if !ok {
		return nil
	}
	count, err := s.engagementService.LikeComment(c.UserContext(), postID, commentID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"detail": "Comment liked successfully.", "like_count": count})
}

// UnlikeComment handles POST /api/posts/:id/comments/:commentId/unlike
func (s *Server) UnlikeComment(c *fiber.Ctx) error {
	postID, commentID, ok := s.commentParams(c)
	if !ok {
		return nil
	}
	count, err := s.engagementService.UnlikeComment(c.UserContext(), postID, commentID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"detail": "Comment unliked successfully.", "like_count": count})
}
