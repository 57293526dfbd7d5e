package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// commentParams parses the post and comment route parameters. On failure the
// 400 response is already written.
func (s *Server) commentParams(c *fiber.Ctx) (postID, commentID uint, ok bool) {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return 0, 0, false
	}
	commentID, err = s.parseID(c, "commentId")
	if err != nil {
		return 0, 0, false
	}
	return postID, commentID, true
}

// GetComments handles GET /api/posts/:id/comments
// @Summary Comment thread
// @Description Top-level comments with nested replies, newest first. include_all=true returns every comment flat.
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Param include_all query bool false "Flat listing"
// @Success 200 {object} CommentThreadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	flat, err := s.parseOptionalBoolQuery(c, "include_all")
	if err != nil {
		return nil
	}

	thread, err := s.commentService.Thread(c.UserContext(), postID, currentUserID(c), flat)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(CommentThreadResponse{
		PostID:       thread.PostID,
		PostTitle:    thread.PostTitle,
		CommentCount: thread.CommentCount,
		Comments:     toCommentTree(thread.Comments),
	})
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Add comment
// @Description parent must be a comment on the same post
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string,parent=int} true "Comment"
// @Success 201 {object} CommentResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
		Parent  *uint  `json:"parent"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		AuthorID: currentUserID(c),
		PostID:   postID,
		ParentID: req.Parent,
		Content:  req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toCommentResponse(comment))
}

// GetComment handles GET /api/posts/:id/comments/:commentId
func (s *Server) GetComment(c *fiber.Ctx) error {
	postID, commentID, ok := s.commentParams(c)
	if !ok {
		return nil
	}
	comment, err := s.commentService.GetComment(c.UserContext(), postID, commentID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toCommentResponse(comment))
}

// UpdateComment handles PUT /api/posts/:id/comments/:commentId (author only)
// @Summary Edit comment
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Param request body object{content=string} true "Content"
// @Success 200 {object} CommentResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	postID, commentID, ok := s.commentParams(c)
	if !ok {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		UserID:    currentUserID(c),
		PostID:    postID,
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toCommentResponse(comment))
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId. Replies
// are removed with their parent.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, commentID, ok := s.commentParams(c)
	if !ok {
		return nil
	}
	if err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    currentUserID(c),
		PostID:    postID,
		CommentID: commentID,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
