package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} UserResponse
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toUserResponse(user))
}

// UpdateMyProfile handles PATCH /api/users/me
// @Summary Update current user
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{first_name=string,last_name=string,email=string} true "Changes"
// @Success 200 {object} UserResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [patch]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Email     *string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:    currentUserID(c),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toUserResponse(user))
}

// GetUsers handles GET /api/users
// @Summary List users
// @Tags users
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} PageResponse[UserResponse]
// @Router /users [get]
func (s *Server) GetUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	users, total, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(PageResponse[UserResponse]{Count: total, Results: toUserResponses(users)})
}

// GetUser handles GET /api/users/:id
// @Summary User detail
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toUserResponse(user))
}

// GetUserSuggestions handles GET /api/users/suggestions: a random sample of
// other users. Anonymous callers get a sample of everyone.
// @Summary Suggested users
// @Tags users
// @Produce json
// @Success 200 {array} UserResponse
// @Router /users/suggestions [get]
func (s *Server) GetUserSuggestions(c *fiber.Ctx) error {
	users, err := s.userService.SuggestUsers(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toUserResponses(users))
}

// GetMySuggestions handles GET /api/users/me/suggestions
// @Summary Stored suggestions
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {array} SuggestionResponse
// @Router /users/me/suggestions [get]
func (s *Server) GetMySuggestions(c *fiber.Ctx) error {
	suggestions, err := s.suggestionService.ListSuggestions(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toSuggestionResponses(suggestions))
}

// CreateSuggestion handles POST /api/users/me/suggestions
// @Summary Store a suggestion
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{suggested_user_id=int,reason=string} true "Suggestion"
// @Success 201 {object} SuggestionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/me/suggestions [post]
func (s *Server) CreateSuggestion(c *fiber.Ctx) error {
	var req struct {
		SuggestedUserID uint   `json:"suggested_user_id"`
		Reason          string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	suggestion, err := s.suggestionService.CreateSuggestion(c.UserContext(), service.CreateSuggestionInput{
		UserID:          currentUserID(c),
		SuggestedUserID: req.SuggestedUserID,
		Reason:          req.Reason,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSuggestionResponse(suggestion))
}
