package server

import (
	"errors"

	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// issueTokens signs an access/refresh pair for user.
func (s *Server) issueTokens(user *models.User) (*AuthResponse, error) {
	access, err := s.auth.Issue(user.ID, user.Username, middleware.AccessToken)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := s.auth.Issue(user.ID, user.Username, middleware.RefreshToken)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResponse{User: toUserResponse(user), Access: access, Refresh: refresh}, nil
}

// Register handles POST /api/register
// @Summary Register
// @Description Create an account and return a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,first_name=string,last_name=string} true "Registration"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	resp, err := s.issueTokens(user)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login handles POST /api/login
// @Summary Login
// @Description Exchange a username (or email) and password for a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	login := req.Username
	if login == "" {
		login = req.Email
	}
	if login == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username and password are required"))
	}

	user, err := s.userService.Authenticate(c.UserContext(), login, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}

	resp, err := s.issueTokens(user)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(resp)
}

// RefreshToken handles POST /api/token/refresh
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh=string} true "Refresh token"
// @Success 200 {object} object{access=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /token/refresh [post]
func (s *Server) RefreshToken(c *fiber.Ctx) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Refresh == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError("refresh", "This field is required."))
	}

	claims, err := s.auth.Verify(c.UserContext(), req.Refresh, middleware.RefreshToken)
	if err != nil {
		msg := "Token is invalid or expired"
		if errors.Is(err, middleware.ErrTokenRevoked) {
			msg = "Token has been revoked"
		}
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
	}

	// The account may have been removed since the refresh token was issued.
	user, err := s.userService.GetUserByID(c.UserContext(), claims.UserID)
	if err != nil {
		if models.IsNotFound(err) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token is invalid or expired"))
		}
		return respondServiceError(c, err)
	}

	access, err := s.auth.Issue(user.ID, user.Username, middleware.AccessToken)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"access": access})
}

// Logout handles POST /api/logout. The access token is revoked, and so is the
// refresh token when one is supplied.
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} object{detail=string}
// @Router /logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if claims, ok := c.Locals("claims").(*middleware.Claims); ok {
		if err := s.auth.Revoke(ctx, claims); err != nil {
			return respondServiceError(c, models.NewInternalError(err))
		}
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if len(c.Body()) > 0 && c.BodyParser(&req) == nil && req.Refresh != "" {
		if claims, err := s.auth.Parse(req.Refresh, middleware.RefreshToken); err == nil && claims.UserID == currentUserID(c) {
			if err := s.auth.Revoke(ctx, claims); err != nil {
				return respondServiceError(c, models.NewInternalError(err))
			}
		}
	}

	return c.JSON(fiber.Map{"detail": "Successfully logged out."})
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a WebSocket ticket
// @Description One-shot ticket for authenticating the /api/ws upgrade
// @Tags realtime
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if !s.featureFlags.Enabled(featureflags.RealtimeStream, userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Realtime stream is not enabled"))
	}

	ticket, err := s.auth.IssueTicket(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Realtime stream unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(middleware.WSTicketTTL.Seconds()),
	})
}
