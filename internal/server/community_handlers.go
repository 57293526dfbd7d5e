package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCommunities handles GET /api/communities
// @Summary List communities
// @Tags communities
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} PageResponse[CommunityResponse]
// @Router /communities [get]
func (s *Server) GetCommunities(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	communities, total, err := s.communityService.ListCommunities(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(PageResponse[CommunityResponse]{Count: total, Results: toCommunityResponses(communities)})
}

// CreateCommunity handles POST /api/communities
// @Summary Create community
// @Description The caller becomes the owner and first member
// @Tags communities
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{name=string,description=string} true "Community"
// @Success 201 {object} CommunityResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /communities [post]
func (s *Server) CreateCommunity(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	community, err := s.communityService.CreateCommunity(c.UserContext(), service.CreateCommunityInput{
		OwnerID:     currentUserID(c),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toCommunityResponse(community))
}

// GetCommunity handles GET /api/communities/:id
// @Summary Community detail
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Success 200 {object} CommunityResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{id} [get]
func (s *Server) GetCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	community, err := s.communityService.GetCommunity(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toCommunityResponse(community))
}

// UpdateCommunity handles PUT /api/communities/:id (owner only)
func (s *Server) UpdateCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	community, err := s.communityService.UpdateCommunity(c.UserContext(), service.UpdateCommunityInput{
		UserID:      currentUserID(c),
		CommunityID: id,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toCommunityResponse(community))
}

// DeleteCommunity handles DELETE /api/communities/:id (owner only)
func (s *Server) DeleteCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.communityService.DeleteCommunity(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// JoinCommunity handles POST /api/communities/:id/join
// @Summary Join community
// @Tags communities
// @Security BearerAuth
// @Param id path int true "Community ID"
// @Success 200 {object} object{detail=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /communities/{id}/join [post]
func (s *Server) JoinCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.communityService.Join(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"detail": "Successfully joined the community."})
}

// LeaveCommunity handles POST /api/communities/:id/leave
func (s *Server) LeaveCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.communityService.Leave(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"detail": "Successfully left the community."})
}

// GetCommunityMembers handles GET /api/communities/:id/members
func (s *Server) GetCommunityMembers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	members, err := s.communityService.Members(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toMemberResponses(members))
}

// GetCommunityPosts handles GET /api/communities/:id/posts, newest first.
func (s *Server) GetCommunityPosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	posts, total, err := s.postService.ListCommunityPosts(c.UserContext(), id, service.ListPostsInput{
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: currentUserID(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(PageResponse[PostResponse]{Count: total, Results: toPostResponses(posts)})
}

// GetMyCommunities handles GET /api/communities/mine
func (s *Server) GetMyCommunities(c *fiber.Ctx) error {
	communities, err := s.communityService.UserCommunities(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toCommunityResponses(communities))
}

// GetTrendingCommunities handles GET /api/communities/trending
// @Summary Trending communities
// @Description Top communities by member count
// @Tags discovery
// @Produce json
// @Success 200 {array} CommunityResponse
// @Router /communities/trending [get]
func (s *Server) GetTrendingCommunities(c *fiber.Ctx) error {
	communities, err := s.discoveryService.TrendingCommunities(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toCommunityResponses(communities))
}

// SearchCommunities handles GET /api/communities/search?query=...
// @Summary Search communities
// @Description Case-insensitive substring match on name and description
// @Tags discovery
// @Produce json
// @Param query query string true "Search text"
// @Success 200 {array} CommunityResponse
// @Router /communities/search [get]
func (s *Server) SearchCommunities(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		query = c.Query("q")
	}
	communities, err := s.discoveryService.SearchCommunities(c.UserContext(), query)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toCommunityResponses(communities))
}
