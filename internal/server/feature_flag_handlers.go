package server

import (
	"agora/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

type featureFlagsResponse struct {
	Flags []featureflags.State `json:"flags"`
}

// GetFeatureFlags lists every flag with its configured rule and whether it
// is on for the caller. Anonymous callers fall outside percentage rollouts.
// @Summary Feature flags
// @Tags meta
// @Produce json
// @Success 200 {object} featureFlagsResponse
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(featureFlagsResponse{Flags: s.featureFlags.States(currentUserID(c))})
}
