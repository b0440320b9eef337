package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-support/internal/analytics"
	"github.com/spec-kit/crm-support/internal/service"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

// DashboardHandler exposes the analytics dashboard endpoint.
type DashboardHandler struct {
	queries          *service.QueryService
	defaultTopAgents int
}

// NewDashboardHandler constructs handler. defaultTopAgents caps the agent
// leaderboard when the request does not ask for a size.
func NewDashboardHandler(queries *service.QueryService, defaultTopAgents int) *DashboardHandler {
	return &DashboardHandler{queries: queries, defaultTopAgents: defaultTopAgents}
}

// GetDashboard GET /dashboard.
func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	product := c.Query("product")
	if product == "" {
		return apperrors.NewValidationError("product query parameter required", nil)
	}

	periodStart, err := time.Parse(time.RFC3339, c.Query("period_start"))
	if err != nil {
		return apperrors.NewValidationError("period_start must be RFC3339", nil)
	}
	periodEnd, err := time.Parse(time.RFC3339, c.Query("period_end"))
	if err != nil {
		return apperrors.NewValidationError("period_end must be RFC3339", nil)
	}

	opts := analytics.Options{TopAgents: h.defaultTopAgents}
	if granularity := c.Query("granularity"); granularity != "" {
		opts.Granularity = analytics.Granularity(granularity)
	}
	if topAgents, err := strconv.Atoi(c.Query("top_agents")); err == nil {
		opts.TopAgents = topAgents
	}

	summary, err := h.queries.Dashboard(c.UserContext(), product, periodStart, periodEnd, opts)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}
