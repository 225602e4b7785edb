package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kpi-service/internal/api/dto"
	"github.com/spec-kit/kpi-service/internal/domain"
	"github.com/spec-kit/kpi-service/internal/service"
)

// DashboardHandler serves the aggregated KPI overview.
type DashboardHandler struct {
	kpis *service.KPIService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(kpiService *service.KPIService) *DashboardHandler {
	return &DashboardHandler{kpis: kpiService}
}

// Get handles GET /api/dashboard?period=.
func (h *DashboardHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	summary, err := h.kpis.Dashboard(c.UserContext(), actor, domain.DashboardPeriod(c.Query("period")))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		KpiSummary: dto.StatusCountsResponse{
			OnTrack:  summary.KpiSummary.OnTrack,
			AtRisk:   summary.KpiSummary.AtRisk,
			OffTrack: summary.KpiSummary.OffTrack,
		},
		TaskSummary: dto.TaskCountsResponse{
			NotStarted: summary.TaskSummary.NotStarted,
			InProgress: summary.TaskSummary.InProgress,
			Completed:  summary.TaskSummary.Completed,
		},
		Kpis: kpiResponses(summary.Kpis),
	}})
}
