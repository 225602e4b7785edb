package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kpi-service/internal/api/dto"
	"github.com/spec-kit/kpi-service/internal/auth"
	"github.com/spec-kit/kpi-service/internal/domain"
	"github.com/spec-kit/kpi-service/internal/service"
	apperrors "github.com/spec-kit/kpi-service/pkg/util"
)

// KpisHandler exposes KPI management endpoints.
type KpisHandler struct {
	kpis *service.KPIService
}

// NewKpisHandler constructs handler.
func NewKpisHandler(kpiService *service.KPIService) *KpisHandler {
	return &KpisHandler{kpis: kpiService}
}

// Create handles POST /api/kpis.
func (h *KpisHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateKPIRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return apperrors.NewValidationError("invalid start_date", nil)
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return apperrors.NewValidationError("invalid end_date", nil)
	}

	kpi, err := h.kpis.Create(c.UserContext(), actor, service.KPICreateInput{
		Title:           req.Title,
		Description:     req.Description,
		TargetValue:     req.TargetValue,
		Unit:            domain.KpiUnit(req.Unit),
		AssignedUserIDs: req.AssignedUserIDs,
		StartDate:       startDate,
		EndDate:         endDate,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": bareKPIResponse(kpi)})
}

// List handles GET /api/kpis. Admins see everything, users only what is
// assigned to them.
func (h *KpisHandler) List(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.kpis.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": kpiResponses(items)})
}

// History handles GET /api/kpis/:id/history.
func (h *KpisHandler) History(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	entries, err := h.kpis.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}

	out := make([]dto.KPIHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.KPIHistoryResponse{
			ID:        entry.Update.ID,
			KpiID:     entry.Update.KpiID,
			UpdatedBy: userRefResponse(entry.UpdatedBy),
			Action:    entry.Update.Action,
			Changes:   entry.Update.Changes,
			Comment:   entry.Update.Comment,
			CreatedAt: entry.Update.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

// UpdateFull handles PUT /api/kpis/:id.
func (h *KpisHandler) UpdateFull(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateKPIRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := service.KPIPatch{
		Title:           req.Title,
		Description:     req.Description,
		TargetValue:     req.TargetValue,
		AssignedUserIDs: req.AssignedUserIDs,
		ActualValue:     req.ActualValue,
		Comment:         req.Comment,
	}
	if req.Unit != nil {
		unit := domain.KpiUnit(*req.Unit)
		patch.Unit = &unit
	}
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil {
			return apperrors.NewValidationError("invalid start_date", nil)
		}
		patch.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			return apperrors.NewValidationError("invalid end_date", nil)
		}
		patch.EndDate = &end
	}

	kpi, err := h.kpis.UpdateFull(c.UserContext(), actor, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": bareKPIResponse(kpi)})
}

// UpdateValue handles PUT /api/kpis/:id/value.
func (h *KpisHandler) UpdateValue(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateValueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActualValue == nil {
		return apperrors.NewValidationError("actual_value is required", nil)
	}

	kpi, err := h.kpis.UpdateValue(c.UserContext(), actor, c.Params("id"), *req.ActualValue, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": bareKPIResponse(kpi)})
}

// Progress handles POST /api/kpis/progress.
func (h *KpisHandler) Progress(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ProgressUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.KpiID == "" {
		return apperrors.NewValidationError("kpi_id is required", nil)
	}
	if req.ActualValue == nil {
		return apperrors.NewValidationError("actual_value is required", nil)
	}

	kpi, err := h.kpis.UpdateProgress(c.UserContext(), actor, service.ProgressUpdateInput{
		KpiID:       req.KpiID,
		StatusTask:  domain.TaskStatus(req.StatusTask),
		ActualValue: *req.ActualValue,
		Comment:     req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": bareKPIResponse(kpi)})
}

// Delete handles DELETE /api/kpis/:id.
func (h *KpisHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.kpis.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreatedBy handles GET /api/kpis/created-by/:userId.
func (h *KpisHandler) CreatedBy(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.kpis.ListCreatedBy(c.UserContext(), actor, c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": kpiResponses(items)})
}

// AssignedTo handles GET /api/kpis/assigned-to/:userId.
func (h *KpisHandler) AssignedTo(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.kpis.ListAssignedTo(c.UserContext(), actor, c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": kpiResponses(items)})
}

func actorFromContext(c *fiber.Ctx) (domain.AuthContext, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.AuthContext{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Context(), nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func kpiResponses(items []service.KPIWithRefs) []dto.KPIResponse {
	out := make([]dto.KPIResponse, 0, len(items))
	for _, item := range items {
		out = append(out, kpiResponse(item))
	}
	return out
}

func kpiResponse(item service.KPIWithRefs) dto.KPIResponse {
	resp := bareKPIResponse(&item.KPI)
	resp.CreatedBy = userRefResponse(item.Creator)
	resp.AssignedUsers = make([]dto.UserRefResponse, 0, len(item.AssignedUsers))
	for _, ref := range item.AssignedUsers {
		resp.AssignedUsers = append(resp.AssignedUsers, dto.UserRefResponse{ID: ref.ID, Username: ref.Username, Email: ref.Email})
	}
	return resp
}

func bareKPIResponse(kpi *domain.KPI) dto.KPIResponse {
	var statusKpi *string
	if kpi.StatusKpi != nil {
		s := string(*kpi.StatusKpi)
		statusKpi = &s
	}
	return dto.KPIResponse{
		ID:            kpi.ID,
		Title:         kpi.Title,
		Description:   kpi.Description,
		TargetValue:   kpi.TargetValue,
		Unit:          string(kpi.Unit),
		ActualValue:   kpi.ActualValue,
		StatusKpi:     statusKpi,
		StatusTask:    string(kpi.StatusTask),
		AssignedUsers: []dto.UserRefResponse{},
		StartDate:     kpi.StartDate,
		EndDate:       kpi.EndDate,
		Version:       kpi.Version,
		CreatedAt:     kpi.CreatedAt,
		UpdatedAt:     kpi.UpdatedAt,
	}
}

func userRefResponse(ref *domain.UserRef) *dto.UserRefResponse {
	if ref == nil {
		return nil
	}
	return &dto.UserRefResponse{ID: ref.ID, Username: ref.Username, Email: ref.Email}
}
