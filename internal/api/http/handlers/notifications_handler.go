package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kpi-service/internal/api/dto"
	"github.com/spec-kit/kpi-service/internal/domain"
	"github.com/spec-kit/kpi-service/internal/service"
)

// NotificationsHandler serves the caller's notification feed.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notificationService}
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.notifications.ListForUser(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}

	out := make([]dto.NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, notificationResponse(item))
	}
	return c.JSON(fiber.Map{"data": out})
}

// MarkRead handles PATCH /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if _, err := actorFromContext(c); err != nil {
		return err
	}
	notification, err := h.notifications.MarkRead(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponse(*notification)})
}

func notificationResponse(n domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
