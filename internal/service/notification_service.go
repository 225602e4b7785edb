package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/kpi-service/internal/config"
	"github.com/spec-kit/kpi-service/internal/domain"
	"github.com/spec-kit/kpi-service/internal/events"
	"github.com/spec-kit/kpi-service/internal/repository"
	apperrors "github.com/spec-kit/kpi-service/pkg/util"
)

// NotificationService turns KPI lifecycle events and scheduled sweeps into
// deduplicated notification records.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	kpis          repository.KPIRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	dueSoonDays   int

	// Now is overridable for deterministic due-soon and summary windows.
	Now func() time.Time
}

// NotificationDependencies bundles repositories for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	KPIRepo          repository.KPIRepository
	Dispatcher       events.Dispatcher
}

// NewNotificationService creates the service.
func NewNotificationService(cfg config.KPIConfig, deps NotificationDependencies, logger *zap.Logger) *NotificationService {
	dueSoon := cfg.DueSoonDays
	if dueSoon <= 0 {
		dueSoon = 3
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		kpis:          deps.KPIRepo,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		dueSoonDays:   dueSoon,
		Now:           time.Now,
	}
}

// RegisterHandlers subscribes to KPI lifecycle events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventKpiCreated, n.handleKpiCreated)
	n.dispatcher.Subscribe(events.EventKpiValueUpdated, n.handleKpiValueUpdated)
}

// handleKpiCreated notifies every assignee. A fresh assignment always
// notifies; no dedup check here.
func (n *NotificationService) handleKpiCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.KpiCreatedPayload)
	if !ok {
		return nil
	}
	message := fmt.Sprintf("You have been assigned a new KPI: %s", payload.Title)
	for _, userID := range payload.AssigneeIDs {
		if err := n.notifications.Create(ctx, &domain.Notification{UserID: userID, Message: message}); err != nil {
			n.logger.Error("create assignment notification", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

// handleKpiValueUpdated notifies the KPI creator about the reported status,
// skipping the insert when an identical message already exists for them.
func (n *NotificationService) handleKpiValueUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.KpiValueUpdatedPayload)
	if !ok {
		return nil
	}
	statusKpi := "-"
	if payload.StatusKpi != nil {
		statusKpi = string(*payload.StatusKpi)
	}
	message := fmt.Sprintf("User %q updated KPI %q | Status Task: %s | Status KPI: %s",
		payload.ActorUsername, payload.Title, payload.StatusTask, statusKpi)
	if _, err := n.insertDeduped(ctx, payload.CreatorID, message); err != nil {
		n.logger.Error("notify creator", zap.String("kpi_id", event.KpiID), zap.Error(err))
	}
	return nil
}

// SweepAtRisk notifies every assignee of each in-progress KPI whose derived
// status is At Risk. Returns the number of notifications inserted.
func (n *NotificationService) SweepAtRisk(ctx context.Context) (int, error) {
	inProgress := domain.TaskStatusInProgress
	atRisk := domain.KpiStatusAtRisk
	kpis, err := n.kpis.List(ctx, repository.KPIFilter{StatusTask: &inProgress, StatusKpi: &atRisk})
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range kpis {
		message := fmt.Sprintf("KPI %q Status: At Risk", kpis[i].Title)
		for _, userID := range kpis[i].AssignedUserIDs {
			inserted, err := n.insertDeduped(ctx, userID, message)
			if err != nil {
				return created, err
			}
			if inserted {
				created++
			}
		}
	}
	return created, nil
}

// SweepDueSoon notifies assignees of unfinished KPIs ending within the
// configured window. The remaining-day count is part of the message, so the
// dedup key rolls over each day and re-notification happens naturally.
func (n *NotificationService) SweepDueSoon(ctx context.Context) (int, error) {
	completed := domain.TaskStatusCompleted
	kpis, err := n.kpis.List(ctx, repository.KPIFilter{NotStatusTask: &completed})
	if err != nil {
		return 0, err
	}

	now := n.Now()
	created := 0
	for i := range kpis {
		remaining := int(math.Ceil(kpis[i].EndDate.Sub(now).Hours() / 24))
		if remaining > n.dueSoonDays {
			continue
		}
		message := fmt.Sprintf("KPI %q due in %d days", kpis[i].Title, remaining)
		for _, userID := range kpis[i].AssignedUserIDs {
			inserted, err := n.insertDeduped(ctx, userID, message)
			if err != nil {
				return created, err
			}
			if inserted {
				created++
			}
		}
	}
	return created, nil
}

// DailySummary counts today's touched KPIs by derived status and sends one
// summary to every admin. Summaries are always inserted, never deduped.
func (n *NotificationService) DailySummary(ctx context.Context) (int, error) {
	now := n.Now()
	year, month, day := now.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	kpis, err := n.kpis.List(ctx, repository.KPIFilter{UpdatedFrom: &start, UpdatedTo: &end})
	if err != nil {
		return 0, err
	}

	var counts StatusCounts
	for i := range kpis {
		if kpis[i].StatusKpi == nil {
			continue
		}
		switch *kpis[i].StatusKpi {
		case domain.KpiStatusOnTrack:
			counts.OnTrack++
		case domain.KpiStatusAtRisk:
			counts.AtRisk++
		case domain.KpiStatusOffTrack:
			counts.OffTrack++
		}
	}

	admins, err := n.users.ListByRole(ctx, domain.UserRoleAdmin)
	if err != nil {
		return 0, err
	}
	message := fmt.Sprintf("KPI summary for today: On Track=%d, At Risk=%d, Off Track=%d",
		counts.OnTrack, counts.AtRisk, counts.OffTrack)

	created := 0
	for i := range admins {
		if err := n.notifications.Create(ctx, &domain.Notification{UserID: admins[i].ID, Message: message}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// ListForUser returns the caller's notifications, newest first, capped at 50.
func (n *NotificationService) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return n.notifications.ListByUser(ctx, userID, 50)
}

// MarkRead flips the read flag. Marking an already-read notification is a
// no-op; a missing id is NotFound.
func (n *NotificationService) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	notif, err := n.notifications.MarkRead(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"id": id})
		}
		return nil, err
	}
	return notif, nil
}

// insertDeduped inserts the message unless an identical one already exists
// for the recipient. The check and insert are two round trips; a concurrent
// duplicate is accepted rather than locked out.
func (n *NotificationService) insertDeduped(ctx context.Context, userID, message string) (bool, error) {
	exists, err := n.notifications.ExistsByUserAndMessage(ctx, userID, message)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := n.notifications.Create(ctx, &domain.Notification{UserID: userID, Message: message}); err != nil {
		return false, err
	}
	return true, nil
}
