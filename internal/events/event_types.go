package events

import (
	"time"

	"github.com/spec-kit/kpi-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventKpiCreated        EventType = "kpi_created"
	EventKpiValueUpdated   EventType = "kpi_value_updated"
	EventKpiDetailsUpdated EventType = "kpi_details_updated"
	EventKpiDeleted        EventType = "kpi_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	KpiID     string      `json:"kpi_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// KpiCreatedPayload payload.
type KpiCreatedPayload struct {
	Title       string   `json:"title"`
	AssigneeIDs []string `json:"assignee_ids"`
}

// KpiValueUpdatedPayload carries everything the notification layer needs to
// tell the KPI creator about a progress report without refetching.
type KpiValueUpdatedPayload struct {
	Title         string            `json:"title"`
	CreatorID     string            `json:"creator_id"`
	ActorUsername string            `json:"actor_username"`
	StatusTask    domain.TaskStatus `json:"status_task"`
	StatusKpi     *domain.KpiStatus `json:"status_kpi,omitempty"`
}

// KpiDetailsUpdatedPayload payload.
type KpiDetailsUpdatedPayload struct {
	Title         string   `json:"title"`
	ChangedFields []string `json:"changed_fields"`
}

// KpiDeletedPayload payload.
type KpiDeletedPayload struct {
	Title string `json:"title"`
}
