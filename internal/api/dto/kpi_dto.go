package dto

import (
	"time"

	"github.com/spec-kit/kpi-service/internal/domain"
)

// CreateKPIRequest payload.
type CreateKPIRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	AssignedUserIDs []string `json:"assigned_user_ids"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	TargetValue     float64  `json:"target_value"`
	Unit            string   `json:"unit"`
}

// UpdateKPIRequest is the admin full-edit payload; absent fields are left
// untouched.
type UpdateKPIRequest struct {
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	TargetValue     *float64 `json:"target_value"`
	Unit            *string  `json:"unit"`
	StartDate       *string  `json:"start_date"`
	EndDate         *string  `json:"end_date"`
	AssignedUserIDs []string `json:"assigned_user_ids"`
	ActualValue     *float64 `json:"actual_value"`
	Comment         *string  `json:"comment"`
}

// UpdateValueRequest is the admin value-update payload.
type UpdateValueRequest struct {
	ActualValue *float64 `json:"actual_value"`
	Comment     *string  `json:"comment"`
}

// ProgressUpdateRequest is the user progress report. Derived status fields
// are not part of the contract; the server recomputes them.
type ProgressUpdateRequest struct {
	KpiID       string   `json:"kpi_id"`
	StatusTask  string   `json:"status_task"`
	ActualValue *float64 `json:"actual_value"`
	Comment     *string  `json:"comment"`
}

// UserRefResponse is the reduced user shape embedded in KPI responses.
type UserRefResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// KPIResponse is the full KPI shape.
type KPIResponse struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	TargetValue   float64           `json:"target_value"`
	Unit          string            `json:"unit"`
	ActualValue   *float64          `json:"actual_value"`
	StatusKpi     *string           `json:"status_kpi"`
	StatusTask    string            `json:"status_task"`
	AssignedUsers []UserRefResponse `json:"assigned_users"`
	CreatedBy     *UserRefResponse  `json:"created_by"`
	StartDate     time.Time         `json:"start_date"`
	EndDate       time.Time         `json:"end_date"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// KPIHistoryResponse is a single ledger entry.
type KPIHistoryResponse struct {
	ID        string           `json:"id"`
	KpiID     string           `json:"kpi_id"`
	UpdatedBy *UserRefResponse `json:"updated_by"`
	Action    string           `json:"action"`
	Changes   domain.ChangeSet `json:"changes"`
	Comment   *string          `json:"comment"`
	CreatedAt time.Time        `json:"created_at"`
}

// StatusCountsResponse aggregates derived-status totals.
type StatusCountsResponse struct {
	OnTrack  int `json:"onTrack"`
	AtRisk   int `json:"atRisk"`
	OffTrack int `json:"offTrack"`
}

// TaskCountsResponse aggregates workflow-stage totals.
type TaskCountsResponse struct {
	NotStarted int `json:"notStarted"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

// DashboardResponse is the aggregate returned for a dashboard query.
type DashboardResponse struct {
	KpiSummary  StatusCountsResponse `json:"kpiSummary"`
	TaskSummary TaskCountsResponse   `json:"taskSummary"`
	Kpis        []KPIResponse        `json:"kpis"`
}
