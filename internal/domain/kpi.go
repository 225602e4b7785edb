package domain

import "time"

// KpiStatus is the derived health indicator computed from actual vs target.
type KpiStatus string

const (
	KpiStatusOnTrack  KpiStatus = "On Track"
	KpiStatusAtRisk   KpiStatus = "At Risk"
	KpiStatusOffTrack KpiStatus = "Off Track"
)

// TaskStatus is the workflow stage of a KPI, distinct from KpiStatus.
type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "Not Started"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// KpiUnit enumerates measurement units for target and actual values.
type KpiUnit string

const (
	KpiUnitUnit       KpiUnit = "unit"
	KpiUnitBath       KpiUnit = "bath"
	KpiUnitPeople     KpiUnit = "people"
	KpiUnitPercentage KpiUnit = "percentage"
)

// ValidUnit reports whether the unit is a known value.
func ValidUnit(u KpiUnit) bool {
	switch u {
	case KpiUnitUnit, KpiUnitBath, KpiUnitPeople, KpiUnitPercentage:
		return true
	}
	return false
}

// ValidTaskStatus reports whether the task status is a known value.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusNotStarted, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// KPI is the aggregate for tracked performance indicators.
//
// StatusKpi stays nil until the first actual-value update; Version is a
// monotonic counter used to reject stale concurrent writes.
type KPI struct {
	ID              string
	Title           string
	Description     string
	TargetValue     float64
	Unit            KpiUnit
	ActualValue     *float64
	StatusKpi       *KpiStatus
	StatusTask      TaskStatus
	AssignedUserIDs []string
	CreatedBy       string
	StartDate       time.Time
	EndDate         time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAssigned reports whether the user is one of the KPI assignees.
func (k *KPI) IsAssigned(userID string) bool {
	for _, id := range k.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
