package domain

import "time"

// History entry actions.
const (
	ActionUpdatedActualValue = "Updated Actual Value"
	ActionUpdatedKpiDetails  = "Updated KPI Details"
	ActionProgressUpdate     = "update"
)

// ChangeSet maps a field name to its [old, new] value pair.
type ChangeSet map[string][]any

// Record stores an old/new pair for the field.
func (c ChangeSet) Record(field string, oldValue, newValue any) {
	c[field] = []any{oldValue, newValue}
}

// KPIUpdate is an immutable audit trail entry for a KPI mutation.
// Rows are kept even after the KPI itself is deleted.
type KPIUpdate struct {
	ID        string
	KpiID     string
	UpdatedBy string
	Action    string
	Changes   ChangeSet
	Comment   *string
	CreatedAt time.Time
}
