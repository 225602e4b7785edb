package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kpi-service/internal/config"
	"github.com/spec-kit/kpi-service/internal/domain"
	"github.com/spec-kit/kpi-service/internal/events"
	"github.com/spec-kit/kpi-service/internal/repository"
	apperrors "github.com/spec-kit/kpi-service/pkg/util"
)

// KPIService coordinates the KPI lifecycle: creation, status derivation,
// history recording and event publication.
type KPIService struct {
	kpis       repository.KPIRepository
	history    repository.KPIHistoryRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	threshold  float64

	// Now is overridable for deterministic period boundaries in tests.
	Now func() time.Time
}

// KPIDependencies bundles repositories for the KPI service.
type KPIDependencies struct {
	KPIRepo     repository.KPIRepository
	HistoryRepo repository.KPIHistoryRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
}

// KPICreateInput describes KPI creation payload.
type KPICreateInput struct {
	Title           string
	Description     string
	TargetValue     float64
	Unit            domain.KpiUnit
	AssignedUserIDs []string
	StartDate       time.Time
	EndDate         time.Time
}

// KPIPatch carries the optional fields of an admin full edit. Nil means the
// field was absent from the request.
type KPIPatch struct {
	Title           *string
	Description     *string
	TargetValue     *float64
	Unit            *domain.KpiUnit
	StartDate       *time.Time
	EndDate         *time.Time
	AssignedUserIDs []string
	ActualValue     *float64
	Comment         *string
}

// ProgressUpdateInput is the user-facing progress report. The derived KPI
// status is intentionally absent: it is always recomputed server-side.
type ProgressUpdateInput struct {
	KpiID       string
	StatusTask  domain.TaskStatus
	ActualValue float64
	Comment     *string
}

// KPIWithRefs is a KPI with its user references resolved.
type KPIWithRefs struct {
	KPI           domain.KPI
	AssignedUsers []domain.UserRef
	Creator       *domain.UserRef
}

// HistoryEntry is a ledger row with the actor resolved.
type HistoryEntry struct {
	Update    domain.KPIUpdate
	UpdatedBy *domain.UserRef
}

// StatusCounts aggregates derived-status totals for the dashboard.
type StatusCounts struct {
	OnTrack  int
	AtRisk   int
	OffTrack int
}

// TaskCounts aggregates workflow-stage totals for the dashboard.
type TaskCounts struct {
	NotStarted int
	InProgress int
	Completed  int
}

// DashboardSummary is the aggregate returned for a dashboard query.
type DashboardSummary struct {
	KpiSummary  StatusCounts
	TaskSummary TaskCounts
	Kpis        []KPIWithRefs
}

// NewKPIService constructs the service.
func NewKPIService(cfg config.KPIConfig, deps KPIDependencies) *KPIService {
	threshold := cfg.AtRiskThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = domain.DefaultAtRiskThreshold
	}
	return &KPIService{
		kpis:       deps.KPIRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		threshold:  threshold,
		Now:        time.Now,
	}
}

// Create stores a new KPI and announces the assignment.
func (s *KPIService) Create(ctx context.Context, actor domain.AuthContext, input KPICreateInput) (*domain.KPI, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	kpi := &domain.KPI{
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		TargetValue:     input.TargetValue,
		Unit:            input.Unit,
		StatusTask:      domain.TaskStatusNotStarted,
		AssignedUserIDs: input.AssignedUserIDs,
		CreatedBy:       actor.UserID,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
	}
	if err := s.kpis.Create(ctx, kpi); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventKpiCreated,
		KpiID:   kpi.ID,
		ActorID: actor.UserID,
		Payload: events.KpiCreatedPayload{
			Title:       kpi.Title,
			AssigneeIDs: kpi.AssignedUserIDs,
		},
	})
	return kpi, nil
}

// UpdateValue is the admin path for reporting a new actual value. It always
// writes a ledger entry, even when the value is unchanged.
func (s *KPIService) UpdateValue(ctx context.Context, actor domain.AuthContext, kpiID string, actualValue float64, comment *string) (*domain.KPI, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	kpi, err := s.getKpi(ctx, kpiID)
	if err != nil {
		return nil, err
	}

	changes := domain.ChangeSet{}
	oldTask := kpi.StatusTask
	if kpi.StatusTask == domain.TaskStatusNotStarted {
		kpi.StatusTask = domain.TaskStatusInProgress
		changes.Record("status_task", oldTask, kpi.StatusTask)
	}

	oldActual := kpi.ActualValue
	oldStatus := kpi.StatusKpi
	kpi.ActualValue = &actualValue
	status := domain.DeriveKpiStatus(actualValue, kpi.TargetValue, s.threshold)
	kpi.StatusKpi = &status

	changes.Record("actual_value", oldActual, actualValue)
	changes.Record("status_kpi", oldStatus, status)

	entry := &domain.KPIUpdate{
		UpdatedBy: actor.UserID,
		Action:    domain.ActionUpdatedActualValue,
		Changes:   changes,
		Comment:   comment,
	}
	if err := s.persistUpdate(ctx, kpi, entry); err != nil {
		return nil, err
	}

	s.publishValueUpdated(ctx, actor, kpi)
	return kpi, nil
}

// UpdateProgress is the user path for reporting progress on an assigned KPI.
// The caller chooses the task status; the KPI status is derived here and
// never taken from the request.
func (s *KPIService) UpdateProgress(ctx context.Context, actor domain.AuthContext, input ProgressUpdateInput) (*domain.KPI, error) {
	if !domain.ValidTaskStatus(input.StatusTask) {
		return nil, apperrors.NewValidationError("invalid status_task", map[string]any{"status_task": input.StatusTask})
	}
	kpi, err := s.getKpi(ctx, input.KpiID)
	if err != nil {
		return nil, err
	}
	if !kpi.IsAssigned(actor.UserID) {
		return nil, apperrors.NewForbidden("not assigned to this KPI")
	}

	oldTask := kpi.StatusTask
	oldActual := kpi.ActualValue
	oldStatus := kpi.StatusKpi

	newTask := input.StatusTask
	// The first report always moves the KPI out of Not Started.
	if oldTask == domain.TaskStatusNotStarted && newTask == domain.TaskStatusNotStarted {
		newTask = domain.TaskStatusInProgress
	}
	kpi.StatusTask = newTask

	actual := input.ActualValue
	kpi.ActualValue = &actual
	status := domain.DeriveKpiStatus(actual, kpi.TargetValue, s.threshold)
	kpi.StatusKpi = &status

	changes := domain.ChangeSet{}
	changes.Record("status_task", oldTask, newTask)
	changes.Record("actual_value", oldActual, actual)
	changes.Record("status_kpi", oldStatus, status)

	entry := &domain.KPIUpdate{
		UpdatedBy: actor.UserID,
		Action:    domain.ActionProgressUpdate,
		Changes:   changes,
		Comment:   input.Comment,
	}
	if err := s.persistUpdate(ctx, kpi, entry); err != nil {
		return nil, err
	}

	s.publishValueUpdated(ctx, actor, kpi)
	return kpi, nil
}

// UpdateFull applies an admin edit of arbitrary fields, recording a
// field-level diff. A no-op edit writes no ledger entry.
func (s *KPIService) UpdateFull(ctx context.Context, actor domain.AuthContext, kpiID string, patch KPIPatch) (*domain.KPI, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	kpi, err := s.getKpi(ctx, kpiID)
	if err != nil {
		return nil, err
	}

	changes := domain.ChangeSet{}

	if patch.Title != nil && *patch.Title != kpi.Title {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		changes.Record("title", kpi.Title, *patch.Title)
		kpi.Title = *patch.Title
	}
	if patch.Description != nil && *patch.Description != kpi.Description {
		changes.Record("description", kpi.Description, *patch.Description)
		kpi.Description = *patch.Description
	}
	targetChanged := false
	if patch.TargetValue != nil && *patch.TargetValue != kpi.TargetValue {
		if *patch.TargetValue < 0 {
			return nil, apperrors.NewValidationError("target_value must be non-negative", nil)
		}
		changes.Record("target_value", kpi.TargetValue, *patch.TargetValue)
		kpi.TargetValue = *patch.TargetValue
		targetChanged = true
	}
	if patch.Unit != nil && *patch.Unit != kpi.Unit {
		if !domain.ValidUnit(*patch.Unit) {
			return nil, apperrors.NewValidationError("unknown unit", map[string]any{"unit": *patch.Unit})
		}
		changes.Record("unit", kpi.Unit, *patch.Unit)
		kpi.Unit = *patch.Unit
	}
	if patch.StartDate != nil && !patch.StartDate.Equal(kpi.StartDate) {
		changes.Record("start_date", kpi.StartDate, *patch.StartDate)
		kpi.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil && !patch.EndDate.Equal(kpi.EndDate) {
		changes.Record("end_date", kpi.EndDate, *patch.EndDate)
		kpi.EndDate = *patch.EndDate
	}
	if kpi.EndDate.Before(kpi.StartDate) {
		return nil, apperrors.NewValidationError("end_date must not be before start_date", nil)
	}
	if patch.AssignedUserIDs != nil && !reflect.DeepEqual(patch.AssignedUserIDs, kpi.AssignedUserIDs) {
		if len(patch.AssignedUserIDs) == 0 {
			return nil, apperrors.NewValidationError("assigned_user_ids cannot be empty", nil)
		}
		changes.Record("assigned_users", kpi.AssignedUserIDs, patch.AssignedUserIDs)
		kpi.AssignedUserIDs = patch.AssignedUserIDs
	}

	actualChanged := false
	if patch.ActualValue != nil && (kpi.ActualValue == nil || *patch.ActualValue != *kpi.ActualValue) {
		changes.Record("actual_value", kpi.ActualValue, *patch.ActualValue)
		kpi.ActualValue = patch.ActualValue
		actualChanged = true
	}
	if (actualChanged || targetChanged) && kpi.ActualValue != nil {
		status := domain.DeriveKpiStatus(*kpi.ActualValue, kpi.TargetValue, s.threshold)
		kpi.StatusKpi = &status
	}

	var entry *domain.KPIUpdate
	if len(changes) > 0 {
		action := domain.ActionUpdatedKpiDetails
		if actualChanged {
			action = domain.ActionUpdatedActualValue
		}
		entry = &domain.KPIUpdate{
			UpdatedBy: actor.UserID,
			Action:    action,
			Changes:   changes,
			Comment:   patch.Comment,
		}
	}
	if err := s.persistUpdate(ctx, kpi, entry); err != nil {
		return nil, err
	}

	if actualChanged {
		s.publishValueUpdated(ctx, actor, kpi)
	} else if entry != nil {
		fields := make([]string, 0, len(changes))
		for field := range changes {
			fields = append(fields, field)
		}
		s.publishEvent(ctx, events.Event{
			Type:    events.EventKpiDetailsUpdated,
			KpiID:   kpi.ID,
			ActorID: actor.UserID,
			Payload: events.KpiDetailsUpdatedPayload{Title: kpi.Title, ChangedFields: fields},
		})
	}
	return kpi, nil
}

// Delete removes a KPI. History rows are left in place as an audit trail of
// the tombstoned id.
func (s *KPIService) Delete(ctx context.Context, actor domain.AuthContext, kpiID string) error {
	if !actor.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	kpi, err := s.getKpi(ctx, kpiID)
	if err != nil {
		return err
	}
	if err := s.kpis.Delete(ctx, kpiID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("KPI", map[string]any{"id": kpiID})
		}
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventKpiDeleted,
		KpiID:   kpiID,
		ActorID: actor.UserID,
		Payload: events.KpiDeletedPayload{Title: kpi.Title},
	})
	return nil
}

// List returns the KPIs visible to the caller: everything for admins,
// assigned KPIs for regular users.
func (s *KPIService) List(ctx context.Context, actor domain.AuthContext) ([]KPIWithRefs, error) {
	filter := repository.KPIFilter{}
	if !actor.IsAdmin() {
		userID := actor.UserID
		filter.AssignedUserID = &userID
	}
	kpis, err := s.kpis.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.resolveRefs(ctx, kpis)
}

// ListCreatedBy returns KPIs created by the given user (admin drill-down).
func (s *KPIService) ListCreatedBy(ctx context.Context, actor domain.AuthContext, userID string) ([]KPIWithRefs, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	kpis, err := s.kpis.List(ctx, repository.KPIFilter{CreatedBy: &userID})
	if err != nil {
		return nil, err
	}
	return s.resolveRefs(ctx, kpis)
}

// ListAssignedTo returns KPIs assigned to the given user (admin drill-down).
func (s *KPIService) ListAssignedTo(ctx context.Context, actor domain.AuthContext, userID string) ([]KPIWithRefs, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	kpis, err := s.kpis.List(ctx, repository.KPIFilter{AssignedUserID: &userID})
	if err != nil {
		return nil, err
	}
	return s.resolveRefs(ctx, kpis)
}

// History returns the ledger for a KPI, newest first, with actors resolved.
func (s *KPIService) History(ctx context.Context, actor domain.AuthContext, kpiID string) ([]HistoryEntry, error) {
	if !actor.IsAdmin() {
		kpi, err := s.getKpi(ctx, kpiID)
		if err != nil {
			return nil, err
		}
		if !kpi.IsAssigned(actor.UserID) {
			return nil, apperrors.NewForbidden("not assigned to this KPI")
		}
	}
	updates, err := s.history.ListByKpi(ctx, kpiID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(updates))
	seen := map[string]struct{}{}
	for _, u := range updates {
		if _, ok := seen[u.UpdatedBy]; !ok {
			seen[u.UpdatedBy] = struct{}{}
			ids = append(ids, u.UpdatedBy)
		}
	}
	refs, err := s.userRefsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(updates))
	for _, u := range updates {
		entry := HistoryEntry{Update: u}
		if ref, ok := refs[u.UpdatedBy]; ok {
			r := ref
			entry.UpdatedBy = &r
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Dashboard aggregates status counts for KPIs whose start date falls within
// the requested period. Users only see their assigned KPIs.
func (s *KPIService) Dashboard(ctx context.Context, actor domain.AuthContext, period domain.DashboardPeriod) (*DashboardSummary, error) {
	start := domain.PeriodStart(period, s.Now())
	filter := repository.KPIFilter{StartDateFrom: &start}
	if !actor.IsAdmin() {
		userID := actor.UserID
		filter.AssignedUserID = &userID
	}
	kpis, err := s.kpis.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{}
	for i := range kpis {
		k := &kpis[i]
		if k.StatusKpi != nil {
			switch *k.StatusKpi {
			case domain.KpiStatusOnTrack:
				summary.KpiSummary.OnTrack++
			case domain.KpiStatusAtRisk:
				summary.KpiSummary.AtRisk++
			case domain.KpiStatusOffTrack:
				summary.KpiSummary.OffTrack++
			}
		}
		switch k.StatusTask {
		case domain.TaskStatusNotStarted:
			summary.TaskSummary.NotStarted++
		case domain.TaskStatusInProgress:
			summary.TaskSummary.InProgress++
		case domain.TaskStatusCompleted:
			summary.TaskSummary.Completed++
		}
	}

	withRefs, err := s.resolveRefs(ctx, kpis)
	if err != nil {
		return nil, err
	}
	summary.Kpis = withRefs
	return summary, nil
}

func validateCreate(input KPICreateInput) error {
	missing := map[string]any{}
	if strings.TrimSpace(input.Title) == "" {
		missing["title"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		missing["description"] = "required"
	}
	if input.StartDate.IsZero() {
		missing["start_date"] = "required"
	}
	if input.EndDate.IsZero() {
		missing["end_date"] = "required"
	}
	if len(input.AssignedUserIDs) == 0 {
		missing["assigned_user_ids"] = "at least one assignee required"
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields", missing)
	}
	if input.TargetValue < 0 {
		return apperrors.NewValidationError("target_value must be non-negative", nil)
	}
	if !domain.ValidUnit(input.Unit) {
		return apperrors.NewValidationError("unknown unit", map[string]any{"unit": input.Unit})
	}
	if input.EndDate.Before(input.StartDate) {
		return apperrors.NewValidationError("end_date must not be before start_date", nil)
	}
	return nil
}

func (s *KPIService) getKpi(ctx context.Context, kpiID string) (*domain.KPI, error) {
	kpi, err := s.kpis.GetByID(ctx, kpiID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("KPI", map[string]any{"id": kpiID})
		}
		return nil, err
	}
	return kpi, nil
}

func (s *KPIService) persistUpdate(ctx context.Context, kpi *domain.KPI, entry *domain.KPIUpdate) error {
	err := s.kpis.Update(ctx, kpi, entry)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("KPI was modified concurrently, retry", map[string]any{"id": kpi.ID})
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("KPI", map[string]any{"id": kpi.ID})
	default:
		return err
	}
}

func (s *KPIService) resolveRefs(ctx context.Context, kpis []domain.KPI) ([]KPIWithRefs, error) {
	ids := make([]string, 0, len(kpis)*2)
	seen := map[string]struct{}{}
	collect := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for i := range kpis {
		collect(kpis[i].CreatedBy)
		for _, id := range kpis[i].AssignedUserIDs {
			collect(id)
		}
	}
	refs, err := s.userRefsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]KPIWithRefs, 0, len(kpis))
	for i := range kpis {
		item := KPIWithRefs{KPI: kpis[i]}
		if ref, ok := refs[kpis[i].CreatedBy]; ok {
			r := ref
			item.Creator = &r
		}
		for _, id := range kpis[i].AssignedUserIDs {
			if ref, ok := refs[id]; ok {
				item.AssignedUsers = append(item.AssignedUsers, ref)
			}
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *KPIService) userRefsByID(ctx context.Context, ids []string) (map[string]domain.UserRef, error) {
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]domain.UserRef, len(users))
	for i := range users {
		refs[users[i].ID] = users[i].Ref()
	}
	return refs, nil
}

func (s *KPIService) publishValueUpdated(ctx context.Context, actor domain.AuthContext, kpi *domain.KPI) {
	s.publishEvent(ctx, events.Event{
		Type:    events.EventKpiValueUpdated,
		KpiID:   kpi.ID,
		ActorID: actor.UserID,
		Payload: events.KpiValueUpdatedPayload{
			Title:         kpi.Title,
			CreatorID:     kpi.CreatedBy,
			ActorUsername: actor.Username,
			StatusTask:    kpi.StatusTask,
			StatusKpi:     kpi.StatusKpi,
		},
	})
}

func (s *KPIService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
