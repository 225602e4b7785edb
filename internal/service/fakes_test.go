package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kpi-service/internal/domain"
	"github.com/spec-kit/kpi-service/internal/events"
	"github.com/spec-kit/kpi-service/internal/repository"
)

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.KPIUpdate
}

func (f *fakeHistoryRepo) Create(ctx context.Context, entry *domain.KPIUpdate) error {
	f.add(entry)
	return nil
}

func (f *fakeHistoryRepo) add(entry *domain.KPIUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("upd-%d", len(f.entries)+1)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	f.entries = append(f.entries, *entry)
}

func (f *fakeHistoryRepo) ListByKpi(ctx context.Context, kpiID string) ([]domain.KPIUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.KPIUpdate
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].KpiID == kpiID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

type fakeKPIRepo struct {
	mu      sync.Mutex
	kpis    map[string]domain.KPI
	order   []string
	history *fakeHistoryRepo
	nextID  int
}

func newFakeKPIRepo(history *fakeHistoryRepo) *fakeKPIRepo {
	return &fakeKPIRepo{kpis: map[string]domain.KPI{}, history: history}
}

func (f *fakeKPIRepo) Create(ctx context.Context, kpi *domain.KPI) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	kpi.ID = fmt.Sprintf("kpi-%d", f.nextID)
	kpi.CreatedAt = time.Now()
	kpi.UpdatedAt = kpi.CreatedAt
	f.kpis[kpi.ID] = *kpi
	f.order = append(f.order, kpi.ID)
	return nil
}

func (f *fakeKPIRepo) Update(ctx context.Context, kpi *domain.KPI, entry *domain.KPIUpdate) error {
	f.mu.Lock()
	stored, ok := f.kpis[kpi.ID]
	if !ok {
		f.mu.Unlock()
		return pgx.ErrNoRows
	}
	if stored.Version != kpi.Version {
		f.mu.Unlock()
		return repository.ErrVersionConflict
	}
	kpi.Version++
	kpi.UpdatedAt = time.Now()
	f.kpis[kpi.ID] = *kpi
	f.mu.Unlock()

	if entry != nil && f.history != nil {
		entry.KpiID = kpi.ID
		f.history.add(entry)
	}
	return nil
}

func (f *fakeKPIRepo) GetByID(ctx context.Context, id string) (*domain.KPI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kpi, ok := f.kpis[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := kpi
	return &copied, nil
}

func (f *fakeKPIRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kpis[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.kpis, id)
	return nil
}

func (f *fakeKPIRepo) List(ctx context.Context, filter repository.KPIFilter) ([]domain.KPI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.KPI
	for _, id := range f.order {
		kpi, ok := f.kpis[id]
		if !ok {
			continue
		}
		if filter.AssignedUserID != nil && !kpi.IsAssigned(*filter.AssignedUserID) {
			continue
		}
		if filter.CreatedBy != nil && kpi.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.StartDateFrom != nil && kpi.StartDate.Before(*filter.StartDateFrom) {
			continue
		}
		if filter.EndDateTo != nil && kpi.EndDate.After(*filter.EndDateTo) {
			continue
		}
		if filter.UpdatedFrom != nil && kpi.UpdatedAt.Before(*filter.UpdatedFrom) {
			continue
		}
		if filter.UpdatedTo != nil && !kpi.UpdatedAt.Before(*filter.UpdatedTo) {
			continue
		}
		if filter.StatusTask != nil && kpi.StatusTask != *filter.StatusTask {
			continue
		}
		if filter.NotStatusTask != nil && kpi.StatusTask == *filter.NotStatusTask {
			continue
		}
		if filter.StatusKpi != nil && (kpi.StatusKpi == nil || *kpi.StatusKpi != *filter.StatusKpi) {
			continue
		}
		out = append(out, kpi)
	}
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[string]domain.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			copied := u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) List(ctx context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserRepo) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID == "" {
		n.ID = fmt.Sprintf("notif-%d", len(f.items)+1)
	}
	if n.Type == "" {
		n.Type = domain.NotificationTypeInApp
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotificationRepo) ExistsByUserAndMessage(ctx context.Context, userID, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.UserID == userID && item.Message == message {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		if f.items[i].UserID == userID {
			out = append(out, f.items[i])
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].IsRead = true
			copied := f.items[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeNotificationRepo) byUser(userID string) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, item := range f.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (r *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
