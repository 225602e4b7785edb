package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/kpi-service/internal/config"
	"github.com/spec-kit/kpi-service/internal/domain"
	"github.com/spec-kit/kpi-service/internal/events"
)

func newTestNotificationService(t *testing.T) (*NotificationService, *fakeNotificationRepo, *fakeKPIRepo, events.Dispatcher) {
	t.Helper()
	notifications := &fakeNotificationRepo{}
	kpis := newFakeKPIRepo(&fakeHistoryRepo{})
	users := newFakeUserRepo(
		domain.User{ID: "admin-1", Username: "boss", Email: "boss@example.com", Role: domain.UserRoleAdmin},
		domain.User{ID: "admin-2", Username: "chief", Email: "chief@example.com", Role: domain.UserRoleAdmin},
		domain.User{ID: "user-1", Username: "worker", Email: "worker@example.com", Role: domain.UserRoleUser},
	)
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(config.KPIConfig{AtRiskThreshold: 0.7, DueSoonDays: 3}, NotificationDependencies{
		NotificationRepo: notifications,
		UserRepo:         users,
		KPIRepo:          kpis,
		Dispatcher:       dispatcher,
	}, zap.NewNop())
	svc.RegisterHandlers()
	return svc, notifications, kpis, dispatcher
}

func TestAssignmentNotificationIsNeverDeduped(t *testing.T) {
	_, notifications, _, dispatcher := newTestNotificationService(t)

	event := events.Event{
		Type:    events.EventKpiCreated,
		KpiID:   "kpi-1",
		Payload: events.KpiCreatedPayload{Title: "Monthly Sales", AssigneeIDs: []string{"user-1"}},
	}
	// Re-assignment of the same KPI notifies again.
	_ = dispatcher.Publish(context.Background(), event)
	_ = dispatcher.Publish(context.Background(), event)

	got := notifications.byUser("user-1")
	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}
	want := "You have been assigned a new KPI: Monthly Sales"
	if got[0].Message != want {
		t.Fatalf("message = %q, want %q", got[0].Message, want)
	}
}

func TestValueUpdateNotifiesCreatorOnce(t *testing.T) {
	_, notifications, _, dispatcher := newTestNotificationService(t)

	status := domain.KpiStatusAtRisk
	event := events.Event{
		Type:  events.EventKpiValueUpdated,
		KpiID: "kpi-1",
		Payload: events.KpiValueUpdatedPayload{
			Title:         "Monthly Sales",
			CreatorID:     "admin-1",
			ActorUsername: "worker",
			StatusTask:    domain.TaskStatusInProgress,
			StatusKpi:     &status,
		},
	}
	_ = dispatcher.Publish(context.Background(), event)
	_ = dispatcher.Publish(context.Background(), event)

	got := notifications.byUser("admin-1")
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1 after dedup", len(got))
	}
	want := `User "worker" updated KPI "Monthly Sales" | Status Task: In Progress | Status KPI: At Risk`
	if got[0].Message != want {
		t.Fatalf("message = %q, want %q", got[0].Message, want)
	}
}

func TestSweepAtRisk(t *testing.T) {
	svc, notifications, kpis, _ := newTestNotificationService(t)

	atRisk := domain.KpiStatusAtRisk
	onTrack := domain.KpiStatusOnTrack
	_ = kpis.Create(context.Background(), &domain.KPI{
		Title:           "Monthly Sales",
		StatusTask:      domain.TaskStatusInProgress,
		StatusKpi:       &atRisk,
		AssignedUserIDs: []string{"user-1", "user-2"},
	})
	_ = kpis.Create(context.Background(), &domain.KPI{
		Title:           "Healthy KPI",
		StatusTask:      domain.TaskStatusInProgress,
		StatusKpi:       &onTrack,
		AssignedUserIDs: []string{"user-1"},
	})

	created, err := svc.SweepAtRisk(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Fatalf("first sweep created %d, want 2", created)
	}
	want := `KPI "Monthly Sales" Status: At Risk`
	if got := notifications.byUser("user-1"); len(got) != 1 || got[0].Message != want {
		t.Fatalf("user-1 notifications = %+v", got)
	}

	// Second sweep finds the identical messages already present.
	created, err = svc.SweepAtRisk(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("second sweep created %d, want 0", created)
	}
}

func TestSweepDueSoon(t *testing.T) {
	svc, notifications, kpis, _ := newTestNotificationService(t)
	svc.Now = func() time.Time {
		return time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)
	}

	_ = kpis.Create(context.Background(), &domain.KPI{
		Title:           "Ends Friday",
		StatusTask:      domain.TaskStatusInProgress,
		AssignedUserIDs: []string{"user-1"},
		EndDate:         time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	_ = kpis.Create(context.Background(), &domain.KPI{
		Title:           "Far Away",
		StatusTask:      domain.TaskStatusInProgress,
		AssignedUserIDs: []string{"user-1"},
		EndDate:         time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC),
	})
	_ = kpis.Create(context.Background(), &domain.KPI{
		Title:           "Already Done",
		StatusTask:      domain.TaskStatusCompleted,
		AssignedUserIDs: []string{"user-1"},
		EndDate:         time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
	})

	created, err := svc.SweepDueSoon(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("sweep created %d, want 1", created)
	}
	got := notifications.byUser("user-1")
	want := `KPI "Ends Friday" due in 2 days`
	if len(got) != 1 || got[0].Message != want {
		t.Fatalf("notifications = %+v, want one %q", got, want)
	}
}

func TestDailySummaryGoesToEveryAdmin(t *testing.T) {
	svc, notifications, kpis, _ := newTestNotificationService(t)

	onTrack := domain.KpiStatusOnTrack
	offTrack := domain.KpiStatusOffTrack
	_ = kpis.Create(context.Background(), &domain.KPI{Title: "A", StatusKpi: &onTrack, StatusTask: domain.TaskStatusInProgress})
	_ = kpis.Create(context.Background(), &domain.KPI{Title: "B", StatusKpi: &offTrack, StatusTask: domain.TaskStatusInProgress})

	created, err := svc.DailySummary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Fatalf("summary created %d notifications, want 2 (one per admin)", created)
	}
	want := "KPI summary for today: On Track=1, At Risk=0, Off Track=1"
	for _, adminID := range []string{"admin-1", "admin-2"} {
		got := notifications.byUser(adminID)
		if len(got) != 1 || got[0].Message != want {
			t.Fatalf("%s notifications = %+v, want %q", adminID, got, want)
		}
	}

	// Summaries are never deduped; the next run inserts again.
	created, err = svc.DailySummary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Fatalf("second summary created %d, want 2", created)
	}
}

func TestMarkRead(t *testing.T) {
	svc, notifications, _, _ := newTestNotificationService(t)

	_ = notifications.Create(context.Background(), &domain.Notification{UserID: "user-1", Message: "hello"})
	id := notifications.items[0].ID

	first, err := svc.MarkRead(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !first.IsRead {
		t.Fatal("notification not marked read")
	}

	// Marking again is a no-op, not an error.
	second, err := svc.MarkRead(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsRead {
		t.Fatal("repeat mark lost the read flag")
	}

	_, err = svc.MarkRead(context.Background(), "missing")
	assertCode(t, err, "NOT_FOUND")
}
