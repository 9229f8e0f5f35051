package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-clinic-notifications/internal/publisher"
	"github.com/goliatone/go-clinic-notifications/internal/storage/memory"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/events"
)

type stubPublisher struct {
	mu    sync.Mutex
	calls []int64
	kinds []events.Kind
	err   error
}

func (p *stubPublisher) Publish(_ context.Context, kind events.Kind, appt *domain.Appointment) (publisher.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return publisher.Report{}, p.err
	}
	p.calls = append(p.calls, appt.ID)
	p.kinds = append(p.kinds, kind)
	return publisher.Report{Deliveries: []publisher.Delivery{{Channel: "appointments"}}}, nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type failingMark struct {
	*memory.AppointmentRepository
}

func (failingMark) MarkReminded(context.Context, int64, time.Time) error {
	return errors.New("db down")
}

type failingNotifications struct {
	*memory.NotificationRepository
}

func (failingNotifications) Create(context.Context, *domain.Notification) error {
	return errors.New("db down")
}

var now = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *memory.AppointmentRepository) {
	t.Helper()
	ctx := context.Background()
	fixtures := []domain.Appointment{
		{ID: 1, StartsAt: now.Add(2 * time.Hour), Status: domain.AppointmentStatusConfirmed},
		{ID: 2, StartsAt: now.Add(30 * time.Hour), Status: domain.AppointmentStatusConfirmed},
		{ID: 3, StartsAt: now.Add(3 * time.Hour), Status: domain.AppointmentStatusCancelled},
		{ID: 4, StartsAt: now.Add(4 * time.Hour), Status: domain.AppointmentStatusPending, ReminderSentAt: now.Add(-time.Hour)},
		{ID: 5, StartsAt: now.Add(-time.Hour), Status: domain.AppointmentStatusConfirmed},
	}
	for i := range fixtures {
		if err := repo.Create(ctx, &fixtures[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestRunOnceRemindsDueAppointments(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAppointmentRepository()
	seed(t, repo)
	pub := &stubPublisher{}

	svc, err := NewService(Dependencies{Appointments: repo, Publisher: pub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.RunOnce(ctx, now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if result.Due != 1 || result.Published != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(pub.calls) != 1 || pub.calls[0] != 1 || pub.kinds[0] != events.KindAppointmentReminder {
		t.Fatalf("expected reminder for appointment 1, got %v %v", pub.calls, pub.kinds)
	}

	appt, err := repo.GetWithRelations(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !appt.ReminderSentAt.Equal(now) {
		t.Fatalf("expected reminder stamp, got %v", appt.ReminderSentAt)
	}

	if result, _ := svc.RunOnce(ctx, now); result.Due != 0 {
		t.Fatalf("expected second sweep to be empty, got %+v", result)
	}
}

func TestRunOnceLogsMarkFailure(t *testing.T) {
	repo := memory.NewAppointmentRepository()
	seed(t, repo)
	pub := &stubPublisher{}

	svc, err := NewService(Dependencies{Appointments: failingMark{repo}, Publisher: pub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	result, err := svc.RunOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("mark failure must not be returned: %v", err)
	}
	if result.Published != 1 {
		t.Fatalf("expected reminder published, got %+v", result)
	}
}

func TestRunOnceCountsPublishFailures(t *testing.T) {
	repo := memory.NewAppointmentRepository()
	seed(t, repo)
	pub := &stubPublisher{err: errors.New("boom")}

	svc, _ := NewService(Dependencies{Appointments: repo, Publisher: pub})
	result, err := svc.RunOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if result.Failed != 1 || result.Published != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	appt, _ := repo.GetWithRelations(context.Background(), 1)
	if !appt.ReminderSentAt.IsZero() {
		t.Fatalf("failed reminder must stay pending")
	}
}

func TestRunOnceKeepsReminderPendingWhenNotificationNotStored(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAppointmentRepository()
	appt := &domain.Appointment{
		StartsAt:   now.Add(2 * time.Hour),
		Status:     domain.AppointmentStatusConfirmed,
		Veterinary: &domain.Veterinary{ID: 1, Name: "Dr. Rivera", User: &domain.User{ID: 7}},
		Client:     &domain.Client{ID: 2, Name: "Sam Lee"},
		Pet:        &domain.Pet{ID: 3, Name: "Rex"},
	}
	if err := repo.Create(ctx, appt); err != nil {
		t.Fatalf("seed: %v", err)
	}

	notifications := failingNotifications{memory.NewNotificationRepository()}
	pub, err := publisher.NewService(publisher.Dependencies{Notifications: notifications})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	svc, err := NewService(Dependencies{Appointments: repo, Publisher: pub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	first, err := svc.RunOnce(ctx, now)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if first.Due != 1 || first.Failed != 1 || first.Published != 0 {
		t.Fatalf("unexpected first sweep %+v", first)
	}
	stored, _ := repo.GetWithRelations(ctx, appt.ID)
	if !stored.ReminderSentAt.IsZero() {
		t.Fatalf("undelivered reminder must stay pending")
	}

	second, err := svc.RunOnce(ctx, now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Due != 1 {
		t.Fatalf("expected the reminder to be retried, got %+v", second)
	}
}

func TestDeliveredRequiresStoredNotifications(t *testing.T) {
	cases := []struct {
		name   string
		report publisher.Report
		want   bool
	}{
		{name: "empty", report: publisher.Report{}, want: false},
		{name: "public only", report: publisher.Report{Deliveries: []publisher.Delivery{{Channel: "appointments"}}}, want: true},
		{
			name: "persist failure",
			report: publisher.Report{
				Deliveries: []publisher.Delivery{{Channel: "appointments"}},
				Failures:   []publisher.Failure{{Channel: "user.7", Stage: publisher.StagePersist}},
			},
			want: false,
		},
		{
			name: "broadcast failure",
			report: publisher.Report{
				Deliveries: []publisher.Delivery{{Channel: "user.7"}},
				Failures:   []publisher.Failure{{Channel: "appointments", Stage: publisher.StageBroadcast}},
			},
			want: true,
		},
	}
	for _, tc := range cases {
		if got := delivered(tc.report); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSchedulerRunsSweeps(t *testing.T) {
	repo := memory.NewAppointmentRepository()
	seed(t, repo)
	pub := &stubPublisher{}

	svc, err := NewService(Dependencies{
		Appointments: repo,
		Publisher:    pub,
		Interval:     20 * time.Millisecond,
		Now:          func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Start(ctx); err == nil {
		t.Fatalf("expected second start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := svc.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("expected exactly one reminder across sweeps, got %d", pub.count())
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(Dependencies{Publisher: &stubPublisher{}}); err == nil {
		t.Fatalf("expected repository error")
	}
	if _, err := NewService(Dependencies{Appointments: memory.NewAppointmentRepository()}); err == nil {
		t.Fatalf("expected publisher error")
	}
}
