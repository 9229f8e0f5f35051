package events

import (
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/google/uuid"
)

func hydratedAppointment() *domain.Appointment {
	vetUser := int64(7)
	clientUser := int64(42)
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &domain.Appointment{
		ID:       11,
		UUID:     uuid.MustParse("6f1c2a9e-3a52-4d1d-9d0c-1f6f0f7c2b10"),
		StartsAt: start,
		EndsAt:   start.Add(30 * time.Minute),
		Status:   domain.AppointmentStatusConfirmed,
		Veterinary: &domain.Veterinary{
			ID: 3, Name: "Dr. Rivera", UserID: &vetUser,
			User: &domain.User{ID: vetUser, Name: "Ana Rivera"},
		},
		Client: &domain.Client{
			ID: 5, Name: "Sam Lee", UserID: &clientUser,
			User: &domain.User{ID: clientUser, Name: "Sam Lee"},
		},
		Pet: &domain.Pet{ID: 9, Name: "Rex", Species: "dog"},
	}
}

func fixedClock(at time.Time) EmitterOption {
	return WithClock(func() time.Time { return at })
}

func TestEmitCreatedSnapshot(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evt, err := NewEmitter(fixedClock(at)).Emit(KindAppointmentCreated, hydratedAppointment())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	created, ok := evt.(AppointmentCreated)
	if !ok {
		t.Fatalf("expected AppointmentCreated, got %T", evt)
	}
	if !created.OccurredAt().Equal(at) {
		t.Fatalf("expected occurredAt %v, got %v", at, created.OccurredAt())
	}
	s := created.Snapshot
	if s.AppointmentDate != "2026-03-14" || s.StartTime != "09:30" || s.EndTime != "10:00" {
		t.Fatalf("unexpected schedule fields: %+v", s)
	}
	if s.Veterinary.Name != "Dr. Rivera" || s.Client.Name != "Sam Lee" || s.Pet != "Rex" {
		t.Fatalf("unexpected party names: %+v", s)
	}
	if created.AccountFor(RoleVeterinary) != "7" || created.AccountFor(RoleClient) != "42" {
		t.Fatalf("unexpected account ids: %q %q", created.AccountFor(RoleVeterinary), created.AccountFor(RoleClient))
	}
	if created.BroadcastAs() != "AppointmentCreated" {
		t.Fatalf("unexpected broadcast name %q", created.BroadcastAs())
	}
}

func TestEmitMissingRelationsUsePlaceholder(t *testing.T) {
	appt := hydratedAppointment()
	appt.Pet = nil
	appt.Client = nil
	appt.Veterinary.User = nil

	evt, err := Emit(KindAppointmentCreated, appt)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	payload := evt.BroadcastWith()
	body := payload["appointment"].(map[string]any)
	if body["pet"] != Unknown || body["client"] != Unknown {
		t.Fatalf("expected placeholders, got %+v", body)
	}
	if body["veterinary"] != "Dr. Rivera" {
		t.Fatalf("expected vet name kept, got %v", body["veterinary"])
	}
	if evt.AccountFor(RoleVeterinary) != "" || evt.AccountFor(RoleClient) != "" {
		t.Fatalf("expected no linked accounts")
	}
}

func TestEmitIsDetachedFromSource(t *testing.T) {
	appt := hydratedAppointment()
	evt, err := Emit(KindAppointmentCreated, appt)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	appt.Pet.Name = "Changed"
	appt.Veterinary.User.ID = 99
	appt.StartsAt = appt.StartsAt.Add(24 * time.Hour)

	created := evt.(AppointmentCreated)
	if created.Snapshot.Pet != "Rex" || created.AccountFor(RoleVeterinary) != "7" || created.Snapshot.AppointmentDate != "2026-03-14" {
		t.Fatalf("snapshot changed with source: %+v", created.Snapshot)
	}
}

func TestEmitAllowListPerKind(t *testing.T) {
	appt := hydratedAppointment()

	reminder, err := Emit(KindAppointmentReminder, appt)
	if err != nil {
		t.Fatalf("emit reminder: %v", err)
	}
	body := reminder.BroadcastWith()["appointment"].(map[string]any)
	if _, ok := body["status"]; ok {
		t.Fatalf("reminder payload should not carry status: %+v", body)
	}

	cancelled, err := Emit(KindAppointmentCancelled, appt)
	if err != nil {
		t.Fatalf("emit cancelled: %v", err)
	}
	body = cancelled.BroadcastWith()["appointment"].(map[string]any)
	if _, ok := body["end_time"]; ok {
		t.Fatalf("cancelled payload should not carry end_time: %+v", body)
	}
	if cancelled.BroadcastWith()["type"] != "appointment.cancelled" {
		t.Fatalf("unexpected type %v", cancelled.BroadcastWith()["type"])
	}
}

func TestEmitRejectsInvalidInput(t *testing.T) {
	if _, err := Emit(KindAppointmentCreated, nil); !errors.Is(err, ErrSourceRequired) {
		t.Fatalf("expected ErrSourceRequired, got %v", err)
	}
	if _, err := Emit(Kind("appointment.moved"), hydratedAppointment()); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestPayloadShape(t *testing.T) {
	evt, err := Emit(KindAppointmentCreated, hydratedAppointment())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	payload := evt.BroadcastWith()
	for _, key := range []string{"appointment", "message", "type"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("payload missing %q: %+v", key, payload)
		}
	}
	body := payload["appointment"].(map[string]any)
	for _, key := range []string{"id", "uuid", "appointment_date", "start_time", "end_time", "status", "veterinary", "client", "pet"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("appointment payload missing %q", key)
		}
	}
	if len(body) != 9 {
		t.Fatalf("unexpected extra fields: %+v", body)
	}
}
