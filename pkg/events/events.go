package events

import (
	"fmt"
	"time"
)

// Kind discriminates the payload shape and routing rule of an event.
type Kind string

const (
	KindAppointmentCreated   Kind = "appointment.created"
	KindAppointmentReminder  Kind = "appointment.reminder"
	KindAppointmentCancelled Kind = "appointment.cancelled"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindAppointmentCreated, KindAppointmentReminder, KindAppointmentCancelled}
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAppointmentCreated, KindAppointmentReminder, KindAppointmentCancelled:
		return true
	default:
		return false
	}
}

// TitleFor returns the display title of kind, or "" when unknown.
func TitleFor(k Kind) string {
	switch k {
	case KindAppointmentCreated:
		return "New appointment"
	case KindAppointmentReminder:
		return "Appointment reminder"
	case KindAppointmentCancelled:
		return "Appointment cancelled"
	default:
		return ""
	}
}

// Role names an actor of an event that may own a private channel.
type Role string

const (
	RoleVeterinary Role = "veterinary"
	RoleClient     Role = "client"
)

// Unknown substitutes any relation that was not hydrated at emission time.
const Unknown = "Unknown"

// Party is a denormalized actor reference. AccountID is empty when the actor or
// its linked account did not resolve.
type Party struct {
	Name      string
	AccountID string
}

// Event is the sealed set of domain events. Each variant carries its own
// snapshot type; use a type switch to reach it.
type Event interface {
	Kind() Kind
	OccurredAt() time.Time
	// AccountFor returns the linked account id for role, or "".
	AccountFor(role Role) string
	// BroadcastAs is the transport event name.
	BroadcastAs() string
	// BroadcastWith is the JSON payload pushed on every channel.
	BroadcastWith() map[string]any
	Title() string
	Message() string

	sealed()
}

// AppointmentCreatedSnapshot is the allow-listed view for appointment.created.
type AppointmentCreatedSnapshot struct {
	ID              int64
	UUID            string
	AppointmentDate string
	StartTime       string
	EndTime         string
	Status          string
	Veterinary      Party
	Client          Party
	Pet             string
}

// AppointmentReminderSnapshot is the allow-listed view for appointment.reminder.
type AppointmentReminderSnapshot struct {
	ID              int64
	UUID            string
	AppointmentDate string
	StartTime       string
	EndTime         string
	Veterinary      Party
	Client          Party
	Pet             string
}

// AppointmentCancelledSnapshot is the allow-listed view for appointment.cancelled.
type AppointmentCancelledSnapshot struct {
	ID              int64
	UUID            string
	AppointmentDate string
	StartTime       string
	Status          string
	Veterinary      Party
	Client          Party
	Pet             string
}

// AppointmentCreated is emitted once an appointment has been persisted.
type AppointmentCreated struct {
	Snapshot AppointmentCreatedSnapshot
	occurred time.Time
}

// AppointmentReminder is emitted ahead of an upcoming appointment.
type AppointmentReminder struct {
	Snapshot AppointmentReminderSnapshot
	occurred time.Time
}

// AppointmentCancelled is emitted when an appointment is cancelled.
type AppointmentCancelled struct {
	Snapshot AppointmentCancelledSnapshot
	occurred time.Time
}

var (
	_ Event = AppointmentCreated{}
	_ Event = AppointmentReminder{}
	_ Event = AppointmentCancelled{}
)

func (AppointmentCreated) Kind() Kind              { return KindAppointmentCreated }
func (e AppointmentCreated) OccurredAt() time.Time { return e.occurred }
func (AppointmentCreated) BroadcastAs() string     { return "AppointmentCreated" }
func (AppointmentCreated) Title() string           { return TitleFor(KindAppointmentCreated) }
func (AppointmentCreated) sealed()                 {}

func (e AppointmentCreated) AccountFor(role Role) string {
	return accountFor(role, e.Snapshot.Veterinary, e.Snapshot.Client)
}

func (e AppointmentCreated) Message() string {
	s := e.Snapshot
	return fmt.Sprintf("New appointment for %s on %s at %s", s.Pet, s.AppointmentDate, s.StartTime)
}

func (e AppointmentCreated) BroadcastWith() map[string]any {
	s := e.Snapshot
	return envelope(e, map[string]any{
		"id":               s.ID,
		"uuid":             s.UUID,
		"appointment_date": s.AppointmentDate,
		"start_time":       s.StartTime,
		"end_time":         s.EndTime,
		"status":           s.Status,
		"veterinary":       s.Veterinary.Name,
		"client":           s.Client.Name,
		"pet":              s.Pet,
	})
}

func (AppointmentReminder) Kind() Kind              { return KindAppointmentReminder }
func (e AppointmentReminder) OccurredAt() time.Time { return e.occurred }
func (AppointmentReminder) BroadcastAs() string     { return "AppointmentReminder" }
func (AppointmentReminder) Title() string           { return TitleFor(KindAppointmentReminder) }
func (AppointmentReminder) sealed()                 {}

func (e AppointmentReminder) AccountFor(role Role) string {
	return accountFor(role, e.Snapshot.Veterinary, e.Snapshot.Client)
}

func (e AppointmentReminder) Message() string {
	s := e.Snapshot
	return fmt.Sprintf("Reminder: %s has an appointment on %s at %s with %s", s.Pet, s.AppointmentDate, s.StartTime, s.Veterinary.Name)
}

func (e AppointmentReminder) BroadcastWith() map[string]any {
	s := e.Snapshot
	return envelope(e, map[string]any{
		"id":               s.ID,
		"uuid":             s.UUID,
		"appointment_date": s.AppointmentDate,
		"start_time":       s.StartTime,
		"end_time":         s.EndTime,
		"veterinary":       s.Veterinary.Name,
		"client":           s.Client.Name,
		"pet":              s.Pet,
	})
}

func (AppointmentCancelled) Kind() Kind              { return KindAppointmentCancelled }
func (e AppointmentCancelled) OccurredAt() time.Time { return e.occurred }
func (AppointmentCancelled) BroadcastAs() string     { return "AppointmentCancelled" }
func (AppointmentCancelled) Title() string           { return TitleFor(KindAppointmentCancelled) }
func (AppointmentCancelled) sealed()                 {}

func (e AppointmentCancelled) AccountFor(role Role) string {
	return accountFor(role, e.Snapshot.Veterinary, e.Snapshot.Client)
}

func (e AppointmentCancelled) Message() string {
	s := e.Snapshot
	return fmt.Sprintf("The appointment for %s on %s at %s was cancelled", s.Pet, s.AppointmentDate, s.StartTime)
}

func (e AppointmentCancelled) BroadcastWith() map[string]any {
	s := e.Snapshot
	return envelope(e, map[string]any{
		"id":               s.ID,
		"uuid":             s.UUID,
		"appointment_date": s.AppointmentDate,
		"start_time":       s.StartTime,
		"status":           s.Status,
		"veterinary":       s.Veterinary.Name,
		"client":           s.Client.Name,
		"pet":              s.Pet,
	})
}

func accountFor(role Role, vet, client Party) string {
	switch role {
	case RoleVeterinary:
		return vet.AccountID
	case RoleClient:
		return client.AccountID
	default:
		return ""
	}
}

func envelope(e Event, appointment map[string]any) map[string]any {
	return map[string]any{
		"appointment": appointment,
		"message":     e.Message(),
		"type":        string(e.Kind()),
	}
}
