package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/google/uuid"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	// ErrSourceRequired is returned when Emit receives a nil appointment.
	ErrSourceRequired = errors.New("events: source appointment is required")
	// ErrUnknownKind is returned for kinds without a snapshot rule.
	ErrUnknownKind = errors.New("events: unknown event kind")
)

// Emitter turns hydrated source entities into immutable domain events. It does
// not load relations and has no side effects.
type Emitter struct {
	now func() time.Time
}

// EmitterOption customises an Emitter.
type EmitterOption func(*Emitter)

// WithClock overrides the clock used for OccurredAt.
func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEmitter builds an emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEmitter = NewEmitter()

// Emit uses the default emitter.
func Emit(kind Kind, appt *domain.Appointment) (Event, error) {
	return defaultEmitter.Emit(kind, appt)
}

// Emit snapshots appt for kind. Missing relations become Unknown; only a nil
// source or an unsupported kind fail.
func (e *Emitter) Emit(kind Kind, appt *domain.Appointment) (Event, error) {
	if appt == nil {
		return nil, ErrSourceRequired
	}
	occurred := e.now()
	base := readAppointment(appt)

	switch kind {
	case KindAppointmentCreated:
		return AppointmentCreated{
			Snapshot: AppointmentCreatedSnapshot{
				ID:              base.id,
				UUID:            base.uuid,
				AppointmentDate: base.date,
				StartTime:       base.start,
				EndTime:         base.end,
				Status:          base.status,
				Veterinary:      base.vet,
				Client:          base.client,
				Pet:             base.pet,
			},
			occurred: occurred,
		}, nil
	case KindAppointmentReminder:
		return AppointmentReminder{
			Snapshot: AppointmentReminderSnapshot{
				ID:              base.id,
				UUID:            base.uuid,
				AppointmentDate: base.date,
				StartTime:       base.start,
				EndTime:         base.end,
				Veterinary:      base.vet,
				Client:          base.client,
				Pet:             base.pet,
			},
			occurred: occurred,
		}, nil
	case KindAppointmentCancelled:
		return AppointmentCancelled{
			Snapshot: AppointmentCancelledSnapshot{
				ID:              base.id,
				UUID:            base.uuid,
				AppointmentDate: base.date,
				StartTime:       base.start,
				Status:          base.status,
				Veterinary:      base.vet,
				Client:          base.client,
				Pet:             base.pet,
			},
			occurred: occurred,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// appointmentFields holds copies only; nothing here aliases the source entity.
type appointmentFields struct {
	id     int64
	uuid   string
	date   string
	start  string
	end    string
	status string
	vet    Party
	client Party
	pet    string
}

func readAppointment(appt *domain.Appointment) appointmentFields {
	out := appointmentFields{
		id:     appt.ID,
		status: orUnknown(appt.Status),
		pet:    Unknown,
		vet:    Party{Name: Unknown},
		client: Party{Name: Unknown},
	}
	if appt.UUID != uuid.Nil {
		out.uuid = appt.UUID.String()
	}
	if !appt.StartsAt.IsZero() {
		out.date = appt.StartsAt.Format(dateLayout)
		out.start = appt.StartsAt.Format(timeLayout)
	}
	if !appt.EndsAt.IsZero() {
		out.end = appt.EndsAt.Format(timeLayout)
	}
	if appt.Veterinary != nil {
		out.vet = Party{Name: orUnknown(appt.Veterinary.Name), AccountID: appt.Veterinary.AccountID()}
	}
	if appt.Client != nil {
		out.client = Party{Name: orUnknown(appt.Client.Name), AccountID: appt.Client.AccountID()}
	}
	if appt.Pet != nil {
		out.pet = orUnknown(appt.Pet.Name)
	}
	return out
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return Unknown
	}
	return value
}
