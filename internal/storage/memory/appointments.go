package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	"github.com/google/uuid"
)

// AppointmentRepository keeps hydrated appointments in memory. Stored and
// returned values are deep copies so callers never share relation pointers.
type AppointmentRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]domain.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{records: make(map[int64]domain.Appointment)}
}

var _ store.AppointmentRepository = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.ID == 0 {
		r.nextID++
		appt.ID = r.nextID
	} else if appt.ID > r.nextID {
		r.nextID = appt.ID
	}
	if appt.UUID == uuid.Nil {
		appt.UUID = uuid.New()
	}
	r.records[appt.ID] = copyAppointment(*appt)
	return nil
}

func (r *AppointmentRepository) GetWithRelations(ctx context.Context, id int64) (*domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyAppointment(appt)
	return &out, nil
}

func (r *AppointmentRepository) ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	due := make([]domain.Appointment, 0)
	for _, appt := range r.records {
		if !appt.ReminderSentAt.IsZero() || appt.Status == domain.AppointmentStatusCancelled {
			continue
		}
		if appt.StartsAt.Before(from) || appt.StartsAt.After(to) {
			continue
		}
		due = append(due, copyAppointment(appt))
	}
	sort.Slice(due, func(i, j int) bool { return due[i].StartsAt.Before(due[j].StartsAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *AppointmentRepository) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.records[id]
	if !ok {
		return store.ErrNotFound
	}
	appt.ReminderSentAt = at.UTC()
	r.records[id] = appt
	return nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.records[id]
	if !ok {
		return store.ErrNotFound
	}
	appt.Status = status
	r.records[id] = appt
	return nil
}

func copyAppointment(src domain.Appointment) domain.Appointment {
	out := src
	if src.Veterinary != nil {
		vet := *src.Veterinary
		vet.User = copyUser(src.Veterinary.User)
		out.Veterinary = &vet
	}
	if src.Client != nil {
		client := *src.Client
		client.User = copyUser(src.Client.User)
		out.Client = &client
	}
	if src.Pet != nil {
		pet := *src.Pet
		out.Pet = &pet
	}
	return out
}

func copyUser(src *domain.User) *domain.User {
	if src == nil {
		return nil
	}
	user := *src
	return &user
}
