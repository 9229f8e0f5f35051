package store

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a record cannot be located.
var ErrNotFound = errors.New("store: not found")

// ListOptions capture pagination and filtering knobs common to repositories.
type ListOptions struct {
	Limit              int
	Offset             int
	Since              time.Time
	Until              time.Time
	IncludeSoftDeleted bool
}

// ListResult bundles records and totals.
type ListResult[T any] struct {
	Items []T
	Total int
}

// Repository defines base CRUD helpers reused by entity-specific interfaces.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, record *T) error
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context, opts ListOptions) (ListResult[T], error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// NotificationFilter narrows per-user notification listings.
type NotificationFilter struct {
	UnreadOnly bool
}

// NotificationRepository persists the per-user notification feed. Listings are
// ordered newest first.
type NotificationRepository interface {
	Repository[domain.Notification]
	ListByUser(ctx context.Context, userID string, filter NotificationFilter, opts ListOptions) (ListResult[domain.Notification], error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	DeleteRead(ctx context.Context, userID string) (int, error)
}

// AppointmentRepository loads appointments hydrated with the relations the
// event emitter reads.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	GetWithRelations(ctx context.Context, id int64) (*domain.Appointment, error)
	ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]domain.Appointment, error)
	MarkReminded(ctx context.Context, id int64, at time.Time) error
	UpdateStatus(ctx context.Context, id int64, status string) error
}
