package bunrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AppointmentRepository reads appointments with the veterinary, client, pet
// and linked account relations joined in.
type AppointmentRepository struct {
	repo repository.Repository[*domain.Appointment]
	db   *bun.DB
}

func NewAppointmentRepository(db *bun.DB) *AppointmentRepository {
	handlers := repository.ModelHandlers[*domain.Appointment]{
		NewRecord:          func() *domain.Appointment { return &domain.Appointment{} },
		GetID:              func(a *domain.Appointment) uuid.UUID { return a.UUID },
		SetID:              func(a *domain.Appointment, id uuid.UUID) { a.UUID = id },
		GetIdentifier:      func() string { return "uuid" },
		GetIdentifierValue: func(a *domain.Appointment) string { return a.UUID.String() },
	}
	return &AppointmentRepository{
		repo: repository.MustNewRepository[*domain.Appointment](db, handlers),
		db:   db,
	}
}

var _ store.AppointmentRepository = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	if appt.UUID == uuid.Nil {
		appt.UUID = uuid.New()
	}
	_, err := r.repo.Create(ctx, appt)
	return mapError(err)
}

func (r *AppointmentRepository) GetWithRelations(ctx context.Context, id int64) (*domain.Appointment, error) {
	appt := new(domain.Appointment)
	err := withAppointmentRelations(r.db.NewSelect().Model(appt)).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	return appt, nil
}

func (r *AppointmentRepository) ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]domain.Appointment, error) {
	var appts []domain.Appointment
	q := withAppointmentRelations(r.db.NewSelect().Model(&appts)).
		Where("?TableAlias.starts_at >= ?", from.UTC()).
		Where("?TableAlias.starts_at <= ?", to.UTC()).
		Where("?TableAlias.reminder_sent_at IS NULL").
		Where("?TableAlias.status IS NULL OR ?TableAlias.status != ?", domain.AppointmentStatusCancelled).
		OrderExpr("?TableAlias.starts_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapError(err)
	}
	return appts, nil
}

func (r *AppointmentRepository) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.
		NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("reminder_sent_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.
		NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func withAppointmentRelations(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Veterinary").
		Relation("Veterinary.User").
		Relation("Client").
		Relation("Client.User").
		Relation("Pet")
}
