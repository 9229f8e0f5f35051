package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-clinic-notifications/internal/publisher"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/events"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
)

// Manager is the host-facing entry point: it runs the business action first
// and notifies afterwards. Notification problems never fail the action.
type Manager struct {
	appointments store.AppointmentRepository
	publisher    *publisher.Service
	tx           store.TransactionManager
	logger       logger.Logger
}

// Dependencies bundles what the manager needs.
type Dependencies struct {
	Appointments store.AppointmentRepository
	Publisher    *publisher.Service
	// Transactions scopes the business write. Notifications are sent after
	// it commits.
	Transactions store.TransactionManager
	Logger       logger.Logger
}

var (
	ErrMissingAppointments = errors.New("notifier: appointment repository is required")
	ErrMissingPublisher    = errors.New("notifier: publisher is required")
)

// New constructs the notifier manager.
func New(deps Dependencies) (*Manager, error) {
	if deps.Appointments == nil {
		return nil, ErrMissingAppointments
	}
	if deps.Publisher == nil {
		return nil, ErrMissingPublisher
	}
	if deps.Transactions == nil {
		deps.Transactions = &store.NopTransactionManager{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Manager{
		appointments: deps.Appointments,
		publisher:    deps.Publisher,
		tx:           deps.Transactions,
		logger:       deps.Logger,
	}, nil
}

// CreateAppointment persists appt and announces it. Only the persistence
// error is returned.
func (m *Manager) CreateAppointment(ctx context.Context, appt *domain.Appointment) (publisher.Report, error) {
	if appt == nil {
		return publisher.Report{}, errors.New("notifier: appointment is required")
	}
	if appt.Status == "" {
		appt.Status = domain.AppointmentStatusPending
	}
	err := m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return m.appointments.Create(ctx, appt)
	})
	if err != nil {
		return publisher.Report{}, fmt.Errorf("notifier: create appointment: %w", err)
	}
	return m.Notify(ctx, events.KindAppointmentCreated, appt.ID), nil
}

// CancelAppointment marks the appointment cancelled and announces it.
func (m *Manager) CancelAppointment(ctx context.Context, id int64) (publisher.Report, error) {
	err := m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return m.appointments.UpdateStatus(ctx, id, domain.AppointmentStatusCancelled)
	})
	if err != nil {
		return publisher.Report{}, fmt.Errorf("notifier: cancel appointment: %w", err)
	}
	return m.Notify(ctx, events.KindAppointmentCancelled, id), nil
}

// Notify hydrates the appointment and publishes kind for it. Failures are
// logged and reflected in the report only.
func (m *Manager) Notify(ctx context.Context, kind events.Kind, id int64) publisher.Report {
	appt, err := m.appointments.GetWithRelations(ctx, id)
	if err != nil {
		m.logger.Warn("notifier: appointment not loaded",
			logger.Field{Key: "appointment_id", Value: id},
			logger.Field{Key: "kind", Value: string(kind)},
			logger.Field{Key: "error", Value: err},
		)
		return publisher.Report{}
	}
	return m.publisher.Notify(ctx, kind, appt)
}
