package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-clinic-notifications/internal/publisher"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/events"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	command "github.com/goliatone/go-command"
)

// Catalog exposes go-command compatible handlers for host transports.
type Catalog struct {
	PublishAppointment command.Commander[PublishAppointment]
	CancelAppointment  command.Commander[CancelAppointment]
	MarkRead           command.Commander[MarkRead]
	MarkAllRead        command.Commander[MarkAllRead]
	Delete             command.Commander[Delete]
	DeleteRead         command.Commander[DeleteRead]
}

type publisherService interface {
	Publish(ctx context.Context, kind events.Kind, appt *domain.Appointment) (publisher.Report, error)
}

type notificationService interface {
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteRead(ctx context.Context, userID string) (int, error)
}

// Dependencies wires repositories and services into the command catalog.
type Dependencies struct {
	Appointments  store.AppointmentRepository
	Publisher     publisherService
	Notifications notificationService
	Logger        logger.Logger
}

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Appointments == nil {
		return nil, errors.New("commands: appointment repository is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("commands: publisher is required")
	}
	if deps.Notifications == nil {
		return nil, errors.New("commands: notification service is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}

	return &Catalog{
		PublishAppointment: publishAppointmentCommand{appointments: deps.Appointments, publisher: deps.Publisher, logger: deps.Logger},
		CancelAppointment:  cancelAppointmentCommand{appointments: deps.Appointments, publisher: deps.Publisher, logger: deps.Logger},
		MarkRead:           markReadCommand{svc: deps.Notifications},
		MarkAllRead:        markAllReadCommand{svc: deps.Notifications},
		Delete:             deleteCommand{svc: deps.Notifications},
		DeleteRead:         deleteReadCommand{svc: deps.Notifications},
	}, nil
}

// PublishAppointment notifies about an already persisted appointment.
type PublishAppointment struct {
	Kind          events.Kind `json:"kind"`
	AppointmentID int64       `json:"appointment_id"`
}

type publishAppointmentCommand struct {
	appointments store.AppointmentRepository
	publisher    publisherService
	logger       logger.Logger
}

// Execute loads the appointment graph and publishes it. Delivery failures are
// logged by the publisher and do not fail the command.
func (c publishAppointmentCommand) Execute(ctx context.Context, msg PublishAppointment) error {
	if !msg.Kind.Valid() {
		return fmt.Errorf("commands: unsupported event kind %q", msg.Kind)
	}
	appt, err := c.appointments.GetWithRelations(ctx, msg.AppointmentID)
	if err != nil {
		return fmt.Errorf("commands: load appointment %d: %w", msg.AppointmentID, err)
	}
	report, err := c.publisher.Publish(ctx, msg.Kind, appt)
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		c.logger.Warn("commands: appointment published with failures",
			logger.Field{Key: "appointment_id", Value: msg.AppointmentID},
			logger.Field{Key: "failures", Value: len(report.Failures)},
		)
	}
	return nil
}

// CancelAppointment marks an appointment cancelled and notifies its parties.
type CancelAppointment struct {
	AppointmentID int64 `json:"appointment_id"`
}

type cancelAppointmentCommand struct {
	appointments store.AppointmentRepository
	publisher    publisherService
	logger       logger.Logger
}

func (c cancelAppointmentCommand) Execute(ctx context.Context, msg CancelAppointment) error {
	if err := c.appointments.UpdateStatus(ctx, msg.AppointmentID, domain.AppointmentStatusCancelled); err != nil {
		return fmt.Errorf("commands: cancel appointment %d: %w", msg.AppointmentID, err)
	}
	appt, err := c.appointments.GetWithRelations(ctx, msg.AppointmentID)
	if err != nil {
		c.logger.Warn("commands: cancelled appointment not reloaded",
			logger.Field{Key: "appointment_id", Value: msg.AppointmentID},
			logger.Field{Key: "error", Value: err},
		)
		return nil
	}
	if _, err := c.publisher.Publish(ctx, events.KindAppointmentCancelled, appt); err != nil {
		c.logger.Warn("commands: cancellation not published",
			logger.Field{Key: "appointment_id", Value: msg.AppointmentID},
			logger.Field{Key: "error", Value: err},
		)
	}
	return nil
}

// MarkRead request payload.
type MarkRead struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

type markReadCommand struct {
	svc notificationService
}

func (c markReadCommand) Execute(ctx context.Context, msg MarkRead) error {
	return c.svc.MarkRead(ctx, msg.UserID, msg.ID)
}

// MarkAllRead marks the whole feed of a user as read.
type MarkAllRead struct {
	UserID string `json:"user_id"`
}

type markAllReadCommand struct {
	svc notificationService
}

func (c markAllReadCommand) Execute(ctx context.Context, msg MarkAllRead) error {
	_, err := c.svc.MarkAllRead(ctx, msg.UserID)
	return err
}

// Delete removes one notification.
type Delete struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

type deleteCommand struct {
	svc notificationService
}

func (c deleteCommand) Execute(ctx context.Context, msg Delete) error {
	return c.svc.Delete(ctx, msg.UserID, msg.ID)
}

// DeleteRead removes every read notification of a user.
type DeleteRead struct {
	UserID string `json:"user_id"`
}

type deleteReadCommand struct {
	svc notificationService
}

func (c deleteReadCommand) Execute(ctx context.Context, msg DeleteRead) error {
	_, err := c.svc.DeleteRead(ctx, msg.UserID)
	return err
}
