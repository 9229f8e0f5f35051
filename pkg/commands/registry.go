package commands

import (
	"errors"

	internalcommands "github.com/goliatone/go-clinic-notifications/internal/commands"
	"github.com/goliatone/go-clinic-notifications/internal/publisher"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
	command "github.com/goliatone/go-command"
)

// Re-export request types so consumers need not import internal packages.
type (
	PublishAppointment = internalcommands.PublishAppointment
	CancelAppointment  = internalcommands.CancelAppointment
	MarkRead           = internalcommands.MarkRead
	MarkAllRead        = internalcommands.MarkAllRead
	Delete             = internalcommands.Delete
	DeleteRead         = internalcommands.DeleteRead
)

// Registry exposes go-command compatible handlers backed by the module services.
type Registry struct {
	Catalog            *internalcommands.Catalog
	PublishAppointment command.Commander[PublishAppointment]
	CancelAppointment  command.Commander[CancelAppointment]
	MarkRead           command.Commander[MarkRead]
	MarkAllRead        command.Commander[MarkAllRead]
	Delete             command.Commander[Delete]
	DeleteRead         command.Commander[DeleteRead]
}

// Dependencies mirror the internal command dependencies but keep them public.
type Dependencies struct {
	Appointments  store.AppointmentRepository
	Publisher     *publisher.Service
	Notifications *notifications.Service
	Logger        logger.Logger
}

var (
	errPublisherRequired     = errors.New("commands: publisher is required")
	errNotificationsRequired = errors.New("commands: notification service is required")
)

// New builds the registry using the provided dependencies.
func New(deps Dependencies) (*Registry, error) {
	if deps.Publisher == nil {
		return nil, errPublisherRequired
	}
	if deps.Notifications == nil {
		return nil, errNotificationsRequired
	}
	catalog, err := internalcommands.NewCatalog(internalcommands.Dependencies{
		Appointments:  deps.Appointments,
		Publisher:     deps.Publisher,
		Notifications: deps.Notifications,
		Logger:        deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Registry{
		Catalog:            catalog,
		PublishAppointment: catalog.PublishAppointment,
		CancelAppointment:  catalog.CancelAppointment,
		MarkRead:           catalog.MarkRead,
		MarkAllRead:        catalog.MarkAllRead,
		Delete:             catalog.Delete,
		DeleteRead:         catalog.DeleteRead,
	}, nil
}

// Commanders returns every handler so callers can register them with go-command registries.
func (r *Registry) Commanders() []any {
	if r == nil {
		return nil
	}
	return []any{
		r.PublishAppointment,
		r.CancelAppointment,
		r.MarkRead,
		r.MarkAllRead,
		r.Delete,
		r.DeleteRead,
	}
}
