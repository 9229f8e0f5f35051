package notifier

import (
	"github.com/goliatone/go-clinic-notifications/internal/di"
	"github.com/goliatone/go-clinic-notifications/internal/publisher"
	"github.com/goliatone/go-clinic-notifications/internal/reminders"
	"github.com/goliatone/go-clinic-notifications/pkg/activity"
	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/commands"
	"github.com/goliatone/go-clinic-notifications/pkg/config"
	"github.com/goliatone/go-clinic-notifications/pkg/httpapi"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
	"github.com/goliatone/go-clinic-notifications/pkg/storage"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
)

// ModuleOptions configure the notifier module facade.
type ModuleOptions struct {
	Config       config.Config
	Storage      storage.Providers
	Logger       logger.Logger
	Broadcasters []broadcaster.Broadcaster
	Subscriber   transport.Subscriber
	Activity     activity.Hooks
}

// Module bundles the container and exposes high-level accessors.
type Module struct {
	container *di.Container
	manager   *Manager
}

// NewModule assembles repositories, services, manager, commands and the API.
func NewModule(opts ModuleOptions) (*Module, error) {
	container, err := di.New(di.Options{
		Config:       opts.Config,
		Storage:      opts.Storage,
		Logger:       opts.Logger,
		Broadcasters: opts.Broadcasters,
		Subscriber:   opts.Subscriber,
		Activity:     opts.Activity,
	})
	if err != nil {
		return nil, err
	}
	manager, err := New(Dependencies{
		Appointments: container.Storage.Appointments,
		Publisher:    container.Publisher,
		Transactions: container.Storage.Transaction,
		Logger:       opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Module{container: container, manager: manager}, nil
}

// Manager returns the notifier manager.
func (m *Module) Manager() *Manager {
	if m == nil || m.container == nil {
		return nil
	}
	return m.manager
}

// Publisher returns the event publisher.
func (m *Module) Publisher() *publisher.Service {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Publisher
}

// Notifications exposes the notification query service.
func (m *Module) Notifications() *notifications.Service {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Notifications
}

// Commands returns the go-command registry.
func (m *Module) Commands() *commands.Registry {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Commands
}

// Reminders returns the reminder scheduler.
func (m *Module) Reminders() *reminders.Service {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Reminders
}

// HTTP returns the API server.
func (m *Module) HTTP() *httpapi.Server {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.HTTP
}

// Granter returns the channel grant signer.
func (m *Module) Granter() *channels.Granter {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Granter
}

// Subscriber returns the transport subscriber the stream endpoint uses.
func (m *Module) Subscriber() transport.Subscriber {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Subscriber
}

// Config returns the effective module configuration.
func (m *Module) Config() config.Config {
	if m == nil || m.container == nil {
		return config.Config{}
	}
	return m.container.Config
}

// Container returns the internal DI container.
// This is exposed for advanced use cases like direct storage access.
func (m *Module) Container() *di.Container {
	if m == nil {
		return nil
	}
	return m.container
}
