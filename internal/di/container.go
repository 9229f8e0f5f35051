package di

import (
	"errors"
	"reflect"

	"github.com/goliatone/go-clinic-notifications/internal/publisher"
	"github.com/goliatone/go-clinic-notifications/internal/reminders"
	"github.com/goliatone/go-clinic-notifications/pkg/activity"
	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/commands"
	"github.com/goliatone/go-clinic-notifications/pkg/config"
	"github.com/goliatone/go-clinic-notifications/pkg/events"
	"github.com/goliatone/go-clinic-notifications/pkg/httpapi"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
	"github.com/goliatone/go-clinic-notifications/pkg/storage"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
	"github.com/goliatone/go-clinic-notifications/pkg/transport/memory"
)

// Options configure the DI container.
type Options struct {
	Config       config.Config
	Storage      storage.Providers
	Logger       logger.Logger
	Broadcasters []broadcaster.Broadcaster
	Subscriber   transport.Subscriber
	Activity     activity.Hooks
}

// Container wires repositories, services, commands, scheduler and HTTP API.
type Container struct {
	Config        config.Config
	Storage       storage.Providers
	Broadcaster   broadcaster.Broadcaster
	Subscriber    transport.Subscriber
	Resolver      *channels.Resolver
	Granter       *channels.Granter
	Authenticator *httpapi.Authenticator
	Publisher     *publisher.Service
	Notifications *notifications.Service
	Commands      *commands.Registry
	Reminders     *reminders.Service
	HTTP          *httpapi.Server
}

func isZeroConfig(cfg config.Config) bool {
	return reflect.ValueOf(cfg).IsZero()
}

// defaultHooks logs activity when a logger is configured and drops it
// otherwise.
func defaultHooks(lgr logger.Logger) activity.Hooks {
	if lgr == nil {
		return activity.Hooks{activity.Nop{}}
	}
	return activity.Hooks{activity.LoggerHook{Logger: lgr}}
}

var errConfigRequired = errors.New("di: config is required")

// New constructs the container using the supplied options. Without
// broadcasters and subscriber an in-process hub serves both sides.
func New(opts Options) (*Container, error) {
	cfg := opts.Config
	if isZeroConfig(cfg) {
		return nil, errConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	providers := opts.Storage
	if providers.Notifications == nil {
		providers = storage.NewMemoryProviders()
	}

	hooks := opts.Activity
	if len(hooks) == 0 {
		hooks = defaultHooks(opts.Logger)
	}

	lgr := opts.Logger
	if lgr == nil {
		lgr = &logger.Nop{}
	}

	subscriber := opts.Subscriber
	targets := opts.Broadcasters
	if len(targets) == 0 && subscriber == nil {
		hub := memory.NewHub(lgr)
		targets = []broadcaster.Broadcaster{hub}
		subscriber = hub
	}
	var b broadcaster.Broadcaster = &broadcaster.Nop{}
	switch len(targets) {
	case 0:
	case 1:
		b = targets[0]
	default:
		b = broadcaster.NewFanout(targets...)
	}

	resolver := channels.NewResolver(channels.RulesFor(cfg.Channels.PublicTopic, cfg.Channels.AdminTopic))
	authorizer := channels.NewAuthorizer(cfg.Channels.PublicTopic)
	granter, err := channels.NewGranter(authorizer, []byte(cfg.Auth.Secret), channels.WithGrantTTL(cfg.Auth.GrantTTL))
	if err != nil {
		return nil, err
	}
	authenticator, err := httpapi.NewAuthenticator([]byte(cfg.Auth.Secret))
	if err != nil {
		return nil, err
	}

	publisherSvc, err := publisher.NewService(publisher.Dependencies{
		Notifications: providers.Notifications,
		Broadcaster:   b,
		Emitter:       events.NewEmitter(),
		Resolver:      resolver,
		Logger:        lgr,
		Activity:      hooks,
	})
	if err != nil {
		return nil, err
	}

	notificationSvc, err := notifications.New(notifications.Dependencies{
		Repository:  providers.Notifications,
		Broadcaster: b,
		Logger:      lgr,
		Activity:    hooks,
	})
	if err != nil {
		return nil, err
	}

	cmdRegistry, err := commands.New(commands.Dependencies{
		Appointments:  providers.Appointments,
		Publisher:     publisherSvc,
		Notifications: notificationSvc,
		Logger:        lgr,
	})
	if err != nil {
		return nil, err
	}

	reminderSvc, err := reminders.NewService(reminders.Dependencies{
		Appointments: providers.Appointments,
		Publisher:    publisherSvc,
		Logger:       lgr,
		Interval:     cfg.Reminders.Interval,
		Lead:         cfg.Reminders.Lead,
		BatchSize:    cfg.Reminders.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	server, err := httpapi.New(httpapi.Dependencies{
		Notifications: notificationSvc,
		Granter:       granter,
		Subscriber:    subscriber,
		Authenticator: authenticator,
		Logger:        lgr,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:        cfg,
		Storage:       providers,
		Broadcaster:   b,
		Subscriber:    subscriber,
		Resolver:      resolver,
		Granter:       granter,
		Authenticator: authenticator,
		Publisher:     publisherSvc,
		Notifications: notificationSvc,
		Commands:      cmdRegistry,
		Reminders:     reminderSvc,
		HTTP:          server,
	}, nil
}
