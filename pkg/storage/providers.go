package storage

import (
	"context"
	"database/sql"

	bunrepo "github.com/goliatone/go-clinic-notifications/internal/storage/bun"
	"github.com/goliatone/go-clinic-notifications/internal/storage/memory"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// Providers exposes all repositories needed by services.
type Providers struct {
	Notifications store.NotificationRepository
	Appointments  store.AppointmentRepository
	Transaction   store.TransactionManager
}

type Option func(*Providers)

// WithAppointments swaps the appointment read model, e.g. for a host
// application that owns its own appointment tables.
func WithAppointments(repo store.AppointmentRepository) Option {
	return func(p *Providers) {
		if repo != nil {
			p.Appointments = repo
		}
	}
}

// Models lists every bun model owned by this module.
func Models() []any {
	return []any{
		(*domain.Notification)(nil),
		(*domain.User)(nil),
		(*domain.Client)(nil),
		(*domain.Veterinary)(nil),
		(*domain.Pet)(nil),
		(*domain.Appointment)(nil),
	}
}

// NewMemoryProviders returns repositories backed by in-memory maps.
func NewMemoryProviders(opts ...Option) Providers {
	providers := Providers{
		Notifications: memory.NewNotificationRepository(),
		Appointments:  memory.NewAppointmentRepository(),
		Transaction:   &store.NopTransactionManager{},
	}
	for _, opt := range opts {
		opt(&providers)
	}
	return providers
}

// NewBunProviders wires Bun-backed repositories using go-repository-bun.
// The caller is responsible for creating the *bun.DB instance (potentially
// via go-persistence-bun) and managing its lifecycle.
func NewBunProviders(db *bun.DB, opts ...Option) Providers {
	if db == nil {
		panic("storage: bun DB is required")
	}

	// Register models so go-persistence-bun migrations can pick them up.
	persistence.RegisterModel(Models()...)

	providers := Providers{
		Notifications: bunrepo.NewNotificationRepository(db),
		Appointments:  bunrepo.NewAppointmentRepository(db),
		Transaction:   &bunTxManager{db: db},
	}
	for _, opt := range opts {
		opt(&providers)
	}
	return providers
}

// CreateSchema creates the module tables when they do not exist yet.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

type bunTxManager struct {
	db *bun.DB
}

func (m *bunTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx)
	})
}
