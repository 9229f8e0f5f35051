package bunrepo

import (
	"context"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NotificationRepository stores the per-user feed in the notifications
// table. Reads go through go-repository-bun; bulk mutations are single
// UPDATE statements.
type NotificationRepository struct {
	db   *bun.DB
	repo repository.Repository[*domain.Notification]
}

func NewNotificationRepository(db *bun.DB) *NotificationRepository {
	handlers := repository.ModelHandlers[*domain.Notification]{
		NewRecord:          func() *domain.Notification { return &domain.Notification{} },
		GetID:              func(n *domain.Notification) uuid.UUID { return n.ID },
		SetID:              func(n *domain.Notification, id uuid.UUID) { n.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(n *domain.Notification) string { return n.ID.String() },
	}
	return &NotificationRepository{
		db:   db,
		repo: repository.MustNewRepository[*domain.Notification](db, handlers),
	}
}

var _ store.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	n.EnsureID()
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	_, err := r.repo.Create(ctx, n)
	return mapError(err)
}

func (r *NotificationRepository) Update(ctx context.Context, n *domain.Notification) error {
	n.UpdatedAt = time.Now().UTC()
	_, err := r.repo.Update(ctx, n)
	return mapError(err)
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	record, err := r.repo.Get(ctx, withID(id), withoutDeleted())
	if err != nil {
		return nil, mapError(err)
	}
	return record, nil
}

func (r *NotificationRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Notification], error) {
	return r.page(ctx, withNewestFirst(opts))
}

func (r *NotificationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Notification)(nil)).
		Set("deleted_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, filter store.NotificationFilter, opts store.ListOptions) (store.ListResult[domain.Notification], error) {
	return r.page(ctx,
		withUser(userID),
		withUnreadOnly(filter.UnreadOnly),
		withNewestFirst(opts),
	)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*domain.Notification)(nil)).
		Where("user_id = ?", userID).
		Where("read_at IS NULL").
		Where("deleted_at IS NULL").
		Count(ctx)
	return count, mapError(err)
}

// MarkRead stamps at on id. Rows already read keep their first ReadAt.
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	_, err := r.db.NewUpdate().
		Model((*domain.Notification)(nil)).
		Set("read_at = ?", at.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("read_at IS NULL").
		Exec(ctx)
	return mapError(err)
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.Notification)(nil)).
		Set("read_at = ?", at.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("read_at IS NULL").
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, mapError(err)
	}
	return rowsAffected(res), nil
}

func (r *NotificationRepository) DeleteRead(ctx context.Context, userID string) (int, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.Notification)(nil)).
		Set("deleted_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("read_at IS NOT NULL").
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, mapError(err)
	}
	return rowsAffected(res), nil
}

func (r *NotificationRepository) page(ctx context.Context, criteria ...repository.SelectCriteria) (store.ListResult[domain.Notification], error) {
	records, total, err := r.repo.List(ctx, criteria...)
	if err != nil {
		return store.ListResult[domain.Notification]{}, mapError(err)
	}
	items := make([]domain.Notification, len(records))
	for i, rec := range records {
		items[i] = *rec
	}
	return store.ListResult[domain.Notification]{Items: items, Total: total}, nil
}
