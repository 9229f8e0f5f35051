package memory

import (
	"context"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	"github.com/google/uuid"
)

// NotificationRepository keeps the per-user feed in memory.
type NotificationRepository struct {
	rows *rows[domain.Notification]
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		rows: newRows(func(n *domain.Notification) *domain.RecordMeta { return &n.RecordMeta }),
	}
}

var _ store.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	data := n.Data
	n.Data = cloneJSON(data)
	r.rows.insert(n)
	n.Data = data
	return nil
}

func (r *NotificationRepository) Update(ctx context.Context, n *domain.Notification) error {
	stored := *n
	stored.Data = cloneJSON(n.Data)
	if err := r.rows.replace(&stored); err != nil {
		return err
	}
	n.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	n, err := r.rows.get(id)
	if err != nil {
		return nil, err
	}
	n.Data = cloneJSON(n.Data)
	return n, nil
}

func (r *NotificationRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Notification], error) {
	return detach(r.rows.page(opts, nil)), nil
}

func (r *NotificationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.rows.softDelete(id)
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, filter store.NotificationFilter, opts store.ListOptions) (store.ListResult[domain.Notification], error) {
	return detach(r.rows.page(opts, func(n *domain.Notification) bool {
		return n.UserID == userID && (!filter.UnreadOnly || n.Unread())
	})), nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	return r.rows.count(unreadOf(userID)), nil
}

// MarkRead stamps at on id. Rows already read keep their first ReadAt.
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.rows.get(id); err != nil {
		return err
	}
	r.rows.update(func(n *domain.Notification) bool {
		return n.ID == id && n.Unread()
	}, func(n *domain.Notification, _ time.Time) {
		n.ReadAt = at.UTC()
	})
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	return r.rows.update(unreadOf(userID), func(n *domain.Notification, _ time.Time) {
		n.ReadAt = at.UTC()
	}), nil
}

func (r *NotificationRepository) DeleteRead(ctx context.Context, userID string) (int, error) {
	return r.rows.update(func(n *domain.Notification) bool {
		return n.UserID == userID && !n.Unread()
	}, func(n *domain.Notification, now time.Time) {
		n.DeletedAt = now
	}), nil
}

// detach gives every listed row its own Data map.
func detach(result store.ListResult[domain.Notification]) store.ListResult[domain.Notification] {
	for i := range result.Items {
		result.Items[i].Data = cloneJSON(result.Items[i].Data)
	}
	return result
}

func unreadOf(userID string) func(*domain.Notification) bool {
	return func(n *domain.Notification) bool {
		return n.UserID == userID && n.Unread()
	}
}

func cloneJSON(src domain.JSONMap) domain.JSONMap {
	if src == nil {
		return nil
	}
	out := make(domain.JSONMap, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
