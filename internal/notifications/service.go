package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/activity"
	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	"github.com/google/uuid"
)

const (
	DefaultPerPage     = 15
	DefaultLatestLimit = 10

	// UpdatedEvent is pushed on user.{id} after any feed mutation.
	UpdatedEvent = "NotificationsUpdated"
)

// ListQuery selects one page of a user's feed. Page is 1-based.
type ListQuery struct {
	Page       int
	PerPage    int
	UnreadOnly bool
}

// Page is a paginated slice of the feed plus the unread badge.
type Page struct {
	Items       []domain.Notification
	Total       int
	Page        int
	PerPage     int
	LastPage    int
	UnreadCount int
}

// Feed is the most recent notifications plus the unread badge.
type Feed struct {
	Items       []domain.Notification
	UnreadCount int
}

// Dependencies wires repositories and realtime hooks into the service.
type Dependencies struct {
	Repository  store.NotificationRepository
	Broadcaster broadcaster.Broadcaster
	Logger      logger.Logger
	Activity    activity.Hooks
	Now         func() time.Time
}

// Service answers the per-user notification queries and mutations. Every
// operation is scoped to the caller's user id.
type Service struct {
	repo        store.NotificationRepository
	broadcaster broadcaster.Broadcaster
	logger      logger.Logger
	activity    activity.Hooks
	now         func() time.Time
}

var (
	errRepositoryRequired = errors.New("notifications: repository is required")
	ErrUserRequired       = errors.New("notifications: user id is required")
)

// NewService constructs the notification query service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Repository == nil {
		return nil, errRepositoryRequired
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = &broadcaster.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        deps.Repository,
		broadcaster: deps.Broadcaster,
		logger:      deps.Logger,
		activity:    deps.Activity,
		now:         deps.Now,
	}, nil
}

// List returns one page of the feed, newest first.
func (s *Service) List(ctx context.Context, userID string, q ListQuery) (Page, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return Page{}, err
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	result, err := s.repo.ListByUser(ctx, userID,
		store.NotificationFilter{UnreadOnly: q.UnreadOnly},
		store.ListOptions{Limit: q.PerPage, Offset: (q.Page - 1) * q.PerPage},
	)
	if err != nil {
		return Page{}, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return Page{}, err
	}
	lastPage := (result.Total + q.PerPage - 1) / q.PerPage
	if lastPage == 0 {
		lastPage = 1
	}
	return Page{
		Items:       result.Items,
		Total:       result.Total,
		Page:        q.Page,
		PerPage:     q.PerPage,
		LastPage:    lastPage,
		UnreadCount: unread,
	}, nil
}

// Latest returns the newest limit notifications.
func (s *Service) Latest(ctx context.Context, userID string, limit int) (Feed, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	page, err := s.List(ctx, userID, ListQuery{Page: 1, PerPage: limit})
	if err != nil {
		return Feed{}, err
	}
	return Feed{Items: page.Items, UnreadCount: page.UnreadCount}, nil
}

// UnreadCount returns the unread badge for the user.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one notification as read. IDs that do not exist or belong to
// another user are ignored to avoid leaking existence checks.
func (s *Service) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}
	n, ok, err := s.owned(ctx, userID, id)
	if err != nil || !ok {
		return err
	}
	if !n.Unread() {
		return nil
	}
	if err := s.repo.MarkRead(ctx, id, s.now()); err != nil {
		return err
	}
	s.changed(ctx, userID, "notification.read", id.String(), nil)
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return 0, err
	}
	changed, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	s.changed(ctx, userID, "notification.read_all", "", map[string]any{"count": changed})
	return changed, nil
}

// Delete removes one notification owned by the user. Unknown ids are ignored.
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}
	_, ok, err := s.owned(ctx, userID, id)
	if err != nil || !ok {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	s.changed(ctx, userID, "notification.deleted", id.String(), nil)
	return nil
}

// DeleteRead removes every read notification of the user.
func (s *Service) DeleteRead(ctx context.Context, userID string) (int, error) {
	userID, err := normalizeUser(userID)
	if err != nil {
		return 0, err
	}
	removed, err := s.repo.DeleteRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, userID, "notification.deleted_read", "", map[string]any{"count": removed})
	return removed, nil
}

func (s *Service) owned(ctx context.Context, userID string, id uuid.UUID) (*domain.Notification, bool, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if n.UserID != userID {
		return nil, false, nil
	}
	return n, true, nil
}

func (s *Service) changed(ctx context.Context, userID, verb, objectID string, metadata map[string]any) {
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Warn("notifications: unread count failed",
			logger.Field{Key: "user_id", Value: userID},
			logger.Field{Key: "error", Value: err},
		)
	} else {
		channel := channels.User(userID).Name
		err = s.broadcaster.Broadcast(ctx, broadcaster.Event{
			Channel: channel,
			Name:    UpdatedEvent,
			Payload: map[string]any{"unread_count": unread},
		})
		if err != nil {
			s.logger.Warn("notifications: broadcast failed",
				logger.Field{Key: "channel", Value: channel},
				logger.Field{Key: "error", Value: err},
			)
		}
	}
	s.activity.Notify(ctx, activity.Event{
		Verb:       verb,
		ActorID:    userID,
		UserID:     userID,
		ObjectType: "notification",
		ObjectID:   objectID,
		Metadata:   metadata,
	})
}

func normalizeUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserRequired
	}
	return userID, nil
}
