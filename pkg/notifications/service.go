package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-clinic-notifications/internal/notifications"
	"github.com/goliatone/go-clinic-notifications/pkg/activity"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	"github.com/google/uuid"
)

// Re-export commonly used types so callers don't depend on the internal package.
type (
	ListQuery = notifications.ListQuery
	Page      = notifications.Page
	Feed      = notifications.Feed
)

const (
	DefaultPerPage     = notifications.DefaultPerPage
	DefaultLatestLimit = notifications.DefaultLatestLimit
	UpdatedEvent       = notifications.UpdatedEvent
)

var (
	ErrUserRequired = notifications.ErrUserRequired
	// ErrInvalidID is returned when a notification id is not a UUID.
	ErrInvalidID = errors.New("notifications: invalid notification id")
)

// Service exposes the notification query service to consumers.
type Service struct {
	internal *notifications.Service
}

// Dependencies wires repositories + realtime hooks.
type Dependencies struct {
	Repository  store.NotificationRepository
	Broadcaster broadcaster.Broadcaster
	Logger      logger.Logger
	Activity    activity.Hooks
}

var errServiceNotInitialised = errors.New("notifications: service not initialised")

// New constructs the façade.
func New(deps Dependencies) (*Service, error) {
	internalSvc, err := notifications.NewService(notifications.Dependencies{
		Repository:  deps.Repository,
		Broadcaster: deps.Broadcaster,
		Logger:      deps.Logger,
		Activity:    deps.Activity,
	})
	if err != nil {
		return nil, err
	}
	return &Service{internal: internalSvc}, nil
}

// List returns one page of the user's feed.
func (s *Service) List(ctx context.Context, userID string, q ListQuery) (Page, error) {
	if s == nil || s.internal == nil {
		return Page{}, errServiceNotInitialised
	}
	return s.internal.List(ctx, userID, q)
}

// Latest returns the newest notifications.
func (s *Service) Latest(ctx context.Context, userID string, limit int) (Feed, error) {
	if s == nil || s.internal == nil {
		return Feed{}, errServiceNotInitialised
	}
	return s.internal.Latest(ctx, userID, limit)
}

// UnreadCount returns the unread badge.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s == nil || s.internal == nil {
		return 0, errServiceNotInitialised
	}
	return s.internal.UnreadCount(ctx, userID)
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if s == nil || s.internal == nil {
		return errServiceNotInitialised
	}
	notificationID, err := parseUUID(id)
	if err != nil {
		return err
	}
	return s.internal.MarkRead(ctx, userID, notificationID)
}

// MarkAllRead marks the whole feed as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if s == nil || s.internal == nil {
		return 0, errServiceNotInitialised
	}
	return s.internal.MarkAllRead(ctx, userID)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if s == nil || s.internal == nil {
		return errServiceNotInitialised
	}
	notificationID, err := parseUUID(id)
	if err != nil {
		return err
	}
	return s.internal.Delete(ctx, userID, notificationID)
}

// DeleteRead removes every read notification.
func (s *Service) DeleteRead(ctx context.Context, userID string) (int, error) {
	if s == nil || s.internal == nil {
		return 0, errServiceNotInitialised
	}
	return s.internal.DeleteRead(ctx, userID)
}

func parseUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}
