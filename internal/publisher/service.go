package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/activity"
	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/events"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	"github.com/google/uuid"
)

// Failure stages reported in Report.Failures.
const (
	StagePersist   = "persist"
	StageBroadcast = "broadcast"
)

// Dependencies wires repositories and realtime hooks into the publisher.
type Dependencies struct {
	Notifications store.NotificationRepository
	Broadcaster   broadcaster.Broadcaster
	Emitter       *events.Emitter
	Resolver      *channels.Resolver
	Logger        logger.Logger
	Activity      activity.Hooks
}

// Delivery records one channel handed to the transport.
type Delivery struct {
	Channel        string
	NotificationID uuid.UUID
}

// Failure records a channel that could not be persisted or broadcast.
type Failure struct {
	Channel string
	Stage   string
	Err     error
}

// Report summarises a publish run. Failures never abort other channels.
type Report struct {
	Event      events.Event
	Channels   []channels.Channel
	Deliveries []Delivery
	Failures   []Failure
}

// Service turns source entities into persisted feed rows and realtime pushes.
type Service struct {
	notifications store.NotificationRepository
	broadcaster   broadcaster.Broadcaster
	emitter       *events.Emitter
	resolver      *channels.Resolver
	logger        logger.Logger
	activity      activity.Hooks
}

var errRepositoryRequired = errors.New("publisher: notification repository is required")

// NewService constructs the publisher.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Notifications == nil {
		return nil, errRepositoryRequired
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = &broadcaster.Nop{}
	}
	if deps.Emitter == nil {
		deps.Emitter = events.NewEmitter()
	}
	if deps.Resolver == nil {
		deps.Resolver = channels.NewResolver(nil)
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Service{
		notifications: deps.Notifications,
		broadcaster:   deps.Broadcaster,
		emitter:       deps.Emitter,
		resolver:      deps.Resolver,
		logger:        deps.Logger,
		activity:      deps.Activity,
	}, nil
}

// Publish emits kind for appt and delivers it. The error is non-nil only when
// the event itself cannot be built; delivery problems land in the report.
func (s *Service) Publish(ctx context.Context, kind events.Kind, appt *domain.Appointment) (Report, error) {
	evt, err := s.emitter.Emit(kind, appt)
	if err != nil {
		return Report{}, fmt.Errorf("publisher: %w", err)
	}
	return s.PublishEvent(ctx, evt), nil
}

// Notify is Publish for business actions that must not fail because of
// notifications. Errors are logged.
func (s *Service) Notify(ctx context.Context, kind events.Kind, appt *domain.Appointment) Report {
	report, err := s.Publish(ctx, kind, appt)
	if err != nil {
		s.logger.Warn("publisher: event not emitted",
			logger.Field{Key: "kind", Value: string(kind)},
			logger.Field{Key: "error", Value: err},
		)
	}
	return report
}

// PublishEvent resolves channels for evt, persists one notification per
// private channel and broadcasts on every channel.
func (s *Service) PublishEvent(ctx context.Context, evt events.Event) Report {
	report := Report{Event: evt}
	if evt == nil {
		return report
	}
	report.Channels = s.resolver.Resolve(evt)
	names := channels.Names(report.Channels)

	for _, ch := range report.Channels {
		payload := evt.BroadcastWith()
		var notificationID uuid.UUID

		if userID, ok := channels.UserID(ch.Name); ok && ch.Visibility == channels.VisibilityPrivate {
			n, err := s.persist(ctx, userID, evt, payload)
			if err != nil {
				s.fail(&report, ch.Name, StagePersist, err)
				continue
			}
			notificationID = n.ID
			payload["notification_id"] = n.ID.String()
		}

		err := s.broadcaster.Broadcast(ctx, broadcaster.Event{
			Channel: ch.Name,
			Name:    evt.BroadcastAs(),
			Payload: payload,
		})
		if err != nil {
			s.fail(&report, ch.Name, StageBroadcast, err)
			continue
		}
		report.Deliveries = append(report.Deliveries, Delivery{Channel: ch.Name, NotificationID: notificationID})

		if notificationID != uuid.Nil {
			userID, _ := channels.UserID(ch.Name)
			s.activity.Notify(ctx, activity.Event{
				Verb:       "appointment.notification.published",
				ActorID:    "system",
				UserID:     userID,
				ObjectType: "notification",
				ObjectID:   notificationID.String(),
				Channel:    ch.Name,
				EventKind:  string(evt.Kind()),
				Channels:   names,
				OccurredAt: evt.OccurredAt(),
			})
		}
	}

	s.logger.Debug("publisher: event delivered",
		logger.Field{Key: "kind", Value: string(evt.Kind())},
		logger.Field{Key: "channels", Value: names},
		logger.Field{Key: "failures", Value: len(report.Failures)},
	)
	return report
}

func (s *Service) persist(ctx context.Context, userID string, evt events.Event, payload map[string]any) (*domain.Notification, error) {
	n := &domain.Notification{
		UserID:      userID,
		Type:        string(evt.Kind()),
		Title:       evt.Title(),
		Description: evt.Message(),
		Data:        domain.JSONMap(payload),
	}
	n.CreatedAt = evt.OccurredAt()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) fail(report *Report, channel, stage string, err error) {
	report.Failures = append(report.Failures, Failure{Channel: channel, Stage: stage, Err: err})
	s.logger.Warn("publisher: delivery failed",
		logger.Field{Key: "channel", Value: channel},
		logger.Field{Key: "stage", Value: stage},
		logger.Field{Key: "error", Value: err},
	)
}
