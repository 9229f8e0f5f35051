package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/goliatone/go-clinic-notifications/internal/publisher"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/events"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
)

const (
	DefaultInterval  = 5 * time.Minute
	DefaultLead      = 24 * time.Hour
	DefaultBatchSize = 100
)

type eventPublisher interface {
	Publish(ctx context.Context, kind events.Kind, appt *domain.Appointment) (publisher.Report, error)
}

// Dependencies wires the reminder scheduler.
type Dependencies struct {
	Appointments store.AppointmentRepository
	Publisher    eventPublisher
	Logger       logger.Logger
	Interval     time.Duration
	Lead         time.Duration
	BatchSize    int
	Now          func() time.Time
}

// Result summarises one reminder sweep.
type Result struct {
	Due       int
	Published int
	Failed    int
}

// Service publishes AppointmentReminder for appointments starting soon.
type Service struct {
	appointments store.AppointmentRepository
	publisher    eventPublisher
	logger       logger.Logger
	interval     time.Duration
	lead         time.Duration
	batch        int
	now          func() time.Time

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

var (
	errAppointmentsRequired = errors.New("reminders: appointment repository is required")
	errPublisherRequired    = errors.New("reminders: publisher is required")
	errAlreadyStarted       = errors.New("reminders: scheduler already started")
)

func NewService(deps Dependencies) (*Service, error) {
	if deps.Appointments == nil {
		return nil, errAppointmentsRequired
	}
	if deps.Publisher == nil {
		return nil, errPublisherRequired
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Lead <= 0 {
		deps.Lead = DefaultLead
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		appointments: deps.Appointments,
		publisher:    deps.Publisher,
		logger:       deps.Logger,
		interval:     deps.Interval,
		lead:         deps.Lead,
		batch:        deps.BatchSize,
		now:          deps.Now,
	}, nil
}

// RunOnce reminds every appointment starting within [now, now+lead] that has
// not been reminded yet. Appointments whose reminder was not delivered stay
// pending. Only a failure to load the batch is returned.
func (s *Service) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	due, err := s.appointments.ListDueForReminder(ctx, now, now.Add(s.lead), s.batch)
	if err != nil {
		return Result{}, fmt.Errorf("reminders: list due: %w", err)
	}
	result := Result{Due: len(due)}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		appt := &due[i]
		report, err := s.publisher.Publish(ctx, events.KindAppointmentReminder, appt)
		if err != nil {
			result.Failed++
			s.logger.Warn("reminders: publish failed",
				logger.Field{Key: "appointment_id", Value: appt.ID},
				logger.Field{Key: "error", Value: err},
			)
			continue
		}
		if !delivered(report) {
			result.Failed++
			s.logger.Warn("reminders: not delivered, kept pending",
				logger.Field{Key: "appointment_id", Value: appt.ID},
				logger.Field{Key: "deliveries", Value: len(report.Deliveries)},
				logger.Field{Key: "failures", Value: len(report.Failures)},
			)
			continue
		}
		result.Published++
		if len(report.Failures) > 0 {
			s.logger.Warn("reminders: partial delivery",
				logger.Field{Key: "appointment_id", Value: appt.ID},
				logger.Field{Key: "failures", Value: len(report.Failures)},
			)
		}
		if err := s.appointments.MarkReminded(ctx, appt.ID, now); err != nil {
			s.logger.Error("reminders: mark reminded failed",
				logger.Field{Key: "appointment_id", Value: appt.ID},
				logger.Field{Key: "error", Value: err},
			)
		}
	}

	s.logger.Info("reminders: sweep finished",
		logger.Field{Key: "due", Value: result.Due},
		logger.Field{Key: "published", Value: result.Published},
		logger.Field{Key: "failed", Value: result.Failed},
	)
	return result, nil
}

// delivered reports whether a reminder reached at least one channel and
// every private notification was stored. Otherwise the next sweep retries it.
func delivered(report publisher.Report) bool {
	if len(report.Deliveries) == 0 {
		return false
	}
	for _, f := range report.Failures {
		if f.Stage == publisher.StagePersist {
			return false
		}
	}
	return true
}

// Start schedules RunOnce every interval. Overlapping runs are rescheduled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return errAlreadyStarted
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("reminders: scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.RunOnce(ctx, s.now()); err != nil {
				s.logger.Error("reminders: sweep failed", logger.Field{Key: "error", Value: err})
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("appointment-reminders"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("reminders: job: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.logger.Info("reminders: scheduler started", logger.Field{Key: "interval", Value: s.interval.String()})
	return nil
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown()
}

// Shutdown stops the scheduler. Calling it before Start is a no-op.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return nil
	}
	err := s.scheduler.Shutdown()
	s.scheduler = nil
	return err
}
