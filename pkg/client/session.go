package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
)

var (
	// ErrSessionClosed is returned once Close has been called.
	ErrSessionClosed = errors.New("client: session closed")
	// ErrNoPrivateChannel is returned when the private channel was denied.
	ErrNoPrivateChannel = errors.New("client: no private channel available for this session")

	errDialerRequired = errors.New("client: dialer is required")
	errUserRequired   = errors.New("client: user id is required")
)

// Dialer opens the transport connection of a session.
type Dialer func(ctx context.Context) (transport.Subscriber, error)

// ChannelAuthorizer asks the server for a grant on channel.
type ChannelAuthorizer func(ctx context.Context, channel string) error

// SessionConfig wires a Session.
type SessionConfig struct {
	UserID    string
	Dial      Dialer
	Authorize ChannelAuthorizer
	Logger    logger.Logger
}

// Session owns the transport connection for one authenticated user. The
// connection is dialed on first use and released by Close on logout.
type Session struct {
	userID    string
	dial      Dialer
	authorize ChannelAuthorizer
	logger    logger.Logger

	mu         sync.Mutex
	subscriber transport.Subscriber
	subs       []transport.Subscription
	cancel     []context.CancelFunc
	closed     bool
}

// NewSession builds a session. Nothing is dialed until Subscribe or Connect.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Dial == nil {
		return nil, errDialerRequired
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, errUserRequired
	}
	if cfg.Logger == nil {
		cfg.Logger = &logger.Nop{}
	}
	return &Session{
		userID:    strings.TrimSpace(cfg.UserID),
		dial:      cfg.Dial,
		authorize: cfg.Authorize,
		logger:    cfg.Logger,
	}, nil
}

// PrivateChannel is the user.{id} channel of the session user.
func (s *Session) PrivateChannel() string {
	return channels.User(s.userID).Name
}

// Subscribe attaches to channel over the session connection, dialing it on
// first use.
func (s *Session) Subscribe(ctx context.Context, channel string) (transport.Subscription, error) {
	subscriber, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := subscriber.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = sub.Close()
		return nil, ErrSessionClosed
	}
	s.subs = append(s.subs, sub)
	return sub, nil
}

// Connect authorizes the private channel and pumps it into store in the
// background. A denial returns ErrNoPrivateChannel and leaves the session
// usable for public topics.
func (s *Session) Connect(ctx context.Context, store *Store) error {
	if store == nil {
		return errQueryRequired
	}
	channel := s.PrivateChannel()
	if s.authorize != nil {
		if err := s.authorize(ctx, channel); err != nil {
			s.logger.Info("client: private channel denied",
				logger.Field{Key: "channel", Value: channel},
				logger.Field{Key: "error", Value: err},
			)
			return fmt.Errorf("%w: %v", ErrNoPrivateChannel, err)
		}
	}

	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := s.Subscribe(pumpCtx, channel)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.cancel = append(s.cancel, cancel)
	s.mu.Unlock()

	go func() {
		defer store.Detach()
		if err := store.Attach(pumpCtx, sub); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("client: push pump stopped", logger.Field{Key: "error", Value: err})
		}
	}()
	return nil
}

// Close ends every subscription and releases the connection. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	cancels := s.cancel
	subscriber := s.subscriber
	s.subs, s.cancel, s.subscriber = nil, nil, nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if closer, ok := subscriber.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) connection(ctx context.Context) (transport.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.subscriber != nil {
		return s.subscriber, nil
	}
	subscriber, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	s.subscriber = subscriber
	s.logger.Debug("client: session connected", logger.Field{Key: "user_id", Value: s.userID})
	return subscriber, nil
}
