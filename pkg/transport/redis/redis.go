package redis

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/retry"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "clinic:"
	bufferSize    = 64
)

var errClientRequired = errors.New("redis transport: client is required")

// Options configure the Redis transport.
type Options struct {
	// Prefix namespaces Redis channels, e.g. "clinic:" + "user.7".
	Prefix  string
	Logger  logger.Logger
	Backoff retry.Backoff
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.Logger == nil {
		o.Logger = &logger.Nop{}
	}
	if o.Backoff == nil {
		o.Backoff = retry.DefaultBackoff()
	}
	return o
}

// Transport publishes and subscribes over Redis pub/sub.
type Transport struct {
	client goredis.UniversalClient
	opts   Options

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var (
	_ broadcaster.Broadcaster = (*Transport)(nil)
	_ transport.Subscriber    = (*Transport)(nil)
)

// New wraps a go-redis client.
func New(client goredis.UniversalClient, opts Options) (*Transport, error) {
	if client == nil {
		return nil, errClientRequired
	}
	return &Transport{
		client: client,
		opts:   opts.withDefaults(),
		subs:   make(map[*subscription]struct{}),
	}, nil
}

// Broadcast publishes the event envelope on the prefixed Redis channel.
func (t *Transport) Broadcast(ctx context.Context, evt broadcaster.Event) error {
	payload, err := transport.Encode(transport.FromEvent(evt))
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, t.key(evt.Channel), payload).Err()
}

// Subscribe attaches to channel. The first subscription is confirmed before
// returning; later drops are re-subscribed with backoff until ctx ends or the
// subscription is closed.
func (t *Transport) Subscribe(ctx context.Context, channel string) (transport.Subscription, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, transport.ErrClosed
	}
	t.mu.Unlock()

	ps, err := t.open(ctx, channel)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		channel: channel,
		out:     make(chan transport.Message, bufferSize),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if !t.track(sub) {
		cancel()
		_ = ps.Close()
		return nil, transport.ErrClosed
	}

	go t.run(subCtx, sub, ps)
	return sub, nil
}

// track registers sub unless Close already ran, in which case the caller
// owns its teardown.
func (t *Transport) track(sub *subscription) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.subs[sub] = struct{}{}
	return true
}

// Close ends every subscription. The Redis client is owned by the caller.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	subs := make([]*subscription, 0, len(t.subs))
	for sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (t *Transport) open(ctx context.Context, channel string) (*goredis.PubSub, error) {
	ps := t.client.Subscribe(ctx, t.key(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}

func (t *Transport) run(ctx context.Context, sub *subscription, ps *goredis.PubSub) {
	defer func() {
		t.mu.Lock()
		delete(t.subs, sub)
		t.mu.Unlock()
		close(sub.out)
		close(sub.done)
	}()

	log := t.opts.Logger.With(logger.Field{Key: "channel", Value: sub.channel})
	attempt := 0
	for {
		if ps != nil {
			t.pump(ctx, sub, ps, log)
			_ = ps.Close()
			ps = nil
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		log.Warn("redis transport: subscription dropped, reconnecting", logger.Field{Key: "attempt", Value: attempt})
		if err := retry.Wait(ctx, t.opts.Backoff, attempt); err != nil {
			return
		}
		next, err := t.open(ctx, sub.channel)
		if err != nil {
			log.Warn("redis transport: resubscribe failed", logger.Field{Key: "error", Value: err})
			continue
		}
		ps = next
		attempt = 0
	}
}

func (t *Transport) pump(ctx context.Context, sub *subscription, ps *goredis.PubSub, log logger.Logger) {
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			msg, err := transport.Decode([]byte(raw.Payload))
			if err != nil {
				log.Warn("redis transport: dropping malformed message", logger.Field{Key: "error", Value: err})
				continue
			}
			if msg.Channel == "" {
				msg.Channel = sub.channel
			}
			select {
			case sub.out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *Transport) key(channel string) string {
	return t.opts.Prefix + strings.TrimSpace(channel)
}

type subscription struct {
	channel string
	out     chan transport.Message
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) Channel() string                    { return s.channel }
func (s *subscription) Messages() <-chan transport.Message { return s.out }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
