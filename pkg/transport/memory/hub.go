package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
)

const bufferSize = 64

// Hub is an in-process transport for single-node runs and tests. Slow
// subscribers lose messages once their buffer is full.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	logger logger.Logger
	closed bool
}

var (
	_ broadcaster.Broadcaster = (*Hub)(nil)
	_ transport.Subscriber    = (*Hub)(nil)
)

// NewHub builds an empty hub.
func NewHub(lgr logger.Logger) *Hub {
	if lgr == nil {
		lgr = &logger.Nop{}
	}
	return &Hub{subs: make(map[string]map[*subscription]struct{}), logger: lgr}
}

// Broadcast delivers evt to every current subscriber of its channel.
func (h *Hub) Broadcast(_ context.Context, evt broadcaster.Event) error {
	msg := transport.FromEvent(evt)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[strings.TrimSpace(evt.Channel)] {
		select {
		case sub.out <- msg:
		default:
			h.logger.Warn("memory hub: subscriber buffer full, dropping message",
				logger.Field{Key: "channel", Value: evt.Channel},
				logger.Field{Key: "event", Value: evt.Name},
			)
		}
	}
	return nil
}

// Subscribe registers a subscription that ends on Close or when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, channel string) (transport.Subscription, error) {
	channel = strings.TrimSpace(channel)
	sub := &subscription{hub: h, channel: channel, out: make(chan transport.Message, bufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, transport.ErrClosed
	}
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*subscription]struct{})
	}
	h.subs[channel][sub] = struct{}{}
	h.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			_ = sub.Close()
		}()
	}
	return sub, nil
}

// Subscribers returns the number of live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	var all []*subscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()
	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.channel)
		}
	}
}

type subscription struct {
	hub     *Hub
	channel string
	out     chan transport.Message
	once    sync.Once
}

func (s *subscription) Channel() string                    { return s.channel }
func (s *subscription) Messages() <-chan transport.Message { return s.out }

func (s *subscription) Close() error {
	s.once.Do(func() {
		// remove takes the write lock, so no Broadcast is sending on out.
		s.hub.remove(s)
		close(s.out)
	})
	return nil
}
