package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
	goredis "github.com/redis/go-redis/v9"
)

func newTestTransport(t *testing.T) (*Transport, *goredis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	rc := goredis.NewClient(&goredis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	tr, err := New(rc, Options{Prefix: "test:"})
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr, rc
}

func receive(t *testing.T, sub transport.Subscription) transport.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return transport.Message{}
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	tr, _ := newTestTransport(t)
	ctx := context.Background()

	sub, err := tr.Subscribe(ctx, "user.7")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	err = tr.Broadcast(ctx, broadcaster.Event{
		Channel: "user.7",
		Name:    "AppointmentCreated",
		Payload: map[string]any{"message": "hello", "notification_id": "n1"},
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	msg := receive(t, sub)
	if msg.Channel != "user.7" || msg.Event != "AppointmentCreated" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Data["notification_id"] != "n1" {
		t.Fatalf("unexpected payload %+v", msg.Data)
	}
}

func TestSubscriberSkipsMalformedPayloads(t *testing.T) {
	tr, rc := newTestTransport(t)
	ctx := context.Background()

	sub, err := tr.Subscribe(ctx, "appointments")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if err := rc.Publish(ctx, "test:appointments", "not json").Err(); err != nil {
		t.Fatalf("publish raw: %v", err)
	}
	if err := tr.Broadcast(ctx, broadcaster.Event{Channel: "appointments", Name: "AppointmentCreated"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if msg := receive(t, sub); msg.Event != "AppointmentCreated" {
		t.Fatalf("expected malformed payload skipped, got %+v", msg)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	tr, _ := newTestTransport(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := tr.Subscribe(ctx, "user.1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case _, ok := <-sub.Messages():
		if ok {
			t.Fatalf("expected closed stream")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription did not close")
	}
	if _, err := tr.Subscribe(ctx, "user.1"); err != transport.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestTrackRefusesAfterClose(t *testing.T) {
	tr, _ := newTestTransport(t)
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	sub := &subscription{channel: "user.1", out: make(chan transport.Message), done: make(chan struct{})}
	if tr.track(sub) {
		t.Fatalf("expected registration to be refused after close")
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.subs) != 0 {
		t.Fatalf("expected no tracked subscriptions, got %d", len(tr.subs))
	}
}

func TestSubscribeRacingCloseLeavesNothingRunning(t *testing.T) {
	tr, _ := newTestTransport(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		subs []transport.Subscription
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := tr.Subscribe(ctx, "user.1")
			if err != nil {
				if err != transport.ErrClosed {
					t.Errorf("unexpected subscribe error: %v", err)
				}
				return
			}
			mu.Lock()
			subs = append(subs, sub)
			mu.Unlock()
		}()
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()

	for _, sub := range subs {
		select {
		case _, ok := <-sub.Messages():
			if ok {
				t.Fatalf("expected closed stream")
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscription survived close")
		}
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.subs) != 0 {
		t.Fatalf("expected no tracked subscriptions, got %d", len(tr.subs))
	}
}
