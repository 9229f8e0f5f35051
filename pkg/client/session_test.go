package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
	transportmemory "github.com/goliatone/go-clinic-notifications/pkg/transport/memory"
)

type countingDialer struct {
	hub   *transportmemory.Hub
	dials int
}

func (d *countingDialer) dial(context.Context) (transport.Subscriber, error) {
	d.dials++
	return d.hub, nil
}

func TestSessionDialsLazilyOnce(t *testing.T) {
	d := &countingDialer{hub: transportmemory.NewHub(nil)}
	session, err := NewSession(SessionConfig{UserID: "7", Dial: d.dial})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if d.dials != 0 {
		t.Fatalf("session must not dial before use")
	}
	ctx := context.Background()
	if _, err := session.Subscribe(ctx, "appointments"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := session.Subscribe(ctx, "user.7"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if d.dials != 1 {
		t.Fatalf("expected one connection, got %d", d.dials)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if d.hub.Subscribers("user.7") != 0 {
		t.Fatalf("close must end subscriptions")
	}
	if _, err := session.Subscribe(ctx, "appointments"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSessionConnectPumpsPrivateChannel(t *testing.T) {
	hub := transportmemory.NewHub(nil)
	session, _ := NewSession(SessionConfig{
		UserID:    "7",
		Dial:      func(context.Context) (transport.Subscriber, error) { return hub, nil },
		Authorize: func(context.Context, string) error { return nil },
	})
	defer session.Close()
	store := newStore(t, &fakeQuery{})

	if err := session.Connect(context.Background(), store); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = hub.Broadcast(context.Background(), broadcaster.Event{
		Channel: "user.7",
		Name:    "AppointmentCreated",
		Payload: map[string]any{"notification_id": "n1", "type": "appointment.created"},
	})

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Len() != 1 {
		t.Fatalf("expected pushed item in store")
	}
}

func TestSessionConnectDenied(t *testing.T) {
	d := &countingDialer{hub: transportmemory.NewHub(nil)}
	session, _ := NewSession(SessionConfig{
		UserID:    "7",
		Dial:      d.dial,
		Authorize: func(context.Context, string) error { return errors.New("403") },
	})
	err := session.Connect(context.Background(), newStore(t, &fakeQuery{}))
	if !errors.Is(err, ErrNoPrivateChannel) {
		t.Fatalf("expected no private channel error, got %v", err)
	}
	if d.dials != 0 {
		t.Fatalf("denied session must not dial")
	}
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := NewSession(SessionConfig{UserID: "7"}); err == nil {
		t.Fatalf("expected dialer error")
	}
	if _, err := NewSession(SessionConfig{Dial: (&countingDialer{}).dial}); err == nil {
		t.Fatalf("expected user error")
	}
}
