package di

import (
	"testing"

	"github.com/goliatone/go-clinic-notifications/pkg/activity"
	"github.com/goliatone/go-clinic-notifications/pkg/config"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
)

func TestDefaultHooksFollowLogger(t *testing.T) {
	hooks := defaultHooks(nil)
	if len(hooks) != 1 {
		t.Fatalf("expected one hook, got %d", len(hooks))
	}
	if _, ok := hooks[0].(activity.Nop); !ok {
		t.Fatalf("expected nop hook without logger, got %T", hooks[0])
	}

	lgr := &logger.Nop{}
	hooks = defaultHooks(lgr)
	hook, ok := hooks[0].(activity.LoggerHook)
	if !ok || hook.Logger != lgr {
		t.Fatalf("expected logger hook, got %T", hooks[0])
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestNewDefaultsToMemoryHub(t *testing.T) {
	cfg, err := config.Load(map[string]any{
		"database": map[string]any{"driver": "memory"},
		"auth":     map[string]any{"secret": "di-secret"},
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	c, err := New(Options{Config: cfg})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.Subscriber == nil || c.Broadcaster == nil {
		t.Fatalf("expected in-process hub for both sides")
	}
	if c.HTTP == nil || c.Reminders == nil || c.Commands == nil {
		t.Fatalf("expected services to be wired")
	}
}
