package broadcaster

import "context"

// Event is one (channel, name, payload) delivery handed to a realtime transport.
type Event struct {
	Channel string
	Name    string
	Payload map[string]any
}

// Broadcaster pushes events to Redis, SSE or in-process transports.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

// Nop broadcaster discards events.
type Nop struct{}

var _ Broadcaster = (*Nop)(nil)

func (n *Nop) Broadcast(ctx context.Context, event Event) error { return nil }
