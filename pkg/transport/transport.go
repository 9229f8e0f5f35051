package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
)

// ErrClosed is returned when subscribing through a closed transport.
var ErrClosed = errors.New("transport: closed")

// Message is one delivery on a channel. It is also the wire envelope.
type Message struct {
	Channel string         `json:"channel"`
	Event   string         `json:"event"`
	Data    map[string]any `json:"data"`
}

// FromEvent converts a broadcaster event into a transport message.
func FromEvent(evt broadcaster.Event) Message {
	return Message{Channel: evt.Channel, Event: evt.Name, Data: evt.Payload}
}

// Subscription is a live stream of messages for one channel. Messages is
// closed after Close or when the subscribing context ends.
type Subscription interface {
	Channel() string
	Messages() <-chan Message
	Close() error
}

// Subscriber attaches to channels.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Encode marshals the envelope.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("transport: encode: %w", err)
	}
	return data, nil
}

// Decode unmarshals an envelope.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("transport: decode: %w", err)
	}
	if msg.Event == "" {
		return Message{}, errors.New("transport: decode: missing event name")
	}
	return msg, nil
}
