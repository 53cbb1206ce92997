// Package messaging abstracts the message bus the console tails audit logs
// from, so views can consume a live stream without depending on a broker.
package messaging

import (
	"context"
	"time"
)

// Message is one message received from or sent to the bus.
type Message struct {
	Subject string
	Data    []byte

	// Metadata holds message headers, e.g. the request ID.
	Metadata map[string]string

	// Timestamp is when the message was received.
	Timestamp time.Time
}

// MessageHandler processes a received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription to a subject.
type Subscription interface {
	Unsubscribe() error
	Subject() string
	IsValid() bool
}

// Publisher publishes messages to subjects.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishMsg(ctx context.Context, msg *Message) error
	Close() error
}

// Subscriber subscribes to subjects. Every subscriber receives every
// message.
type Subscriber interface {
	Subscribe(subject string, handler MessageHandler) (Subscription, error)
	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Flush blocks until the server has processed everything published so far.
	Flush(ctx context.Context) error
	IsConnected() bool
}

// PublishOption configures a published message.
type PublishOption func(*Message)

// WithHeader adds a header to the published message.
func WithHeader(key, value string) PublishOption {
	return func(m *Message) {
		if m.Metadata == nil {
			m.Metadata = make(map[string]string)
		}
		m.Metadata[key] = value
	}
}

// NewMessage builds a message for subject with opts applied.
func NewMessage(subject string, data []byte, opts ...PublishOption) *Message {
	m := &Message{Subject: subject, Data: data}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
