// Package nats is a distributed bus.Bus backed by NATS core pub/sub, for
// fanning epic events out across worker processes, grounded on
// odvcencio-buckley/pkg/bus/nats.go. It implements bus.Bus only: claim
// semantics (bus.TaskBoard) need a single consistent owner for the
// read-modify-write in RequestTask, so distributed deployments pair this
// bus with a shared inproc.Board running in one coordinator process, or a
// future jetstream KV-backed TaskBoard.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/rudi77/taskforge/internal/bus"
)

// Config configures the NATS connection.
type Config struct {
	URL     string
	Name    string
	Timeout time.Duration
}

// Bus is a bus.Bus implementation over a NATS connection.
type Bus struct {
	conn *natsgo.Conn
	mu   sync.Mutex
	subs map[string][]*natsgo.Subscription
}

var _ bus.Bus = (*Bus)(nil)

// Connect dials NATS and returns a ready Bus.
func Connect(cfg Config) (*Bus, error) {
	if cfg.URL == "" {
		cfg.URL = natsgo.DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	conn, err := natsgo.Connect(cfg.URL,
		natsgo.Name(cfg.Name),
		natsgo.Timeout(cfg.Timeout),
		natsgo.ReconnectWait(time.Second),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Bus{conn: conn, subs: make(map[string][]*natsgo.Subscription)}, nil
}

// Publish implements bus.Bus by encoding payload as JSON and publishing it
// on the NATS subject named topic.
func (b *Bus) Publish(_ context.Context, topic string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}
	return b.conn.Publish(topic, data)
}

// Subscribe implements bus.Bus.
func (b *Bus) Subscribe(_ context.Context, topic string) (bus.Subscription, error) {
	ch := make(chan bus.Event, 64)
	sub, err := b.conn.Subscribe(topic, func(msg *natsgo.Msg) {
		payload, err := decode(msg.Data)
		if err != nil {
			return
		}
		select {
		case ch <- bus.Event{Topic: topic, Payload: payload}:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %q: %w", topic, err)
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return &subscription{sub: sub, ch: ch}, nil
}

// Clear is unsupported for core NATS pub/sub: undelivered messages are not
// retained, so there is nothing to drop. Returns nil for interface parity.
func (b *Bus) Clear(string) error { return nil }

// Close closes the underlying connection without draining subscriptions
// first.
func (b *Bus) Close() error {
	b.conn.Close()
	return nil
}

type subscription struct {
	sub  *natsgo.Subscription
	ch   chan bus.Event
	once sync.Once
}

func (s *subscription) Events() <-chan bus.Event { return s.ch }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.sub.Unsubscribe()
		close(s.ch)
	})
	return err
}
