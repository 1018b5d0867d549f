package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/pscheid92/boardsync/internal/domain"
)

const defaultBuffer = 64

var errSubscriberTooSlow = errors.New("subscriber buffer full")

// Broker is an in-process topic broker. Publish fans out under the broker
// lock, so every subscriber of a topic sees messages in publish order. A
// subscriber whose buffer is full is cut off with ErrSubscriptionLost rather
// than silently missing a message.
type Broker struct {
	mu     sync.Mutex
	topics map[string]map[*subscription]struct{}
	buffer int
}

var _ domain.Broker = (*Broker)(nil)

func NewBroker() *Broker {
	return NewBrokerWithBuffer(defaultBuffer)
}

func NewBrokerWithBuffer(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{topics: make(map[string]map[*subscription]struct{}), buffer: buffer}
}

func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := make([]byte, len(payload))
	copy(msg, payload)

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[topic] {
		select {
		case sub.msgs <- msg:
		default:
			b.removeLocked(sub, errSubscriberTooSlow)
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic string) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{broker: b, topic: topic, msgs: make(chan []byte, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub, nil
}

func (b *Broker) Ping(context.Context) error { return nil }

// Subscribers reports how many live subscriptions a topic has.
func (b *Broker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// removeLocked detaches sub and closes its channel. cause nil means a regular
// Close. Must be called with b.mu held.
func (b *Broker) removeLocked(sub *subscription, cause error) {
	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
	if cause != nil {
		sub.err = errors.Join(domain.ErrSubscriptionLost, cause)
	}
	close(sub.msgs)
}

type subscription struct {
	broker *Broker
	topic  string
	msgs   chan []byte
	err    error // guarded by broker.mu
}

func (s *subscription) Messages() <-chan []byte { return s.msgs }

func (s *subscription) Err() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	s.broker.removeLocked(s, nil)
	return nil
}
