package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/pscheid92/boardsync/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const subscriptionBuffer = 16

// Broker implements domain.Broker on Redis Pub/Sub. Redis delivers messages
// of one channel to each subscriber connection in publish order.
type Broker struct {
	rdb *goredis.Client
}

var _ domain.Broker = (*Broker)(nil)

func NewBroker(rdb *goredis.Client) *Broker {
	return &Broker{rdb: rdb}
}

func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription, so a message
// published after Subscribe returns is never missed.
func (b *Broker) Subscribe(ctx context.Context, topic string) (domain.Subscription, error) {
	ps := b.rdb.Subscribe(ctx, topic)

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	s := &subscription{
		ps:     ps,
		msgs:   make(chan []byte, subscriptionBuffer),
		closed: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (b *Broker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

type subscription struct {
	ps   *goredis.PubSub
	msgs chan []byte

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error

	mu  sync.Mutex
	err error
}

func (s *subscription) Messages() <-chan []byte { return s.msgs }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.ps.Close()
	})
	return s.closeErr
}

// pump forwards payloads until the connection breaks or Close is called.
// A blocked receiver stalls the pump rather than dropping messages; if Redis
// then drops the slow connection, the subscription ends as lost.
func (s *subscription) pump() {
	defer close(s.msgs)

	for {
		msg, err := s.ps.ReceiveMessage(context.Background())
		if err != nil {
			if !s.isClosed() {
				s.fail(err)
			}
			return
		}

		select {
		case s.msgs <- []byte(msg.Payload):
		case <-s.closed:
			return
		}
	}
}

func (s *subscription) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *subscription) fail(cause error) {
	s.mu.Lock()
	s.err = fmt.Errorf("%w: %w", domain.ErrSubscriptionLost, cause)
	s.mu.Unlock()
}
