package domain

import "context"

// Broker is a topic-scoped publish/subscribe client. Within one topic,
// messages reach every current subscriber in publish order.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns once the broker has confirmed the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is a live stream of messages for one topic.
type Subscription interface {
	// Messages is closed when the subscription ends, either because Close
	// was called or because the broker stream broke.
	Messages() <-chan []byte
	// Err reports why Messages was closed. It is nil after Close.
	Err() error
	// Close releases the subscription. Safe to call more than once.
	Close() error
}
