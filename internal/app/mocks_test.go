package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/pscheid92/boardsync/internal/domain"
)

// --- Mock BoardStore ---

type mockStore struct {
	domain.BoardStore
	findAndIncrementFn func(ctx context.Context, id uuid.UUID, name string, lists []domain.List) (*domain.Board, error)
	findOneFn          func(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	countFn            func(ctx context.Context) (int64, error)
}

func (m *mockStore) FindAndIncrementVersion(ctx context.Context, id uuid.UUID, name string, lists []domain.List) (*domain.Board, error) {
	return m.findAndIncrementFn(ctx, id, name, lists)
}

func (m *mockStore) FindOne(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return m.findOneFn(ctx, id)
}

func (m *mockStore) Count(ctx context.Context) (int64, error) {
	return m.countFn(ctx)
}

// --- Mock Broker ---

type publishCall struct {
	topic   string
	payload []byte
	ctxErr  error
}

type mockBroker struct {
	publishErr error
	calls      []publishCall
}

func (m *mockBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	m.calls = append(m.calls, publishCall{topic: topic, payload: payload, ctxErr: ctx.Err()})
	return m.publishErr
}

func (m *mockBroker) Subscribe(context.Context, string) (domain.Subscription, error) {
	panic("not used")
}
