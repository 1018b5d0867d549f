package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/boardsync/internal/adapter/metrics"
	"github.com/pscheid92/boardsync/internal/domain"
	"github.com/sony/gobreaker"
)

const breakerComponent = "postgres"

// GuardedStore wraps a BoardStore with a circuit breaker. While the breaker is
// open every call fails immediately with domain.ErrStoreUnavailable instead of
// waiting for connection timeouts.
type GuardedStore struct {
	next domain.BoardStore
	cb   *gobreaker.CircuitBreaker
}

var _ domain.BoardStore = (*GuardedStore)(nil)

type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

var DefaultBreakerSettings = BreakerSettings{
	ConsecutiveFailures: 5,
	OpenTimeout:         15 * time.Second,
}

// NewGuardedStore builds the wrapper. m may be nil.
func NewGuardedStore(next domain.BoardStore, s BreakerSettings, m *metrics.CircuitBreakerMetrics) *GuardedStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerComponent,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrBoardNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if m != nil {
				m.Record(name, to.String(), breakerStateValue(to))
			}
		},
	})
	return &GuardedStore{next: next, cb: cb}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return metrics.BreakerClosed
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	default:
		return -1
	}
}

func (g *GuardedStore) State() gobreaker.State {
	return g.cb.State()
}

func guard[T any](g *GuardedStore, op func() (T, error)) (T, error) {
	res, err := g.cb.Execute(func() (any, error) { return op() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (g *GuardedStore) Insert(ctx context.Context, boards ...domain.Board) error {
	_, err := guard(g, func() (struct{}, error) { return struct{}{}, g.next.Insert(ctx, boards...) })
	return err
}

func (g *GuardedStore) List(ctx context.Context) ([]domain.Board, error) {
	return guard(g, func() ([]domain.Board, error) { return g.next.List(ctx) })
}

func (g *GuardedStore) Count(ctx context.Context) (int64, error) {
	return guard(g, func() (int64, error) { return g.next.Count(ctx) })
}

func (g *GuardedStore) FindOne(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return guard(g, func() (*domain.Board, error) { return g.next.FindOne(ctx, id) })
}

func (g *GuardedStore) FindAndIncrementVersion(ctx context.Context, id uuid.UUID, name string, lists []domain.List) (*domain.Board, error) {
	return guard(g, func() (*domain.Board, error) { return g.next.FindAndIncrementVersion(ctx, id, name, lists) })
}
