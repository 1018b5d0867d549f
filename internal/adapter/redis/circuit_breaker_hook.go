package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/boardsync/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

const breakerComponent = "redis"

// CircuitBreakerConfig controls when the Redis breaker opens. The breaker opens
// once FailureRate of at least MinExecutions calls within Period failed, and
// lets a probe through after Delay.
type CircuitBreakerConfig struct {
	FailureRate   float64
	MinExecutions uint
	Period        time.Duration
	Delay         time.Duration
}

var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	FailureRate:   0.6,
	MinExecutions: 5,
	Period:        10 * time.Second,
	Delay:         30 * time.Second,
}

// CircuitBreakerHook fails Redis calls fast while Redis is unhealthy. Board
// publishes then surface as publish failures immediately instead of waiting
// for dial timeouts on every request.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook builds the hook. m may be nil.
func NewCircuitBreakerHook(cfg CircuitBreakerConfig, m *metrics.CircuitBreakerMetrics) *CircuitBreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(cfg.FailureRate, cfg.MinExecutions, cfg.Period).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", breakerComponent,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.Record(breakerComponent, e.NewState.String(), stateToFloat(e.NewState))
			}
		}).
		Build()

	return &CircuitBreakerHook{cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return metrics.BreakerClosed
	case circuitbreaker.HalfOpenState:
		return metrics.BreakerHalfOpen
	case circuitbreaker.OpenState:
		return metrics.BreakerOpen
	default:
		return -1
	}
}

// DialHook passes dials through. A failed dial fails the command that needed
// the connection and is recorded once, by ProcessHook.
func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		err := next(ctx, cmd)
		h.record(err)
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		err := next(ctx, cmds)
		h.record(err)
		return err
	}
}

// record counts only infrastructure failures. A missing key or a caller
// giving up is not a sign of an unhealthy Redis.
func (h *CircuitBreakerHook) record(err error) {
	switch {
	case err == nil, errors.Is(err, goredis.Nil), errors.Is(err, context.Canceled):
		h.cb.RecordSuccess()
	default:
		h.cb.RecordError(err)
	}
}

func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}
