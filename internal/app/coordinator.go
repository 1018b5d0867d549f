package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/boardsync/internal/adapter/metrics"
	"github.com/pscheid92/boardsync/internal/domain"
)

const defaultPublishTimeout = 2 * time.Second

// Coordinator applies board writes. The store performs replace-and-increment
// as one atomic operation, so there is no optimistic retry loop; the version
// returned by the store is authoritative and is what gets published.
type Coordinator struct {
	store          domain.BoardStore
	broker         domain.Broker
	metrics        *metrics.CoordinatorMetrics
	clock          clockwork.Clock
	publishTimeout time.Duration
	reads          readInvalidator
}

type readInvalidator interface {
	InvalidateBoard(id uuid.UUID)
}

func NewCoordinator(store domain.BoardStore, broker domain.Broker, m *metrics.CoordinatorMetrics, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		store:          store,
		broker:         broker,
		metrics:        m,
		clock:          clock,
		publishTimeout: defaultPublishTimeout,
	}
}

// WithReadInvalidation makes every committed write invalidate reads of the
// board that are still in flight in r.
func (c *Coordinator) WithReadInvalidation(r readInvalidator) *Coordinator {
	c.reads = r
	return c
}

// UpdateBoard replaces the board's name and lists, bumps its version and
// publishes the result on the board topic.
//
// Errors:
//   - domain.ErrBoardNotFound: no board with this id, nothing published.
//   - domain.ErrStoreUnavailable: the store failed, nothing published.
//   - domain.ErrPublishFailed: the write succeeded and the updated board is
//     returned alongside the error. The write is not rolled back.
func (c *Coordinator) UpdateBoard(ctx context.Context, id uuid.UUID, update domain.BoardUpdate) (*domain.Board, error) {
	start := c.clock.Now()
	defer func() { c.metrics.UpdateDuration.Observe(c.clock.Since(start).Seconds()) }()

	board, err := c.store.FindAndIncrementVersion(ctx, id, update.Name, update.ToLists())
	if err != nil {
		err = classifyStoreError(err)
		c.count(err)
		return nil, err
	}
	if c.reads != nil {
		c.reads.InvalidateBoard(id)
	}

	if err := c.publish(ctx, board); err != nil {
		c.count(err)
		return board, err
	}

	c.count(nil)
	return board, nil
}

// publish outlives the request: a client disconnecting right after the write
// must not keep watchers from seeing it.
func (c *Coordinator) publish(ctx context.Context, board *domain.Board) error {
	payload, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("%w: encode board %s: %w", domain.ErrPublishFailed, board.ID, err)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.publishTimeout)
	defer cancel()

	start := c.clock.Now()
	err = c.broker.Publish(pubCtx, domain.Topic(board.ID), payload)
	c.metrics.PublishDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: board %s version %d: %w", domain.ErrPublishFailed, board.ID, board.Version, err)
	}
	return nil
}

func (c *Coordinator) count(err error) {
	result := metrics.ResultOK
	switch {
	case errors.Is(err, domain.ErrBoardNotFound):
		result = metrics.ResultNotFound
	case errors.Is(err, domain.ErrPublishFailed):
		result = metrics.ResultPublishFailed
	case err != nil:
		result = metrics.ResultStoreUnavailable
	}
	c.metrics.UpdatesTotal.WithLabelValues(result).Inc()
}

// classifyStoreError keeps not-found distinct and folds every other store
// failure into ErrStoreUnavailable.
func classifyStoreError(err error) error {
	if errors.Is(err, domain.ErrBoardNotFound) || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
