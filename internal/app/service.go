package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/boardsync/internal/domain"
	"golang.org/x/sync/singleflight"
)

const defaultReadTimeout = 5 * time.Second

// Service handles the board use cases outside the write path.
type Service struct {
	store     domain.BoardStore
	clock     clockwork.Clock
	readGroup   singleflight.Group
	readTimeout time.Duration
}

func NewService(store domain.BoardStore, clock clockwork.Clock) *Service {
	return &Service{store: store, clock: clock, readTimeout: defaultReadTimeout}
}

func (s *Service) ListBoards(ctx context.Context) ([]domain.Board, error) {
	boards, err := s.store.List(ctx)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return boards, nil
}

// GetBoard collapses concurrent reads of the same board into one store call.
// The shared call runs detached from any single caller, so one client giving
// up does not fail the others. Each caller gets its own copy.
func (s *Service) GetBoard(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	ch := s.readGroup.DoChan(id.String(), func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.readTimeout)
		defer cancel()
		return s.store.FindOne(readCtx, id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, classifyStoreError(res.Err)
		}
		board := res.Val.(*domain.Board).Clone()
		return &board, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InvalidateBoard detaches readers that start from now on from any read of
// id already in flight. The Coordinator calls it after every committed write.
func (s *Service) InvalidateBoard(id uuid.UUID) {
	s.readGroup.Forget(id.String())
}

func (s *Service) CreateBoard(ctx context.Context, req domain.CreateBoardRequest) (*domain.Board, error) {
	board := domain.NewBoard(req.Name, nil, s.clock.Now())
	if err := s.store.Insert(ctx, board); err != nil {
		return nil, classifyStoreError(err)
	}
	return &board, nil
}

// EnsureSeedBoards fills an empty store with the default boards. It reports
// whether anything was inserted.
func (s *Service) EnsureSeedBoards(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count boards: %w", classifyStoreError(err))
	}
	if n > 0 {
		slog.DebugContext(ctx, "Store already has boards, skipping seed", "count", n)
		return false, nil
	}

	boards := DefaultBoards(s.clock.Now())
	if err := s.store.Insert(ctx, boards...); err != nil {
		return false, fmt.Errorf("failed to seed boards: %w", classifyStoreError(err))
	}

	slog.InfoContext(ctx, "Seeded default boards", "count", len(boards))
	return true, nil
}
