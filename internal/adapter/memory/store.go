package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/boardsync/internal/domain"
)

// Store keeps boards in a map. Every board crossing the API boundary is deep
// copied, so callers can never mutate stored state.
type Store struct {
	mu     sync.RWMutex
	boards map[uuid.UUID]domain.Board
}

var _ domain.BoardStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{boards: make(map[uuid.UUID]domain.Board)}
}

func (s *Store) Insert(_ context.Context, boards ...domain.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range boards {
		if _, exists := s.boards[b.ID]; exists {
			return fmt.Errorf("board %s already exists", b.ID)
		}
	}
	for _, b := range boards {
		s.boards[b.ID] = b.Clone()
	}
	return nil
}

func (s *Store) List(_ context.Context) ([]domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	boards := make([]domain.Board, 0, len(s.boards))
	for _, b := range s.boards {
		boards = append(boards, b.Clone())
	}
	sort.Slice(boards, func(i, j int) bool {
		if boards[i].CreatedAt.Equal(boards[j].CreatedAt) {
			return boards[i].ID.String() < boards[j].ID.String()
		}
		return boards[i].CreatedAt.Before(boards[j].CreatedAt)
	})
	return boards, nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.boards)), nil
}

func (s *Store) FindOne(_ context.Context, id uuid.UUID) (*domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[id]
	if !ok {
		return nil, domain.ErrBoardNotFound
	}
	clone := b.Clone()
	return &clone, nil
}

// FindAndIncrementVersion replaces and bumps the version under the write lock,
// which makes the read-modify-write atomic.
func (s *Store) FindAndIncrementVersion(_ context.Context, id uuid.UUID, name string, lists []domain.List) (*domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[id]
	if !ok {
		return nil, domain.ErrBoardNotFound
	}

	if lists == nil {
		lists = []domain.List{}
	}
	b.Name = name
	b.Lists = lists
	b.Version++
	s.boards[id] = b.Clone()

	clone := b.Clone()
	return &clone, nil
}

func (s *Store) Ping(context.Context) error { return nil }
