package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/boardsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeededStore(t *testing.T) (*Store, domain.Board) {
	t.Helper()
	s := NewStore()
	b := domain.NewBoard("Shopping", []domain.List{
		domain.NewList("Grocery list", domain.NewItem("4-6 Apples"), domain.NewItem("Milk")),
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Insert(context.Background(), b))
	return s, b
}

func TestStore_FindOne(t *testing.T) {
	s, b := newSeededStore(t)

	got, err := s.FindOne(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, *got)

	_, err = s.FindOne(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s, b := newSeededStore(t)

	got, err := s.FindOne(context.Background(), b.ID)
	require.NoError(t, err)
	got.Name = "mutated"
	got.Lists[0].Tasks[0].Name = "mutated"

	again, err := s.FindOne(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping", again.Name)
	assert.Equal(t, "4-6 Apples", again.Lists[0].Tasks[0].Name)
}

func TestStore_InsertRejectsDuplicates(t *testing.T) {
	s, b := newSeededStore(t)

	err := s.Insert(context.Background(), b)
	require.Error(t, err)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_ListOrderedByCreation(t *testing.T) {
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := domain.NewBoard("Empty Board 1", nil, base.Add(time.Second))
	earlier := domain.NewBoard("Shopping", nil, base)
	require.NoError(t, s.Insert(context.Background(), later, earlier))

	boards, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, boards, 2)
	assert.Equal(t, earlier.ID, boards[0].ID)
	assert.Equal(t, later.ID, boards[1].ID)
}

func TestStore_FindAndIncrementVersion(t *testing.T) {
	s, b := newSeededStore(t)
	lists := []domain.List{{ID: uuid.New(), Name: "Bakery", Tasks: []domain.Item{{ID: uuid.New(), Name: "Bread", Completed: true}}}}

	updated, err := s.FindAndIncrementVersion(context.Background(), b.ID, "Weekend", lists)
	require.NoError(t, err)

	assert.Equal(t, b.ID, updated.ID)
	assert.Equal(t, b.CreatedAt, updated.CreatedAt)
	assert.Equal(t, uint64(1), updated.Version)
	assert.Equal(t, "Weekend", updated.Name)
	assert.Equal(t, lists, updated.Lists)

	_, err = s.FindAndIncrementVersion(context.Background(), uuid.New(), "x", nil)
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
}

func TestStore_ConcurrentIncrementsAreDistinctAndConsecutive(t *testing.T) {
	s, b := newSeededStore(t)

	const writers = 50
	versions := make([]uint64, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.FindAndIncrementVersion(context.Background(), b.ID, "w", nil)
			if assert.NoError(t, err) {
				versions[i] = got.Version
			}
		}()
	}
	wg.Wait()

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for i, v := range versions {
		assert.Equal(t, uint64(i+1), v)
	}
}
