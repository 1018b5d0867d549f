package domain

import (
	"context"

	"github.com/google/uuid"
)

// BoardStore persists boards. FindAndIncrementVersion must be atomic with
// respect to concurrent callers on the same id and return the post-update
// document, or ErrBoardNotFound.
type BoardStore interface {
	Insert(ctx context.Context, boards ...Board) error
	List(ctx context.Context) ([]Board, error)
	Count(ctx context.Context) (int64, error)
	FindOne(ctx context.Context, id uuid.UUID) (*Board, error)
	FindAndIncrementVersion(ctx context.Context, id uuid.UUID, name string, lists []List) (*Board, error)
}
