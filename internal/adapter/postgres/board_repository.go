package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/boardsync/internal/domain"
)

const boardColumns = "id, version, created_at, name, lists"

type BoardRepo struct {
	pool *pgxpool.Pool
}

var _ domain.BoardStore = (*BoardRepo)(nil)

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func (r *BoardRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *BoardRepo) Insert(ctx context.Context, boards ...domain.Board) error {
	if len(boards) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, b := range boards {
		lists, err := json.Marshal(nonNilLists(b.Lists))
		if err != nil {
			return fmt.Errorf("failed to encode lists of board %s: %w", b.ID, err)
		}
		batch.Queue(
			`INSERT INTO boards (`+boardColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			b.ID, int64(b.Version), b.CreatedAt, b.Name, lists,
		)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert boards: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit boards: %w", err)
	}
	return nil
}

func (r *BoardRepo) List(ctx context.Context) ([]domain.Board, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+boardColumns+` FROM boards ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	boards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Board, error) {
		b, err := scanBoard(row)
		if err != nil {
			return domain.Board{}, err
		}
		return *b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read boards: %w", err)
	}
	return boards, nil
}

func (r *BoardRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM boards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count boards: %w", err)
	}
	return n, nil
}

func (r *BoardRepo) FindOne(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1`, id)
	b, err := scanBoard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return b, nil
}

// FindAndIncrementVersion replaces name and lists and bumps the version in a
// single UPDATE. The row lock taken by UPDATE serializes concurrent writers,
// so every successful call observes a distinct version.
func (r *BoardRepo) FindAndIncrementVersion(ctx context.Context, id uuid.UUID, name string, lists []domain.List) (*domain.Board, error) {
	encoded, err := json.Marshal(nonNilLists(lists))
	if err != nil {
		return nil, fmt.Errorf("failed to encode lists: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE boards
		SET name = $2, lists = $3, version = version + 1
		WHERE id = $1
		RETURNING `+boardColumns,
		id, name, encoded,
	)
	b, err := scanBoard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update board: %w", err)
	}
	return b, nil
}

func scanBoard(row pgx.Row) (*domain.Board, error) {
	var (
		b         domain.Board
		version   int64
		createdAt time.Time
		lists     []byte
	)
	if err := row.Scan(&b.ID, &version, &createdAt, &b.Name, &lists); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lists, &b.Lists); err != nil {
		return nil, fmt.Errorf("failed to decode lists of board %s: %w", b.ID, err)
	}
	b.Version = uint64(version)
	b.CreatedAt = createdAt.UTC()
	b.Lists = nonNilLists(b.Lists)
	return &b, nil
}

func nonNilLists(lists []domain.List) []domain.List {
	if lists == nil {
		return []domain.List{}
	}
	for i := range lists {
		if lists[i].Tasks == nil {
			lists[i].Tasks = []domain.Item{}
		}
	}
	return lists
}
