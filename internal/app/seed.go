package app

import (
	"fmt"
	"time"

	"github.com/pscheid92/boardsync/internal/domain"
)

const emptyBoards = 4

// DefaultBoards returns the boards a fresh installation starts with. Creation
// times are spaced one millisecond apart to keep listing order stable.
func DefaultBoards(now time.Time) []domain.Board {
	boards := []domain.Board{
		domain.NewBoard("Shopping", []domain.List{
			domain.NewList("Grocery list",
				domain.NewItem("4-6 Apples"),
				domain.NewItem("Milk"),
			),
			domain.NewList("Click here to rename",
				domain.NewItem("Drag tasks and lists to rearrange them"),
			),
		}, now),
	}

	for i := 1; i <= emptyBoards; i++ {
		created := now.Add(time.Duration(i) * time.Millisecond)
		boards = append(boards, domain.NewBoard(fmt.Sprintf("Empty Board %d", i), nil, created))
	}
	return boards
}
