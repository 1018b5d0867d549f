package domain

import (
	"time"

	"github.com/google/uuid"
)

type Board struct {
	ID        uuid.UUID `json:"id"`
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Lists     []List    `json:"lists"`
}

type List struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Tasks []Item    `json:"tasks"`
}

// Item is a single task on a list. Completed was added in a later schema
// revision; documents without it decode as not completed.
type Item struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed,omitempty"`
}

// NewBoard creates a board at version 0 with a fresh identifier.
func NewBoard(name string, lists []List, now time.Time) Board {
	if lists == nil {
		lists = []List{}
	}
	return Board{
		ID:        uuid.New(),
		Version:   0,
		CreatedAt: now.UTC(),
		Name:      name,
		Lists:     lists,
	}
}

func NewList(name string, tasks ...Item) List {
	if tasks == nil {
		tasks = []Item{}
	}
	return List{ID: uuid.New(), Name: name, Tasks: tasks}
}

func NewItem(name string) Item {
	return Item{ID: uuid.New(), Name: name}
}

// Clone returns a deep copy so callers never share list or task slices.
func (b Board) Clone() Board {
	lists := make([]List, len(b.Lists))
	for i, l := range b.Lists {
		tasks := make([]Item, len(l.Tasks))
		copy(tasks, l.Tasks)
		lists[i] = List{ID: l.ID, Name: l.Name, Tasks: tasks}
	}
	b.Lists = lists
	return b
}

// --- Write payload ---

// BoardUpdate is the proposed new content of a board. Identifiers are
// optional: provided ones are kept, missing ones are generated.
type BoardUpdate struct {
	Name  string       `json:"name" validate:"required,max=200"`
	Lists []ListUpdate `json:"lists" validate:"dive"`
}

type ListUpdate struct {
	ID    *uuid.UUID   `json:"id,omitempty"`
	Name  string       `json:"name" validate:"max=200"`
	Tasks []ItemUpdate `json:"tasks" validate:"dive"`
}

type ItemUpdate struct {
	ID        *uuid.UUID `json:"id,omitempty"`
	Name      string     `json:"name" validate:"max=200"`
	Completed bool       `json:"completed,omitempty"`
}

// ToLists materializes the update into the ordered lists that get stored.
func (u BoardUpdate) ToLists() []List {
	lists := make([]List, 0, len(u.Lists))
	for _, lu := range u.Lists {
		tasks := make([]Item, 0, len(lu.Tasks))
		for _, iu := range lu.Tasks {
			tasks = append(tasks, Item{ID: idOrNew(iu.ID), Name: iu.Name, Completed: iu.Completed})
		}
		lists = append(lists, List{ID: idOrNew(lu.ID), Name: lu.Name, Tasks: tasks})
	}
	return lists
}

func idOrNew(id *uuid.UUID) uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return uuid.New()
	}
	return *id
}

// CreateBoardRequest is the payload for creating a board.
type CreateBoardRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}
