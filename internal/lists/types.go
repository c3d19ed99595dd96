// Package lists holds the to-do domain: lists, the items that belong to them,
// and the rules for adding items.
package lists

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a list id does not exist.
	ErrNotFound = errors.New("list not found")

	// ErrEmptyItem is returned when submitted item text is blank.
	ErrEmptyItem = errors.New("empty list item")
)

// EmptyItemMessage is shown to users whose submission was blank.
const EmptyItemMessage = "You can't have an empty list item"

// List is an identity-only collection of items.
type List struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// URL returns the canonical page path of the list.
func (l List) URL() string {
	return fmt.Sprintf("/lists/%d/", l.ID)
}

// Item is a single to-do entry belonging to exactly one list.
type Item struct {
	ID     int64  `json:"id"`
	ListID int64  `json:"list_id"`
	Text   string `json:"text"`
}

// Stats counts stored records.
type Stats struct {
	Lists int64 `json:"lists"`
	Items int64 `json:"items"`
}

// Repository persists lists and items. Items are returned in creation order.
type Repository interface {
	CreateList(ctx context.Context) (List, error)
	CreateListWithItem(ctx context.Context, text string) (List, Item, error)
	CreateItem(ctx context.Context, listID int64, text string) (Item, error)
	GetList(ctx context.Context, id int64) (List, error)
	Items(ctx context.Context, listID int64) ([]Item, error)
	Stats(ctx context.Context) (Stats, error)
}
