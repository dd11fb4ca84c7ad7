package listing

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/flagdex/internal/domain"
)

// Order is the traversal direction of an index.
type Order string

const (
	// OrderNewest lists the most recently flagged entities first.
	OrderNewest Order = "newest"
	// OrderOldest lists the earliest flagged entities first.
	OrderOldest Order = "oldest"
)

// ParseOrder parses a query order. Empty means newest.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderNewest:
		return OrderNewest, nil
	case OrderOldest:
		return OrderOldest, nil
	default:
		return "", fmt.Errorf("order %q: %w", s, domain.ErrInvalidRequest)
	}
}

// Query selects a page of an index. Empty Scope means the global index.
type Query struct {
	Scope  string
	Cursor string
	Limit  int
	Order  Order
}

// Offset decodes the cursor into an index position.
func (q Query) Offset() (int, error) {
	if q.Cursor == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(q.Cursor)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid cursor %q: %w", q.Cursor, domain.ErrInvalidRequest)
	}
	return n, nil
}

// Item is one index member.
type Item struct {
	EntityID  string
	FlaggedAt time.Time
}

// Page is a slice of an index plus the cursor of the next slice.
type Page struct {
	Items      []Item
	NextCursor string
	Total      int64
}
