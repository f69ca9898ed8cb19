package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest asks for up to Limit items after Cursor. Cursor is the id of
// the last item of the previous page.
type PageRequest struct {
	Cursor string
	Limit  int
}

// Normalize clamps the limit to (0, MaxPageSize], using def when unset.
func (p PageRequest) Normalize(def int) PageRequest {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Probe is the number of items a store is asked for: one more than the
// page holds, so that the presence of a next page is known.
func (p PageRequest) Probe() PageRequest {
	p.Limit++
	return p
}

// Page is one page of a cursor paginated listing.
type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

// NewPage builds a Page from up to limit+1 probed items. NextCursor is the
// id of the last returned item when more items exist.
func NewPage[T any](items []T, limit int, id func(T) string) *Page[T] {
	if items == nil {
		items = []T{}
	}
	page := &Page[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		next := id(page.Items[limit-1])
		page.NextCursor = &next
	}
	return page
}
