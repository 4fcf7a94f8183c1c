package store

import "context"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Store is the CRUD contract shared by aggregate repositories. K is the key,
// E the entity and F the filter type understood by List.
type Store[K comparable, E any, F any] interface {
	FindByID(ctx context.Context, id K) (E, error)
	Create(ctx context.Context, entity E) (E, error)
	Update(ctx context.Context, entity E) (E, error)
	List(ctx context.Context, filter F, page Page) (Result[E], error)
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page into usable bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Result is one page of entities plus the unpaged total.
type Result[E any] struct {
	Items      []E
	TotalCount int64
	Page       int
	Limit      int
}

// TotalPages is the number of pages needed for TotalCount.
func (r Result[E]) TotalPages() int {
	if r.Limit <= 0 {
		return 0
	}
	return int((r.TotalCount + int64(r.Limit) - 1) / int64(r.Limit))
}
