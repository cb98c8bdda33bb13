package core

// Pagination bounds shared by all list operations.
const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Pagination carries the windowing and sorting part of a list request.
// SortBy must be validated against the storage allowlist for the entity.
type Pagination struct {
	Page    int
	PerPage int
	SortBy  string
	SortDir string // "asc" or "desc", default "asc"
}

// Normalize clamps the window to sane bounds and defaults the direction.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if p.SortDir != "asc" && p.SortDir != "desc" {
		p.SortDir = "asc"
	}
}

// Offset returns the row offset for the current window.
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Page is the paginated result envelope returned by list operations.
type Page[T any] struct {
	Items       []T   `json:"data"`
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	LastPage    int   `json:"last_page"`
	NextPage    *int  `json:"next_page"`
}

// NewPage assembles the result envelope from a window and the total count.
func NewPage[T any](items []T, total int64, p Pagination) *Page[T] {
	if items == nil {
		items = []T{}
	}
	lastPage := 1
	if total > 0 {
		lastPage = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	page := &Page[T]{
		Items:       items,
		Total:       total,
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		LastPage:    lastPage,
	}
	if p.Page < lastPage {
		next := p.Page + 1
		page.NextPage = &next
	}
	return page
}

// HasNext reports whether another page of results exists.
func (p *Page[T]) HasNext() bool {
	return p.NextPage != nil
}
