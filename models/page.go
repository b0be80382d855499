package models

// LastPage asks a comment listing for its final page.
const LastPage = -1

// Page is one slice of an ordered listing. A page past the end has no items.
type Page[T any] struct {
	Items   []T
	Number  int
	PerPage int
	Total   int
}

// Pages is the number of non-empty pages, at least 1.
func (p Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total-1)/p.PerPage + 1
}

func (p Page[T]) HasPrev() bool {
	return p.Number > 1
}

func (p Page[T]) HasNext() bool {
	return p.Number < p.Pages()
}

// PageOf returns the 1-indexed page holding the item at 1-indexed position pos.
func PageOf(pos, perPage int) int {
	if pos < 1 || perPage <= 0 {
		return 1
	}
	return (pos-1)/perPage + 1
}
